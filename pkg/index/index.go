// Package index implements C5: the generic key->row-id index capability
// and its two concrete backends, hash (in-memory) and B+-tree (on-disk,
// memory-mapped), per spec.md §4.5.
//
// Both tables map a column value (K = string) to the set of row positions
// in the active CSV currently holding that value (V = RowSet). Row
// identifiers are sequential positions recomputed on every rebuild; no
// backend assumes they survive a compaction.
package index

import (
	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// RowID is a sequential position in a table's active CSV (0-based, header
// excluded).
type RowID = int64

// RowSet is the set of row identifiers a single key maps to.
type RowSet []RowID

// Entry is one key/row pair yielded by Range.
type Entry struct {
	Key string
	Row RowID
}

// Iterator yields Range results in ascending key order.
type Iterator interface {
	Next() (Entry, bool)
	Close() error
}

// Backend names a concrete Index implementation for the planner's cost
// model and config-driven backend choice (spec.md §4.5 "Choice policy").
type Backend string

const (
	BackendHash  Backend = "hash"
	BackendBTree Backend = "btree"
)

// Index is the capability every backend implements: point lookup, ordered
// range scan, insert, delete. Range on a backend that cannot support
// ordering (Hash) returns an Unsupported error rather than pretending,
// per spec.md §9's anti-dynamic-dispatch design note.
type Index interface {
	Backend() Backend
	Get(key string) (RowSet, error)
	Range(start, end string, startIncl, endIncl bool) (Iterator, error)
	Insert(key string, row RowID) error
	Delete(key string, row RowID) error
	Close() error
}

// ErrKeyNotFound is a NotFound error for an index key. Neither backend's Get
// returns it: a key with no entries yields an empty RowSet and a nil error,
// so a non-nil error from Get always means a backend fault.
var ErrKeyNotFound = rerrors.NotFound("index key", "")

// RangeUnsupported builds the canonical error Hash.Range returns.
func RangeUnsupported() error {
	return rerrors.Unsupported("range query on hash index")
}

package index

import (
	"sort"
	"sync"
)

// HashIndex is the in-memory backend: O(1) point lookup, no ordering.
// Memory cost is roughly 150 bytes/key per spec.md §4.5; Go's native map
// overhead is in that neighborhood for short string keys plus a slice
// header per entry.
type HashIndex struct {
	mu   sync.RWMutex
	rows map[string]RowSet
}

// NewHashIndex creates an empty hash backend.
func NewHashIndex() *HashIndex {
	return &HashIndex{rows: make(map[string]RowSet)}
}

func (h *HashIndex) Backend() Backend { return BackendHash }

func (h *HashIndex) Get(key string) (RowSet, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rows := h.rows[key]
	out := make(RowSet, len(rows))
	copy(out, rows)
	return out, nil
}

// Range is not supported by the hash backend; the planner must not choose
// it for range queries (spec.md §4.5).
func (h *HashIndex) Range(start, end string, startIncl, endIncl bool) (Iterator, error) {
	return nil, RangeUnsupported()
}

func (h *HashIndex) Insert(key string, row RowID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rows := h.rows[key]
	idx := sort.Search(len(rows), func(i int) bool { return rows[i] >= row })
	if idx < len(rows) && rows[idx] == row {
		return nil // already present
	}
	rows = append(rows, 0)
	copy(rows[idx+1:], rows[idx:])
	rows[idx] = row
	h.rows[key] = rows
	return nil
}

func (h *HashIndex) Delete(key string, row RowID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rows := h.rows[key]
	idx := sort.Search(len(rows), func(i int) bool { return rows[i] >= row })
	if idx >= len(rows) || rows[idx] != row {
		return nil
	}
	rows = append(rows[:idx], rows[idx+1:]...)
	if len(rows) == 0 {
		delete(h.rows, key)
	} else {
		h.rows[key] = rows
	}
	return nil
}

func (h *HashIndex) Close() error { return nil }

// Len reports the number of distinct keys. The backend-choice policy
// (chooseBackend in manager.go) does not use it; it decides from the
// table's row count.
func (h *HashIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rows)
}

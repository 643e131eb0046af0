// Package table implements C2: the durable per-table storage unit —
// current.csv, its delta chain, and its version log — with the write path's
// atomicity and rollback reconstruction from spec.md §4.2.
package table

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/reedbase/reedbase/pkg/delta"
	rerrors "github.com/reedbase/reedbase/pkg/errors"
	"github.com/reedbase/reedbase/pkg/rlog"
)

// WriteResult is returned by every successful commit to a table.
type WriteResult struct {
	Timestamp   int64
	DeltaSize   int64
	ContentHash string
	RowsChanged int
}

// VersionInfo summarizes one version.log entry for ListVersions.
type VersionInfo = VersionLogEntry

// Table is one table's on-disk directory: current.csv, {ts}.delta files,
// and version.log. A single append-lock serializes commits (spec.md §4.4):
// Write and MergeAndWrite hold it while they compute the delta, write the
// files and append the version-log entry.
type Table struct {
	Name string
	dir  string

	appendMu sync.Mutex
	log      *VersionLog

	// Clock is overridable for deterministic tests; defaults to wall-clock
	// Unix milliseconds. Write raises a timestamp that is not above the last
	// version's to last+1, so version timestamps still strictly increase.
	Clock func() int64
}

func currentPath(dir string) string { return filepath.Join(dir, "current.csv") }
func deltaPath(dir string, ts int64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.delta", ts))
}
func versionLogPath(dir string) string { return filepath.Join(dir, "version.log") }

// Open attaches to an existing table directory (it need not contain data
// yet — Init populates it).
func Open(dir, name string) *Table {
	return &Table{
		Name:  name,
		dir:   dir,
		log:   NewVersionLog(versionLogPath(dir)),
		Clock: defaultClock,
	}
}

// Exists reports whether the table directory has already been initialized.
func (t *Table) Exists() bool {
	_, err := os.Stat(currentPath(t.dir))
	return err == nil
}

// Init creates the table with an initial byte image. Fails with
// AlreadyExists if the table has already been created.
func (t *Table) Init(initialBytes []byte, actionCode, userCode int) (WriteResult, error) {
	t.appendMu.Lock()
	defer t.appendMu.Unlock()

	if t.Exists() {
		return WriteResult{}, rerrors.AlreadyExists("table", t.Name)
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return WriteResult{}, rerrors.IO("mkdir table", err)
	}
	if err := validateImageBytes(initialBytes); err != nil {
		return WriteResult{}, err
	}

	ts := t.Clock()
	// Represent the initial image as a delta from the empty byte string so
	// the delta chain is total from the very first version, matching
	// invariant 7: apply_chain(empty, delta_0..delta_n) == current image.
	initPatch := delta.Diff(nil, initialBytes)
	if err := atomicWriteFile(deltaPath(t.dir, ts), delta.EncodeFile(initPatch)); err != nil {
		return WriteResult{}, err
	}
	if err := atomicWriteFile(currentPath(t.dir), initialBytes); err != nil {
		return WriteResult{}, err
	}
	hash := ContentHash(initialBytes)
	entry := VersionLogEntry{
		Timestamp:   ts,
		ActionCode:  actionCode,
		UserCode:    userCode,
		BaseTS:      0,
		DeltaSize:   0,
		RowsChanged: countRows(initialBytes),
		ContentHash: hash,
	}
	if err := t.log.Append(entry); err != nil {
		return WriteResult{}, err
	}
	rlog.Component("table").Info().Str("table", t.Name).Int64("ts", ts).Msg("initialized")
	return WriteResult{Timestamp: ts, ContentHash: hash, RowsChanged: entry.RowsChanged}, nil
}

// ReadCurrentBytes returns the active CSV image.
func (t *Table) ReadCurrentBytes() ([]byte, error) {
	data, err := os.ReadFile(currentPath(t.dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerrors.NotFound("table", t.Name)
		}
		return nil, rerrors.IO("read current.csv", err)
	}
	return data, nil
}

// ReadCurrentRows parses the active CSV into an Image.
func (t *Table) ReadCurrentRows() (*Image, error) {
	data, err := t.ReadCurrentBytes()
	if err != nil {
		return nil, err
	}
	return ParseImage(data)
}

// LatestTimestamp returns the timestamp of the most recent committed
// version, used by write sessions to capture base_ts (spec.md §4.4 step 1).
func (t *Table) LatestTimestamp() (int64, error) {
	entry, ok, err := t.log.Last()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, rerrors.NotFound("table", t.Name)
	}
	return entry.Timestamp, nil
}

// CommitOptions carries the action/frame context of a single Write call.
type CommitOptions struct {
	ActionCode int
	UserCode   int
	FrameID    string
	// Timestamp, if non-zero, forces the commit's version timestamp — used
	// by the frame manager so every table touched inside a frame shares
	// exactly one timestamp (spec.md §4.7).
	Timestamp int64
}

// Write computes a delta from the current image to newBytes, durably
// commits it, and appends the version-log entry — all under the table's
// append lock, so it is serialisable with any other committer
// (spec.md §4.2's three-step atomic sequence).
func (t *Table) Write(newBytes []byte, opts CommitOptions) (WriteResult, error) {
	if err := validateImageBytes(newBytes); err != nil {
		return WriteResult{}, err
	}

	t.appendMu.Lock()
	defer t.appendMu.Unlock()
	return t.writeLocked(newBytes, opts)
}

// MergeAndWrite reads the current image and calls resolve with it, then
// writes whatever resolve returns — all inside one critical section guarded
// by the table's append lock. A session's three-way merge must run resolve
// against the same "current" it is about to overwrite; computing the merge
// outside this lock would leave a window where a third writer commits
// between the read and the write, silently discarding that writer's change
// instead of merging against it (spec.md §4.4's "never silently lose a
// concurrent commit" contract). resolve returns (newBytes, conflict, err);
// a true conflict aborts without writing and without an error.
func (t *Table) MergeAndWrite(resolve func(current *Image) (newBytes []byte, conflict bool, err error), opts CommitOptions) (WriteResult, bool, error) {
	t.appendMu.Lock()
	defer t.appendMu.Unlock()

	current, err := t.ReadCurrentRows()
	if err != nil {
		return WriteResult{}, false, err
	}
	newBytes, conflict, err := resolve(current)
	if err != nil || conflict {
		return WriteResult{}, conflict, err
	}
	if err := validateImageBytes(newBytes); err != nil {
		return WriteResult{}, false, err
	}
	wr, err := t.writeLocked(newBytes, opts)
	return wr, false, err
}

// writeLocked is Write's body, callable either directly (holding appendMu
// itself) or from MergeAndWrite (which already holds it).
func (t *Table) writeLocked(newBytes []byte, opts CommitOptions) (WriteResult, error) {
	oldBytes, err := t.ReadCurrentBytes()
	if err != nil {
		return WriteResult{}, err
	}

	lastEntry, ok, err := t.log.Last()
	if err != nil {
		return WriteResult{}, err
	}
	if !ok {
		return WriteResult{}, rerrors.NotFound("table", t.Name)
	}

	ts := opts.Timestamp
	if ts == 0 {
		ts = t.Clock()
	}
	if ts <= lastEntry.Timestamp {
		ts = lastEntry.Timestamp + 1
	}

	patch := delta.Diff(oldBytes, newBytes)
	encoded := delta.EncodeFile(patch)

	// Step 1: write {ts}.delta, fsync, atomic rename.
	if err := atomicWriteFile(deltaPath(t.dir, ts), encoded); err != nil {
		return WriteResult{}, err
	}
	// Step 2: write new current.csv, fsync, atomic rename.
	if err := atomicWriteFile(currentPath(t.dir), newBytes); err != nil {
		return WriteResult{}, err
	}
	// Step 3: append version-log entry, fsync.
	hash := ContentHash(newBytes)
	entry := VersionLogEntry{
		Timestamp:   ts,
		ActionCode:  opts.ActionCode,
		UserCode:    opts.UserCode,
		BaseTS:      lastEntry.Timestamp,
		DeltaSize:   int64(len(encoded)),
		RowsChanged: countRowsChanged(oldBytes, newBytes),
		ContentHash: hash,
		FrameID:     opts.FrameID,
	}
	if err := t.log.Append(entry); err != nil {
		return WriteResult{}, err
	}

	rlog.Component("table").Debug().Str("table", t.Name).Int64("ts", ts).
		Int64("delta_size", entry.DeltaSize).Msg("write committed")
	return WriteResult{Timestamp: ts, DeltaSize: entry.DeltaSize, ContentHash: hash, RowsChanged: entry.RowsChanged}, nil
}

// ListVersions returns version.log entries, newest first.
func (t *Table) ListVersions() ([]VersionInfo, error) {
	entries, err := t.log.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]VersionInfo, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out, nil
}

// RollbackTo reconstructs the image at timestamp ts by replaying the delta
// chain forward from the empty image (see reconstructAt), checks it against
// that version's content hash, then commits it as a *new* version with
// action=rollback — forward recovery; history is never rewritten
// (spec.md §4.2).
func (t *Table) RollbackTo(ts int64, actionCode, userCode int) (WriteResult, error) {
	entries, err := t.log.ReadAll()
	if err != nil {
		return WriteResult{}, err
	}
	target, targetIdx, found := findEntry(entries, ts)
	if !found {
		return WriteResult{}, rerrors.NotFound("version", fmt.Sprintf("%d", ts))
	}

	image, err := t.reconstructAt(targetIdx, entries)
	if err != nil {
		return WriteResult{}, err
	}
	if ContentHash(image) != target.ContentHash {
		return WriteResult{}, rerrors.Corruption(t.Name, "rollback reconstruction hash mismatch")
	}

	return t.Write(image, CommitOptions{ActionCode: actionCode, UserCode: userCode})
}

// reconstructAt rebuilds the byte image as of entries[idx] by replaying the
// delta chain forward from the empty image (entry 0's delta is always a
// diff from empty — see Init) up through idx. Deltas are forward-only, so
// reconstructing an older version means replaying forward rather than
// reverse-applying; this trades O(n) replay for not needing an invertible
// codec.
func (t *Table) reconstructAt(idx int, entries []VersionLogEntry) ([]byte, error) {
	if idx < 0 || idx >= len(entries) {
		return nil, rerrors.NotFound("version", "index out of range")
	}
	var image []byte
	for i := 0; i <= idx; i++ {
		e := entries[i]
		encoded, err := os.ReadFile(deltaPath(t.dir, e.Timestamp))
		if err != nil {
			return nil, rerrors.IO("read delta", err)
		}
		patch, err := delta.DecodeFile(encoded)
		if err != nil {
			return nil, err
		}
		next, err := delta.Patch(image, patch)
		if err != nil {
			return nil, rerrors.Corruption(t.Name, "delta chain broken at ts "+strconv.FormatInt(e.Timestamp, 10))
		}
		image = next
	}
	return image, nil
}

// Delete removes the table directory via a single atomic rename to a
// tombstone path, then cleanup — requires explicit confirmation and is
// idempotent once performed.
func (t *Table) Delete(confirm bool) error {
	if !confirm {
		return rerrors.Validation("delete requires explicit confirmation")
	}
	if _, err := os.Stat(t.dir); os.IsNotExist(err) {
		return nil // already deleted: idempotent
	}
	tombstone := t.dir + ".deleted"
	if err := os.Rename(t.dir, tombstone); err != nil {
		return rerrors.IO("rename table dir", err)
	}
	return os.RemoveAll(tombstone)
}

func findEntry(entries []VersionLogEntry, ts int64) (VersionLogEntry, int, bool) {
	for i, e := range entries {
		if e.Timestamp == ts {
			return e, i, true
		}
	}
	return VersionLogEntry{}, -1, false
}

func countRows(data []byte) int {
	img, err := ParseImage(data)
	if err != nil {
		return 0
	}
	return len(img.Rows)
}

func countRowsChanged(oldBytes, newBytes []byte) int {
	oldImg, err1 := ParseImage(oldBytes)
	newImg, err2 := ParseImage(newBytes)
	if err1 != nil || err2 != nil {
		return 0
	}
	oldByKey := oldImg.ByKey()
	newByKey := newImg.ByKey()
	changed := 0
	for k, nr := range newByKey {
		if or, ok := oldByKey[k]; !ok || !rowEqual(or, nr) {
			changed++
		}
	}
	for k := range oldByKey {
		if _, ok := newByKey[k]; !ok {
			changed++
		}
	}
	return changed
}

func rowEqual(a, b Row) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			return false
		}
	}
	return true
}

func validateImageBytes(data []byte) error {
	img, err := ParseImage(data)
	if err != nil {
		return err
	}
	for _, r := range img.Rows {
		if err := ValidateValues(r.Values); err != nil {
			return err
		}
	}
	return nil
}

func defaultClock() int64 {
	return nowMillis()
}

// DefaultClock is the wall-clock millisecond timestamp function every Table
// uses unless overridden; exported so other components that need to share
// the same clock (e.g. pkg/frame) don't hand-roll their own.
func DefaultClock() int64 {
	return nowMillis()
}

// --- durability helpers shared with pkg/registry's atomicWriteFile pattern ---

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return rerrors.IO("create temp", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return rerrors.IO("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return rerrors.IO("fsync temp", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return rerrors.IO("close temp", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return rerrors.IO("rename", err)
	}
	return nil
}

// DeltaFileTimestamps returns the timestamps of every {ts}.delta file
// present in the table directory, sorted ascending. Used by crash recovery
// to find dangling deltas with no matching log entry.
func (t *Table) DeltaFileTimestamps() ([]int64, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rerrors.IO("readdir table", err)
	}
	var out []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".delta") {
			continue
		}
		tsStr := strings.TrimSuffix(name, ".delta")
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// RemoveDeltaFile deletes a dangling delta file left by a crashed write.
func (t *Table) RemoveDeltaFile(ts int64) error {
	err := os.Remove(deltaPath(t.dir, ts))
	if err != nil && !os.IsNotExist(err) {
		return rerrors.IO("remove dangling delta", err)
	}
	return nil
}

// Dir returns the table's backing directory, for recovery's direct file
// inspection.
func (t *Table) Dir() string { return t.dir }

// LogPath returns the version.log path.
func (t *Table) LogPath() string { return versionLogPath(t.dir) }

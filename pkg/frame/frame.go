// Package frame implements ReedBase's multi-table atomic snapshot
// mechanism (spec.md §4.7, component C7): a frame groups writes to several
// tables under one shared commit timestamp so they can be recovered to, or
// rolled back from, as a single unit. The catalogue format follows the
// engine's own append-then-read version log (pkg/table/version_log.go), kept
// sorted by timestamp for O(log n) point-in-time lookup.
package frame

import (
	"sync"

	"github.com/google/uuid"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// Status is a frame's lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
	StatusCrashed    Status = "crashed"
)

// Frame is one atomic multi-table snapshot.
type Frame struct {
	ID             string
	Name           string
	Timestamp      int64 // shared commit timestamp once committed; 0 while active
	Status         Status
	TablesTouched  []string
	BaseTimestamps map[string]int64  // per-table version timestamp immediately before this frame began
	CommitHashes   map[string]string // per-table content hash as of this frame's commit; mirrors the snapshot file
	StartedAt      int64
	CommittedAt    int64
}

// Manager enforces "at most one active frame per process" and persists the
// snapshot catalogue at dir/frames/index.csv.
type Manager struct {
	mu     sync.Mutex
	cat    *catalogue
	active *Frame
	clock  func() int64
}

// Open opens (or creates) the frame catalogue rooted at dbDir.
func Open(dbDir string, clock func() int64) (*Manager, error) {
	cat, err := openCatalogue(dbDir)
	if err != nil {
		return nil, err
	}
	return &Manager{cat: cat, clock: clock}, nil
}

// Begin starts a new active frame. Fails if one is already active, per
// spec.md's "at most one active frame per process" invariant.
func (m *Manager) Begin(name string) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, rerrors.Concurrency("a frame is already active: " + m.active.ID)
	}
	f := &Frame{
		ID:             uuid.New().String(),
		Name:           name,
		Status:         StatusActive,
		BaseTimestamps: make(map[string]int64),
		StartedAt:      m.clock(),
	}
	// Persist the frame as active immediately, before any table writes
	// happen under it, so a crash mid-frame leaves a StatusActive record
	// for recovery to find and roll back (spec.md §4.7/§4.8).
	if err := m.cat.append(f); err != nil {
		return nil, err
	}
	m.active = f
	return f, nil
}

// LogOperation records that the active frame touched tableName at
// baseTimestamp (the table's version immediately before the frame's write),
// so a rollback knows exactly where to restore each table to.
func (m *Manager) LogOperation(tableName string, baseTimestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return rerrors.Validation("no active frame")
	}
	if _, seen := m.active.BaseTimestamps[tableName]; !seen {
		m.active.TablesTouched = append(m.active.TablesTouched, tableName)
		m.active.BaseTimestamps[tableName] = baseTimestamp
		return m.cat.replace(m.active)
	}
	return nil
}

// Commit finalizes the active frame under a single shared timestamp,
// persists the final record to the catalogue, and writes
// frames/{timestamp}.snapshot.csv — one `table|timestamp|content_hash|
// frame_id` row per touched table — so a later point-in-time recovery can
// verify or restore each table's committed content independently of the
// catalogue record (spec.md §4.7/§6). hashes must carry one entry per name
// in the frame's TablesTouched, the table's content hash as of this commit.
func (m *Manager) Commit(hashes map[string]string) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, rerrors.Validation("no active frame")
	}
	f := m.active
	f.Timestamp = m.clock()
	f.CommittedAt = f.Timestamp
	f.Status = StatusCommitted
	f.CommitHashes = hashes
	if err := m.cat.replace(f); err != nil {
		return nil, err
	}
	if err := m.cat.writeSnapshot(f); err != nil {
		return nil, err
	}
	m.active = nil
	return f, nil
}

// Abandon clears the in-memory active frame so a new one can begin. It does
// not touch the catalogue: the StatusActive record Begin wrote stays there
// as it is (distinct from Rollback, which reverts an already-committed
// frame's tables).
func (m *Manager) Abandon() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
}

// Active returns the currently active frame, if any.
func (m *Manager) Active() (*Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// List returns every frame in the catalogue, whatever its status, in the
// order the frames began.
func (m *Manager) List() ([]*Frame, error) {
	return m.cat.all()
}

// At returns the committed frame with the largest timestamp at or before
// ts, for point-in-time
// recovery (spec.md's frame catalogue lookup).
func (m *Manager) At(ts int64) (*Frame, bool, error) {
	return m.cat.latestAtOrBefore(ts)
}

// MarkRolledBack records that a committed frame's tables were reverted.
func (m *Manager) MarkRolledBack(frameID string) error {
	return m.cat.updateStatus(frameID, StatusRolledBack)
}

// MarkCrashed records that a frame found StatusActive at Open time belongs
// to a process that crashed mid-frame, before recovery rolls its tables
// back.
func (m *Manager) MarkCrashed(frameID string) error {
	return m.cat.updateStatus(frameID, StatusCrashed)
}

// Snapshot returns the per-table content hashes recorded in a committed
// frame's frames/{timestamp}.snapshot.csv file, independent of the
// catalogue record.
func (m *Manager) Snapshot(timestamp int64) (map[string]string, error) {
	return readSnapshot(m.cat.dir, timestamp)
}

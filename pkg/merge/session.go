package merge

import (
	"sync"

	"github.com/google/uuid"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
	"github.com/reedbase/reedbase/pkg/rlog"
	"github.com/reedbase/reedbase/pkg/table"
)

// SessionStatus mirrors the teacher's TransactionStatus (InProgress /
// Committed / Aborted), adapted to a write session instead of a full
// transaction manager.
type SessionStatus int

const (
	StatusInProgress SessionStatus = iota
	StatusCommitted
	StatusAborted
)

// Session is ReedBase's write-session protocol (spec.md §4.4): a writer
// begins a session against a table, captures the current image as its base,
// accumulates edits locally, then commits. Commit re-reads the table's
// current image; if it has moved on (a concurrent writer committed first),
// the session's edits are three-way merged against the new current image
// instead of blindly overwriting it.
type Session struct {
	ID         uuid.UUID
	table      *table.Table
	actionCode int
	userCode   int
	policy     Policy
	frameID    string

	mu      sync.Mutex
	status  SessionStatus
	base    *table.Image
	working *table.Image
}

// Begin opens a write session against tbl, snapshotting its current image
// as the merge base.
func Begin(tbl *table.Table, actionCode, userCode int, policy Policy) (*Session, error) {
	base, err := tbl.ReadCurrentRows()
	if err != nil {
		return nil, err
	}
	working := &table.Image{Header: append([]string(nil), base.Header...), Rows: append([]table.Row(nil), base.Rows...)}
	return &Session{
		ID:         uuid.New(),
		table:      tbl,
		actionCode: actionCode,
		userCode:   userCode,
		policy:     policy,
		status:     StatusInProgress,
		base:       base,
		working:    working,
	}, nil
}

// WithFrame attaches a frame id so the eventual commit's version-log entry
// records which frame it belongs to.
func (s *Session) WithFrame(frameID string) *Session {
	s.frameID = frameID
	return s
}

// Working returns the session's mutable working image. Callers mutate it
// directly (Put/Delete convenience methods below) before Commit.
func (s *Session) Working() *table.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working
}

// Put inserts or replaces a row by key in the working image.
func (s *Session) Put(key string, values []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.working.Rows {
		if r.Key == key {
			s.working.Rows[i].Values = values
			return
		}
	}
	s.working.Rows = append(s.working.Rows, table.Row{Key: key, Values: values})
}

// Delete removes a row by key from the working image.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.working.Rows {
		if r.Key == key {
			s.working.Rows = append(s.working.Rows[:i], s.working.Rows[i+1:]...)
			return
		}
	}
}

// OutcomeKind is the discriminant of WriteOutcome: a write either
// succeeds, conflicts, or errors — modeled as a sum type rather than an
// error return so a conflict (an expected, handleable condition) isn't
// forced through the same channel as an I/O failure.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeConflict
	OutcomeError
)

// WriteOutcome is the result of a Session.Commit call.
type WriteOutcome struct {
	Kind      OutcomeKind
	Write     table.WriteResult
	Conflicts []Conflict
	Err       error
}

// Commit attempts to write the session's working image. If the table has
// not moved since Begin, this is a plain forward write. If it has moved
// (another writer committed a newer version), the session's edits are
// three-way merged against the new current image per spec.md §4.4 step 5.
// Under PolicyNone, any detected conflict aborts the commit and returns
// OutcomeConflict without writing; under PolicyLastWriteWins or
// PolicyPreserveBoth the merge resolves automatically and the result is
// still written, with the conflicts reported alongside OutcomeSuccess for
// visibility.
//
// The re-read of the table's current image and the eventual write happen
// inside a single table.MergeAndWrite call, both guarded by the table's own
// append lock — so a writer that commits after this session's base was
// captured but before this Commit runs is always seen by the merge, never
// silently overwritten (spec.md §4.4).
func (s *Session) Commit() WriteOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return WriteOutcome{Kind: OutcomeError, Err: rerrors.Validation("session already finished")}
	}

	var conflicts []Conflict
	resolve := func(other *table.Image) ([]byte, bool, error) {
		finalImg := s.working
		if !imagesEqual(s.base, other) {
			res, err := ThreeWayMerge(s.base, s.working, other, s.policy)
			if err != nil {
				return nil, false, err
			}
			conflicts = res.Conflicts
			if s.policy == PolicyNone && len(conflicts) > 0 {
				return nil, true, nil
			}
			finalImg = res.Merged
		}
		return finalImg.Bytes(), false, nil
	}

	wr, conflict, err := s.table.MergeAndWrite(resolve, table.CommitOptions{
		ActionCode: s.actionCode,
		UserCode:   s.userCode,
		FrameID:    s.frameID,
	})
	if err != nil {
		s.status = StatusAborted
		return WriteOutcome{Kind: OutcomeError, Err: err}
	}
	if conflict {
		s.status = StatusAborted
		rlog.Component("merge").Warn().Str("session", s.ID.String()).Int("conflicts", len(conflicts)).Msg("write session conflict")
		return WriteOutcome{Kind: OutcomeConflict, Conflicts: conflicts}
	}

	s.status = StatusCommitted
	return WriteOutcome{Kind: OutcomeSuccess, Write: wr, Conflicts: conflicts}
}

// Abort discards the session without writing.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInProgress {
		s.status = StatusAborted
	}
}

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func imagesEqual(a, b *table.Image) bool {
	if len(a.Rows) != len(b.Rows) {
		return false
	}
	ak := a.ByKey()
	bk := b.ByKey()
	if len(ak) != len(bk) {
		return false
	}
	for k, av := range ak {
		bv, ok := bk[k]
		if !ok || !rowValuesEqual(av, bv) {
			return false
		}
	}
	return true
}

// Package reedbase wires C1-C8 together behind one handle, the way the
// teacher's pkg.Server wires its config/dataaccess/mvcc/resource layers
// behind a single server instance constructed in cmd/service/main.go.
// Database.Open runs recovery before anything else opens a handle onto the
// same directory, per spec.md §4.8.
package reedbase

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/reedbase/reedbase/pkg/config"
	rerrors "github.com/reedbase/reedbase/pkg/errors"
	"github.com/reedbase/reedbase/pkg/frame"
	"github.com/reedbase/reedbase/pkg/index"
	"github.com/reedbase/reedbase/pkg/merge"
	"github.com/reedbase/reedbase/pkg/metrics"
	"github.com/reedbase/reedbase/pkg/query"
	"github.com/reedbase/reedbase/pkg/recovery"
	"github.com/reedbase/reedbase/pkg/registry"
	"github.com/reedbase/reedbase/pkg/rlog"
	"github.com/reedbase/reedbase/pkg/table"
)

// Database is the top-level handle a caller opens once per database
// directory. It owns the registry, every open table, the index manager,
// and the frame manager, and is the only entry point spec.md's external
// interfaces (§5) need.
type Database struct {
	dir string
	cfg *config.Config

	reg     *registry.Registry
	indices *index.Manager
	frames  *frame.Manager
	exec    *query.Executor

	mu     sync.Mutex
	tables map[string]*table.Table
}

// Open opens an existing database at path, running crash recovery first.
func Open(path string) (*Database, error) {
	report, err := recovery.Recover(path)
	if err != nil {
		return nil, err
	}
	logRecoveryReport(path, report)

	return openHandles(path)
}

// Create initializes a new database directory and opens it.
func Create(path string) (*Database, error) {
	if err := os.MkdirAll(filepath.Join(path, "tables"), 0o755); err != nil {
		return nil, rerrors.IO("mkdir tables", err)
	}
	cfg := config.Default()
	if err := config.Save(filepath.Join(path, "config.toml"), cfg); err != nil {
		return nil, err
	}
	return openHandles(path)
}

func openHandles(path string) (*Database, error) {
	cfg, err := config.LoadOrDefault(filepath.Join(path, "config.toml"))
	if err != nil {
		return nil, err
	}
	reg, err := registry.Open(path)
	if err != nil {
		return nil, err
	}
	idxMgr, err := index.NewManager(path, cfg.Index.HashMaxEntries)
	if err != nil {
		return nil, err
	}
	frameMgr, err := frame.Open(path, table.DefaultClock)
	if err != nil {
		return nil, err
	}

	db := &Database{
		dir:     path,
		cfg:     cfg,
		reg:     reg,
		indices: idxMgr,
		frames:  frameMgr,
		exec:    query.NewExecutor(idxMgr, cfg.Planner.IndexCostMultiplier),
		tables:  make(map[string]*table.Table),
	}

	names, err := listTableDirs(path)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		tbl := table.Open(filepath.Join(path, "tables", name), name)
		if tbl.Exists() {
			db.tables[name] = tbl
		}
	}
	return db, nil
}

func listTableDirs(dbDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dbDir, "tables"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, rerrors.IO("read tables dir", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func logRecoveryReport(path string, r *recovery.Report) {
	log := rlog.Component("reedbase")
	for _, t := range r.TablesReconstructed {
		metrics.RecordRecoveryEvent("table_reconstructed")
		log.Warn().Str("db", path).Str("table", t).Msg("reconstructed table from delta chain at open")
	}
	for _, f := range r.FramesRolledBack {
		metrics.RecordRecoveryEvent("frame_rolled_back")
		log.Warn().Str("db", path).Str("frame", f).Msg("rolled back incomplete frame at open")
	}
	if r.DanglingDeltasPruned > 0 {
		metrics.RecordRecoveryEvent("dangling_delta_pruned")
	}
}

// CreateTable creates a new table named name with the given header columns.
func (db *Database) CreateTable(name string, header []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.tables[name]; exists {
		return rerrors.AlreadyExists("table", name)
	}
	tbl := table.Open(filepath.Join(db.dir, "tables", name), name)
	actionCode, err := db.reg.CodeOfAction("init")
	if err != nil {
		return err
	}
	img := &table.Image{Header: header}
	if _, err := tbl.Init(img.Bytes(), actionCode, registry.SystemUserCode); err != nil {
		return err
	}
	db.tables[name] = tbl
	return nil
}

// Table returns a named table's handle, or NotFound.
func (db *Database) Table(name string) (*table.Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	tbl, ok := db.tables[name]
	if !ok {
		return nil, rerrors.NotFound("table", name)
	}
	return tbl, nil
}

// ListTables returns every table name currently open.
func (db *Database) ListTables() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	names := make([]string, 0, len(db.tables))
	for n := range db.tables {
		names = append(names, n)
	}
	return names
}

// CreateIndex builds an index on table.column, choosing a backend per
// spec.md §4.5's policy unless backend is explicitly given.
func (db *Database) CreateIndex(tableName, column string, backend index.Backend) error {
	tbl, err := db.Table(tableName)
	if err != nil {
		return err
	}
	img, err := tbl.ReadCurrentRows()
	if err != nil {
		return err
	}
	colIdx := -1
	for i, h := range img.Header {
		if h == column {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		return rerrors.Validationf("table %q has no column %q", tableName, column)
	}
	_, err = db.indices.Create(tbl, column, colIdx, backend)
	return err
}

// DropIndex removes an index.
func (db *Database) DropIndex(tableName, column string) error {
	return db.indices.Drop(tableName, column)
}

// ListIndices returns every index descriptor currently registered.
func (db *Database) ListIndices() []index.Descriptor {
	return db.indices.List()
}

// RebuildIndex forces a full shadow-rebuild of one index.
func (db *Database) RebuildIndex(tableName, column string) error {
	tbl, err := db.Table(tableName)
	if err != nil {
		return err
	}
	img, err := tbl.ReadCurrentRows()
	if err != nil {
		return err
	}
	colIdx := -1
	for i, h := range img.Header {
		if h == column {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		return rerrors.Validationf("table %q has no column %q", tableName, column)
	}
	if err := db.indices.Rebuild(tbl, column, colIdx); err != nil {
		return err
	}
	metrics.RecordIndexRebuild()
	return nil
}

// BeginWrite opens a merge.Session against a table under a named user,
// resolving user/action codes through the registry. If a frame is
// currently active, the session is tagged with it and the frame's
// catalogue records this table as touched (spec.md §4.7), so a later
// RollbackFrame knows to restore it.
func (db *Database) BeginWrite(tableName, userName string, policy merge.Policy) (*merge.Session, error) {
	tbl, err := db.Table(tableName)
	if err != nil {
		return nil, err
	}
	userCode, err := db.reg.GetOrCreateUser(userName)
	if err != nil {
		return nil, err
	}
	actionCode, err := db.reg.CodeOfAction("update")
	if err != nil {
		return nil, err
	}
	sess, err := merge.Begin(tbl, actionCode, userCode, policy)
	if err != nil {
		return nil, err
	}
	if active, ok := db.frames.Active(); ok {
		baseTS, err := tbl.LatestTimestamp()
		if err != nil {
			return nil, err
		}
		if err := db.frames.LogOperation(tableName, baseTS); err != nil {
			return nil, err
		}
		sess.WithFrame(active.ID)
	}
	return sess, nil
}

// CommitWrite commits a session and, on success, refreshes every index on
// its table so reads observe the write immediately (spec.md §4.5
// Maintenance).
func (db *Database) CommitWrite(tableName string, sess *merge.Session) merge.WriteOutcome {
	timer := metrics.NewTimer()
	outcome := sess.Commit()
	timer.ObserveDuration(metrics.CommitLatency)

	switch outcome.Kind {
	case merge.OutcomeSuccess:
		metrics.RecordWrite("success")
		if len(outcome.Conflicts) > 0 {
			for range outcome.Conflicts {
				metrics.RecordMergeConflict()
			}
		}
		if tbl, err := db.Table(tableName); err == nil {
			if img, err := tbl.ReadCurrentRows(); err == nil {
				_ = db.indices.Maintain(tableName, img)
			}
		}
	case merge.OutcomeConflict:
		metrics.RecordWrite("conflict")
		metrics.RecordMergeConflict()
	default:
		metrics.RecordWrite("error")
	}
	return outcome
}

// Execute parses and runs one SQL statement against its target table under
// userName, with the given conflict-resolution policy for any write it
// performs.
func (db *Database) Execute(sql, userName string, policy merge.Policy) (*query.Result, error) {
	p := query.NewParser()
	stmt, err := p.Parse(sql)
	if err != nil {
		return nil, err
	}

	var tableName string
	switch stmt.Kind {
	case query.StmtSelect:
		tableName = stmt.Select.Table
	case query.StmtInsert:
		tableName = stmt.Insert.Table
	case query.StmtUpdate:
		tableName = stmt.Update.Table
	case query.StmtDelete:
		tableName = stmt.Delete.Table
	}
	tbl, err := db.Table(tableName)
	if err != nil {
		return nil, err
	}

	if stmt.Kind == query.StmtSelect {
		return db.exec.Execute(stmt, tbl, 0, 0, policy, "")
	}

	userCode, err := db.reg.GetOrCreateUser(userName)
	if err != nil {
		return nil, err
	}
	actionCode, err := db.reg.CodeOfAction("update")
	if err != nil {
		return nil, err
	}

	var frameID string
	if active, ok := db.frames.Active(); ok {
		baseTS, err := tbl.LatestTimestamp()
		if err != nil {
			return nil, err
		}
		if err := db.frames.LogOperation(tableName, baseTS); err != nil {
			return nil, err
		}
		frameID = active.ID
	}

	timer := metrics.NewTimer()
	result, err := db.exec.Execute(stmt, tbl, actionCode, userCode, policy, frameID)
	timer.ObserveDuration(metrics.CommitLatency)
	if err != nil {
		metrics.RecordWrite("error")
		return nil, err
	}
	metrics.RecordWrite("success")
	if len(result.Conflicts) > 0 {
		for range result.Conflicts {
			metrics.RecordMergeConflict()
		}
	}
	if img, err := tbl.ReadCurrentRows(); err == nil {
		_ = db.indices.Maintain(tableName, img)
	}
	return result, nil
}

// BeginFrame opens a multi-table atomic frame (spec.md §4.7).
func (db *Database) BeginFrame(name string) (*frame.Frame, error) {
	return db.frames.Begin(name)
}

// CommitFrame closes the active frame, first collecting each touched
// table's current content hash so frame.Manager.Commit can write the
// per-table snapshot file alongside the catalogue record (spec.md §4.7/§6).
func (db *Database) CommitFrame() (*frame.Frame, error) {
	active, ok := db.frames.Active()
	if !ok {
		return nil, rerrors.Validation("no active frame")
	}
	hashes := make(map[string]string, len(active.TablesTouched))
	for _, tname := range active.TablesTouched {
		tbl, err := db.Table(tname)
		if err != nil {
			return nil, err
		}
		data, err := tbl.ReadCurrentBytes()
		if err != nil {
			return nil, err
		}
		hashes[tname] = table.ContentHash(data)
	}
	return db.frames.Commit(hashes)
}

// RollbackFrame rolls every table touched by frameID back to its
// pre-frame base timestamp, the same logic pkg/recovery applies to a
// crashed frame, invoked here on demand instead of at Open.
func (db *Database) RollbackFrame(frameID string) error {
	frames, err := db.frames.List()
	if err != nil {
		return err
	}
	var target *frame.Frame
	for _, f := range frames {
		if f.ID == frameID {
			target = f
			break
		}
	}
	if target == nil {
		return rerrors.NotFound("frame", frameID)
	}
	actionCode, err := db.reg.CodeOfAction("rollback")
	if err != nil {
		return err
	}
	for _, tname := range target.TablesTouched {
		tbl, err := db.Table(tname)
		if err != nil {
			continue
		}
		if _, err := tbl.RollbackTo(target.BaseTimestamps[tname], actionCode, registry.SystemUserCode); err != nil {
			return err
		}
	}
	return db.frames.MarkRolledBack(target.ID)
}

// ListFrames returns every frame in the catalogue.
func (db *Database) ListFrames() ([]*frame.Frame, error) {
	return db.frames.List()
}

// FrameStatus returns the committed frame with the largest commit
// timestamp at or before ts (point-in-time lookup, spec.md §4.7).
func (db *Database) FrameStatus(ts int64) (*frame.Frame, bool, error) {
	return db.frames.At(ts)
}

// FrameSnapshot returns the per-table content hashes recorded in a
// committed frame's snapshot file at the given commit timestamp.
func (db *Database) FrameSnapshot(timestamp int64) (map[string]string, error) {
	return db.frames.Snapshot(timestamp)
}

// CollectMetrics returns a point-in-time snapshot of engine counters.
func (db *Database) CollectMetrics() metrics.Snapshot {
	return metrics.Collect()
}

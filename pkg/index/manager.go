package index

import (
	"os"
	"path/filepath"
	"sync"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
	"github.com/reedbase/reedbase/pkg/rlog"
	"github.com/reedbase/reedbase/pkg/table"
)

// Descriptor identifies one index: the table and column it covers.
type Descriptor struct {
	Table  string
	Column string
}

func (d Descriptor) fileBase() string { return d.Table + "." + d.Column }

// Manager owns every index for a database, keyed by (table, column), and
// implements the "choice policy" and "maintenance" rules of spec.md §4.5.
// It is held by the top-level Database handle and referenced by table/
// column name — an arena, per spec.md §9's anti-cycle design note, not a
// web of back-pointers between Table and Index.
type Manager struct {
	dir            string
	hashMaxEntries int

	mu      sync.RWMutex
	indices map[Descriptor]Index
}

// NewManager creates a manager rooted at dir/indices.
func NewManager(dbDir string, hashMaxEntries int) (*Manager, error) {
	dir := filepath.Join(dbDir, "indices")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rerrors.IO("mkdir indices", err)
	}
	return &Manager{dir: dir, hashMaxEntries: hashMaxEntries, indices: make(map[Descriptor]Index)}, nil
}

// Create builds a new index on table.column by scanning tbl's current
// rows. backend, if empty, is chosen by the policy from spec.md §4.5: small
// tables get a hash index, larger ones (or when the caller explicitly asks
// for range support) get a B+-tree.
func (m *Manager) Create(tbl *table.Table, column string, columnIdx int, backend Backend) (Index, error) {
	desc := Descriptor{Table: tbl.Name, Column: column}

	m.mu.Lock()
	if _, exists := m.indices[desc]; exists {
		m.mu.Unlock()
		return nil, rerrors.AlreadyExists("index", desc.fileBase())
	}
	m.mu.Unlock()

	img, err := tbl.ReadCurrentRows()
	if err != nil {
		return nil, err
	}
	if backend == "" {
		backend = chooseBackend(len(img.Rows), m.hashMaxEntries)
	}

	idx, err := m.newBackend(desc, backend)
	if err != nil {
		return nil, err
	}
	if err := populate(idx, img, columnIdx); err != nil {
		idx.Close()
		return nil, err
	}

	m.mu.Lock()
	m.indices[desc] = idx
	m.mu.Unlock()
	rlog.Component("index").Info().Str("table", tbl.Name).Str("column", column).
		Str("backend", string(backend)).Int("rows", len(img.Rows)).Msg("index created")
	return idx, nil
}

// chooseBackend implements spec.md §4.5's policy: small tables get a hash
// index; larger ones, or ones where range queries matter, get a B+-tree.
// This function only sees row count — range-query need is decided by the
// caller passing an explicit backend to Create.
func chooseBackend(rowCount, hashMaxEntries int) Backend {
	if rowCount < hashMaxEntries {
		return BackendHash
	}
	return BackendBTree
}

func (m *Manager) newBackend(desc Descriptor, backend Backend) (Index, error) {
	switch backend {
	case BackendHash:
		return NewHashIndex(), nil
	case BackendBTree:
		// A new backend always starts from an empty file: any previous file
		// at this path is unlinked first, so Maintain and Rebuild populate a
		// fresh tree while the index being replaced keeps its own mapping of
		// the old file until it is closed.
		path := filepath.Join(m.dir, desc.fileBase()+".idx")
		os.Remove(path)
		os.Remove(walPath(path))
		return OpenBTree(path)
	default:
		return nil, rerrors.Validationf("unknown index backend %q", backend)
	}
}

func populate(idx Index, img *table.Image, columnIdx int) error {
	for rowID, row := range img.Rows {
		if columnIdx >= len(row.Values) {
			continue
		}
		if err := idx.Insert(row.Values[columnIdx], RowID(rowID)); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the index for table.column, and false if none exists.
func (m *Manager) Get(tableName, column string) (Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indices[Descriptor{Table: tableName, Column: column}]
	return idx, ok
}

// Drop removes and closes an index.
func (m *Manager) Drop(tableName, column string) error {
	desc := Descriptor{Table: tableName, Column: column}
	m.mu.Lock()
	idx, ok := m.indices[desc]
	if !ok {
		m.mu.Unlock()
		return rerrors.NotFound("index", desc.fileBase())
	}
	delete(m.indices, desc)
	m.mu.Unlock()

	if err := idx.Close(); err != nil {
		return err
	}
	if idx.Backend() == BackendBTree {
		path := filepath.Join(m.dir, desc.fileBase()+".idx")
		os.Remove(path)
		os.Remove(walPath(path))
	}
	return nil
}

// List returns every index currently registered.
func (m *Manager) List() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Descriptor, 0, len(m.indices))
	for d := range m.indices {
		out = append(out, d)
	}
	return out
}

// Maintain updates every index on tableName after a committed write.
// RowIDs are positions within a table's current image, and any write can
// shift rows other than the ones actually changed (spec.md's row-level
// image has no stable surrogate id), so maintenance re-derives each
// affected index from newImg wholesale rather than patching individual
// entries — the same shadow-build-then-swap mechanism as Rebuild, just
// triggered automatically after a write instead of on demand.
func (m *Manager) Maintain(tableName string, newImg *table.Image) error {
	m.mu.RLock()
	type work struct {
		desc Descriptor
		idx  Index
	}
	var todo []work
	for d, idx := range m.indices {
		if d.Table == tableName {
			todo = append(todo, work{d, idx})
		}
	}
	m.mu.RUnlock()

	for _, w := range todo {
		colIdx := headerIndex(newImg.Header, w.desc.Column)
		if colIdx < 0 {
			continue
		}
		fresh, err := m.newBackend(w.desc, w.idx.Backend())
		if err != nil {
			return err
		}
		if err := populate(fresh, newImg, colIdx); err != nil {
			fresh.Close()
			return err
		}
		m.mu.Lock()
		m.indices[w.desc] = fresh
		m.mu.Unlock()
		if err := w.idx.Close(); err != nil {
			return err
		}
	}
	return nil
}

func headerIndex(header []string, column string) int {
	for i, h := range header {
		if h == column {
			return i
		}
	}
	return -1
}

// Rebuild fully rebuilds an index from a table's current rows by writing to
// a shadow backend and atomically swapping it in, so reads proceed
// uninterrupted (spec.md §4.5 Maintenance).
func (m *Manager) Rebuild(tbl *table.Table, column string, columnIdx int) error {
	desc := Descriptor{Table: tbl.Name, Column: column}

	m.mu.RLock()
	old, ok := m.indices[desc]
	m.mu.RUnlock()
	if !ok {
		return rerrors.NotFound("index", desc.fileBase())
	}

	img, err := tbl.ReadCurrentRows()
	if err != nil {
		return err
	}
	backend := old.Backend()
	fresh, err := m.newBackend(desc, backend)
	if err != nil {
		return err
	}
	if err := populate(fresh, img, columnIdx); err != nil {
		fresh.Close()
		return err
	}

	m.mu.Lock()
	m.indices[desc] = fresh
	m.mu.Unlock()

	return old.Close()
}

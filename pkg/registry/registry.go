// Package registry implements C1: the integer-coded action/user dictionaries
// and the process-wide database catalogue (spec.md §4.1).
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
	"github.com/reedbase/reedbase/pkg/rlog"
)

// Fixed action vocabulary seeded at init, per spec.md §4.1.
var defaultActions = []string{
	"delete", "create", "update", "rollback", "compact",
	"init", "snapshot", "automerge", "conflict", "resolve", "recovery",
}

// SystemUserCode is reserved for the "system" actor.
const SystemUserCode = 0

// Mode is the storage mode of a catalogued database.
type Mode string

const (
	ModeLocal        Mode = "local"
	ModeGlobal       Mode = "global"
	ModeDistributed  Mode = "distributed"
)

// DatabaseEntry is one row of the database catalogue (spec.md §3 Registry).
type DatabaseEntry struct {
	Name      string    `toml:"name"`
	Mode      Mode      `toml:"mode"`
	Path      string    `toml:"path"`
	Peers     []string  `toml:"peers,omitempty"`
	CreatedAt time.Time `toml:"created_at"`
}

type catalogueFile struct {
	Databases []DatabaseEntry `toml:"database"`
}

// Registry is the process-wide catalogue of known databases plus the action
// and user dictionaries. A Registry is shared via an explicit handle
// returned by Open (spec.md §9 — no package-level singleton); the package
// keeps no process-global instance.
type Registry struct {
	root string

	Actions *Dictionary
	Users   *Dictionary

	catMu     sync.RWMutex
	cataloguePath string
	catalogue map[string]DatabaseEntry
}

// Open loads (creating if absent) the registry rooted at dir/registry.
func Open(dir string) (*Registry, error) {
	regDir := filepath.Join(dir, "registry")
	if err := os.MkdirAll(regDir, 0o755); err != nil {
		return nil, rerrors.IO("mkdir registry", err)
	}

	actions, err := OpenDictionary(filepath.Join(regDir, "actions.dict"), defaultActions)
	if err != nil {
		return nil, err
	}
	users, err := OpenDictionary(filepath.Join(regDir, "users.dict"), []string{"system"})
	if err != nil {
		return nil, err
	}
	if code, _ := users.CodeOf("system"); code != SystemUserCode {
		rlog.Component("registry").Warn().Int("code", code).Msg("system user code drifted from 0")
	}

	r := &Registry{
		root:          dir,
		Actions:       actions,
		Users:         users,
		cataloguePath: filepath.Join(regDir, "databases.toml"),
		catalogue:     make(map[string]DatabaseEntry),
	}
	if err := r.reloadCatalogueLocked(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return r, nil
}

// GetOrCreateUser is idempotent: concurrent callers with the same name
// always receive the same code.
func (r *Registry) GetOrCreateUser(name string) (int, error) {
	return r.Users.GetOrCreate(name)
}

// NameOfAction resolves an action code.
func (r *Registry) NameOfAction(code int) (string, error) { return r.Actions.NameOf(code) }

// CodeOfAction resolves an action name; actions are a fixed vocabulary so
// failure to find one is a programmer error surfaced as NotFound.
func (r *Registry) CodeOfAction(name string) (int, error) { return r.Actions.CodeOf(name) }

// Reload hot-swaps both dictionaries and the database catalogue.
func (r *Registry) Reload() error {
	if err := r.Actions.Reload(); err != nil {
		return err
	}
	if err := r.Users.Reload(); err != nil {
		return err
	}
	return r.reloadCatalogueLocked()
}

func (r *Registry) reloadCatalogueLocked() error {
	data, err := os.ReadFile(r.cataloguePath)
	if err != nil {
		return err
	}
	var cf catalogueFile
	if err := toml.Unmarshal(data, &cf); err != nil {
		return rerrors.Parse(r.cataloguePath, -1, err.Error())
	}
	m := make(map[string]DatabaseEntry, len(cf.Databases))
	for _, e := range cf.Databases {
		m[e.Name] = e
	}
	r.catMu.Lock()
	r.catalogue = m
	r.catMu.Unlock()
	return nil
}

// RegisterDatabase adds or updates a catalogue entry and persists it via
// atomic rename.
func (r *Registry) RegisterDatabase(e DatabaseEntry) error {
	r.catMu.Lock()
	defer r.catMu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	r.catalogue[e.Name] = e
	return r.flushCatalogueLocked()
}

// ResolveDatabase returns the path and mode of a catalogued database by
// name.
func (r *Registry) ResolveDatabase(name string) (path string, mode Mode, err error) {
	r.catMu.RLock()
	defer r.catMu.RUnlock()
	e, ok := r.catalogue[name]
	if !ok {
		return "", "", rerrors.NotFound("database", name)
	}
	return e.Path, e.Mode, nil
}

// ListDatabases returns all catalogued databases.
func (r *Registry) ListDatabases() []DatabaseEntry {
	r.catMu.RLock()
	defer r.catMu.RUnlock()
	out := make([]DatabaseEntry, 0, len(r.catalogue))
	for _, e := range r.catalogue {
		out = append(out, e)
	}
	return out
}

func (r *Registry) flushCatalogueLocked() error {
	entries := make([]DatabaseEntry, 0, len(r.catalogue))
	for _, e := range r.catalogue {
		entries = append(entries, e)
	}
	data, err := toml.Marshal(catalogueFile{Databases: entries})
	if err != nil {
		return fmt.Errorf("marshal catalogue: %w", err)
	}
	return atomicWriteFile(r.cataloguePath, data)
}

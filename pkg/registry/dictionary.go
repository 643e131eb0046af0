package registry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// Dictionary is an append-only, atomically-persisted bidirectional mapping
// between a small integer code and a name. It backs both the action-code
// and user-code registries described in spec.md §4.1.
//
// Reload is a read-side hot-swap: a reader holding the RLock sees either
// the old map or the new one in full, never a torn mix, because Reload
// builds the replacement maps off to the side and only takes the write
// lock to swap the two pointers in.
type Dictionary struct {
	path string

	mu        sync.RWMutex
	nameByCod map[int]string
	codeByNam map[string]int
	next      int
}

// OpenDictionary loads path if it exists, or creates an empty dictionary
// file there. seed pre-populates fixed codes (e.g. the action names) on
// first creation only; it is ignored on reload of an existing file.
func OpenDictionary(path string, seed []string) (*Dictionary, error) {
	d := &Dictionary{
		path:      path,
		nameByCod: make(map[int]string),
		codeByNam: make(map[string]int),
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, rerrors.IO("mkdir", err)
		}
		for _, name := range seed {
			if _, _, err := d.getOrCreateLocked(name); err != nil {
				return nil, err
			}
		}
		if err := d.flushLocked(); err != nil {
			return nil, err
		}
		return d, nil
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the backing file and atomically swaps in the new state.
func (d *Dictionary) Reload() error {
	f, err := os.Open(d.path)
	if err != nil {
		return rerrors.IO("open dictionary", err)
	}
	defer f.Close()

	nameByCod := make(map[int]string)
	codeByNam := make(map[string]int)
	next := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		code, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		nameByCod[code] = parts[1]
		codeByNam[parts[1]] = code
		if code >= next {
			next = code + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return rerrors.IO("scan dictionary", err)
	}

	d.mu.Lock()
	d.nameByCod = nameByCod
	d.codeByNam = codeByNam
	d.next = next
	d.mu.Unlock()
	return nil
}

// NameOf resolves a code to its name.
func (d *Dictionary) NameOf(code int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.nameByCod[code]
	if !ok {
		return "", rerrors.NotFound("dictionary code", strconv.Itoa(code))
	}
	return name, nil
}

// CodeOf resolves a name to its code without allocating one.
func (d *Dictionary) CodeOf(name string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	code, ok := d.codeByNam[name]
	if !ok {
		return 0, rerrors.NotFound("dictionary name", name)
	}
	return code, nil
}

// GetOrCreate is idempotent and thread-safe: concurrent callers asking for
// the same name always receive the same code, and a newly allocated code
// is durably persisted before the call returns.
func (d *Dictionary) GetOrCreate(name string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	code, created, err := d.getOrCreateLocked(name)
	if err != nil {
		return 0, err
	}
	if created {
		if err := d.flushLocked(); err != nil {
			return 0, err
		}
	}
	return code, nil
}

func (d *Dictionary) getOrCreateLocked(name string) (code int, created bool, err error) {
	if code, ok := d.codeByNam[name]; ok {
		return code, false, nil
	}
	code = d.next
	d.next++
	d.nameByCod[code] = name
	d.codeByNam[name] = code
	return code, true, nil
}

// flushLocked writes the full dictionary via write-temp-then-atomic-rename,
// the same durability pattern used by table writes (spec.md §4.2).
func (d *Dictionary) flushLocked() error {
	var sb strings.Builder
	for code := 0; code < d.next; code++ {
		name, ok := d.nameByCod[code]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%d|%s\n", code, name)
	}
	return atomicWriteFile(d.path, []byte(sb.String()))
}

// atomicWriteFile writes data to a temp file in the same directory, fsyncs
// it, and renames it over path — the write-temp-then-rename pattern spec.md
// §4.2 mandates for every durable artifact.
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

package frame

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

const catalogueFileName = "index.csv"

func snapshotPath(dir string, ts int64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snapshot.csv", ts))
}

// catalogue is the on-disk, append-ordered frame index. A frame's record is
// appended when the frame begins (fast path, fsync'd immediately); every
// later change to that record (a table logged, commit, rollback, crash)
// rewrites the whole file via the write-temp-fsync-rename pattern used
// throughout the engine
// (pkg/registry/dictionary.go, pkg/table/table.go).
type catalogue struct {
	dir  string
	path string
	mu   sync.RWMutex
}

func openCatalogue(dbDir string) (*catalogue, error) {
	dir := filepath.Join(dbDir, "frames")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rerrors.IO("mkdir frames", err)
	}
	path := filepath.Join(dir, catalogueFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, rerrors.IO("create frame catalogue", err)
		}
		f.Close()
	}
	return &catalogue{dir: dir, path: path}, nil
}

func (c *catalogue) append(f *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return rerrors.IO("open frame catalogue", err)
	}
	defer file.Close()
	if _, err := file.WriteString(encodeFrame(f) + "\n"); err != nil {
		return rerrors.IO("append frame catalogue", err)
	}
	return file.Sync()
}

// writeSnapshot persists frames/{f.Timestamp}.snapshot.csv, one
// table|timestamp|content_hash|frame_id row per table in f.TablesTouched,
// write-temp-then-rename as elsewhere in the engine.
func (c *catalogue) writeSnapshot(f *Frame) error {
	var sb strings.Builder
	for _, t := range f.TablesTouched {
		sb.WriteString(strings.Join([]string{
			t,
			strconv.FormatInt(f.Timestamp, 10),
			f.CommitHashes[t],
			f.ID,
		}, "|"))
		sb.WriteByte('\n')
	}
	path := snapshotPath(c.dir, f.Timestamp)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return rerrors.IO("write frame snapshot", err)
	}
	if fh, err := os.OpenFile(tmp, os.O_RDWR, 0o644); err == nil {
		fh.Sync()
		fh.Close()
	}
	if err := os.Rename(tmp, path); err != nil {
		return rerrors.IO("rename frame snapshot", err)
	}
	return nil
}

// readSnapshot parses a previously-written snapshot file back into a
// table -> content hash map, for verifying or restoring a committed
// frame's exact content independently of the catalogue record.
func readSnapshot(dir string, ts int64) (map[string]string, error) {
	data, err := os.ReadFile(snapshotPath(dir, ts))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerrors.NotFound("frame snapshot", strconv.FormatInt(ts, 10))
		}
		return nil, rerrors.IO("read frame snapshot", err)
	}
	hashes := make(map[string]string)
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 4 {
			return nil, rerrors.Parse("frame snapshot line", 0, "expected 4 fields")
		}
		hashes[parts[0]] = parts[2]
	}
	return hashes, nil
}

func (c *catalogue) all() ([]*Frame, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readAllLocked()
}

func (c *catalogue) readAllLocked() ([]*Frame, error) {
	file, err := os.Open(c.path)
	if err != nil {
		return nil, rerrors.IO("open frame catalogue", err)
	}
	defer file.Close()

	var frames []*Frame
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		f, err := decodeFrame(line)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, rerrors.IO("scan frame catalogue", err)
	}
	return frames, nil
}

// latestAtOrBefore considers committed frames only. Their records are in
// ascending Timestamp order, because at most one frame is active at a time
// and so frames commit in the order their records were appended; frames of
// any other status carry timestamp 0 and are skipped.
func (c *catalogue) latestAtOrBefore(ts int64) (*Frame, bool, error) {
	all, err := c.all()
	if err != nil {
		return nil, false, err
	}
	var frames []*Frame
	for _, f := range all {
		if f.Status == StatusCommitted {
			frames = append(frames, f)
		}
	}
	idx := sort.Search(len(frames), func(i int) bool { return frames[i].Timestamp > ts })
	if idx == 0 {
		return nil, false, nil
	}
	return frames[idx-1], true, nil
}

func (c *catalogue) updateStatus(frameID string, status Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames, err := c.readAllLocked()
	if err != nil {
		return err
	}
	found := false
	for _, f := range frames {
		if f.ID == frameID {
			f.Status = status
			found = true
			break
		}
	}
	if !found {
		return rerrors.NotFound("frame", frameID)
	}
	return c.rewriteLocked(frames)
}

// replace overwrites the full record for f.ID (status, timestamps, touched
// tables) in place, preserving catalogue order. Used both when a frame's
// bookkeeping changes mid-flight (LogOperation) and when it finalizes
// (Commit). Status-only changes (MarkRolledBack, MarkCrashed) go through
// updateStatus.
func (c *catalogue) replace(f *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames, err := c.readAllLocked()
	if err != nil {
		return err
	}
	found := false
	for i, existing := range frames {
		if existing.ID == f.ID {
			frames[i] = f
			found = true
			break
		}
	}
	if !found {
		return rerrors.NotFound("frame", f.ID)
	}
	return c.rewriteLocked(frames)
}

func (c *catalogue) rewriteLocked(frames []*Frame) error {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString(encodeFrame(f))
		sb.WriteByte('\n')
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return rerrors.IO("write frame catalogue", err)
	}
	f, err := os.OpenFile(tmp, os.O_RDWR, 0o644)
	if err == nil {
		f.Sync()
		f.Close()
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return rerrors.IO("rename frame catalogue", err)
	}
	return nil
}

// encodeFrame serializes a Frame as one pipe-delimited line:
// id|timestamp|name|status|startedAt|committedAt|tables(comma)|baseTimestamps(table=ts,...)
func encodeFrame(f *Frame) string {
	tables := strings.Join(f.TablesTouched, ",")
	baseParts := make([]string, 0, len(f.BaseTimestamps))
	for _, t := range f.TablesTouched {
		baseParts = append(baseParts, fmt.Sprintf("%s=%d", t, f.BaseTimestamps[t]))
	}
	bases := strings.Join(baseParts, ",")
	return strings.Join([]string{
		f.ID,
		strconv.FormatInt(f.Timestamp, 10),
		f.Name,
		string(f.Status),
		strconv.FormatInt(f.StartedAt, 10),
		strconv.FormatInt(f.CommittedAt, 10),
		tables,
		bases,
	}, "|")
}

func decodeFrame(line string) (*Frame, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 8 {
		return nil, rerrors.Parse("frame catalogue line", 0, "expected 8 fields")
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, rerrors.Parse("frame timestamp", 1, err.Error())
	}
	startedAt, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return nil, rerrors.Parse("frame startedAt", 4, err.Error())
	}
	committedAt, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return nil, rerrors.Parse("frame committedAt", 5, err.Error())
	}
	f := &Frame{
		ID:             parts[0],
		Timestamp:      ts,
		Name:           parts[2],
		Status:         Status(parts[3]),
		StartedAt:      startedAt,
		CommittedAt:    committedAt,
		BaseTimestamps: make(map[string]int64),
	}
	if parts[6] != "" {
		f.TablesTouched = strings.Split(parts[6], ",")
	}
	if parts[7] != "" {
		for _, kv := range strings.Split(parts[7], ",") {
			eq := strings.IndexByte(kv, '=')
			if eq < 0 {
				continue
			}
			bts, err := strconv.ParseInt(kv[eq+1:], 10, 64)
			if err != nil {
				continue
			}
			f.BaseTimestamps[kv[:eq]] = bts
		}
	}
	return f, nil
}

package table

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// VersionLogEntry is one immutable record of version.log (spec.md §3).
// Per the open question in spec.md §9, ReedBase standardizes on SHA-256 for
// content-integrity hashes, reserving CRC32 for the B+-tree's per-page
// structural checksums in pkg/index.
type VersionLogEntry struct {
	Timestamp    int64
	ActionCode   int
	UserCode     int
	BaseTS       int64
	DeltaSize    int64
	RowsChanged  int
	ContentHash  string // hex-encoded SHA-256
	FrameID      string // optional; empty when not frame-linked
}

// ContentHash returns the hex SHA-256 of data, the value stored in every
// version-log entry and compared against current.csv at rest (invariant 1).
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Encode renders the entry in the on-disk line format from spec.md §6:
// timestamp|action_code|user_code|base_timestamp|delta_size|rows_changed|content_hash[|frame_id]
func (e VersionLogEntry) Encode() string {
	base := fmt.Sprintf("%d|%d|%d|%d|%d|%d|%s",
		e.Timestamp, e.ActionCode, e.UserCode, e.BaseTS, e.DeltaSize, e.RowsChanged, e.ContentHash)
	if e.FrameID != "" {
		return base + "|" + e.FrameID
	}
	return base
}

// ParseVersionLogLine parses one line, tolerating an optional trailing
// frame_id field for forward compatibility (spec.md §6).
func ParseVersionLogLine(line string) (VersionLogEntry, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 7 && len(parts) != 8 {
		return VersionLogEntry{}, rerrors.Parse(line, -1, "expected 7 or 8 fields")
	}
	ints := make([]int64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil {
			return VersionLogEntry{}, rerrors.Parse(line, i, "expected integer field")
		}
		ints[i] = v
	}
	e := VersionLogEntry{
		Timestamp:   ints[0],
		ActionCode:  int(ints[1]),
		UserCode:    int(ints[2]),
		BaseTS:      ints[3],
		DeltaSize:   ints[4],
		RowsChanged: int(ints[5]),
		ContentHash: parts[6],
	}
	if len(parts) == 8 {
		e.FrameID = parts[7]
	}
	return e, nil
}

// VersionLog wraps append-only reads/writes of a table's version.log.
type VersionLog struct {
	path string
}

func NewVersionLog(path string) *VersionLog { return &VersionLog{path: path} }

// Append writes entry as a new line, fsyncing before returning, per
// spec.md §4.2 step 3.
func (l *VersionLog) Append(entry VersionLogEntry) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return rerrors.IO("open version.log", err)
	}
	defer f.Close()
	if _, err := f.WriteString(entry.Encode() + "\n"); err != nil {
		return rerrors.IO("append version.log", err)
	}
	return f.Sync()
}

// ReadAll parses every entry, oldest first (file order).
func (l *VersionLog) ReadAll() ([]VersionLogEntry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rerrors.IO("open version.log", err)
	}
	defer f.Close()

	var entries []VersionLogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := ParseVersionLogLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, rerrors.IO("scan version.log", err)
	}
	return entries, nil
}

// Last returns the most recent entry, or ok=false if the log is empty.
func (l *VersionLog) Last() (entry VersionLogEntry, ok bool, err error) {
	entries, err := l.ReadAll()
	if err != nil {
		return VersionLogEntry{}, false, err
	}
	if len(entries) == 0 {
		return VersionLogEntry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

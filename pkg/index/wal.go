package index

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// walOp mirrors the two mutating B+-tree operations.
type walOp byte

const (
	walInsert walOp = 0
	walDelete walOp = 1
)

type walEntry struct {
	Op  walOp
	Key string
	Row RowID // only meaningful for Insert/Delete of a single row id
}

// wal is the B+-tree's companion write-ahead log (spec.md §4.5). Every
// mutation is logged and fsynced before the mmap'd tree is touched; after
// the tree's msync succeeds the WAL is truncated. Replay entries are
// idempotent because they re-apply Insert/Delete against whatever state the
// tree is in, and Insert/Delete are themselves idempotent operations (an
// already-present row id is a no-op, a missing one on Delete is a no-op).
type wal struct {
	path string
	file *os.File
}

func openWAL(path string) (*wal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, rerrors.IO("open wal", err)
	}
	return &wal{path: path, file: f}, nil
}

func (w *wal) append(e walEntry) error {
	var buf []byte
	buf = append(buf, byte(e.Op))
	var tmp [8]byte
	n := binary.PutUvarint(tmp[:], uint64(len(e.Key)))
	buf = append(buf, tmp[:n]...)
	buf = append(buf, e.Key...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(e.Row))
	buf = append(buf, tmp[:8]...)

	if _, err := w.file.Write(buf); err != nil {
		return rerrors.IO("append wal", err)
	}
	return w.file.Sync()
}

// replay reads every entry in order and returns them for the B+-tree to
// re-apply on open.
func (w *wal) replay() ([]walEntry, error) {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, rerrors.IO("seek wal", err)
	}
	r := bufio.NewReader(w.file)
	var entries []walEntry
	for {
		opByte, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rerrors.IO("read wal", err)
		}
		keyLen, err := binary.ReadUvarint(r)
		if err != nil {
			break // truncated tail entry from a crash mid-append; ignore it
		}
		keyBuf := make([]byte, keyLen)
		if _, err := io.ReadFull(r, keyBuf); err != nil {
			break
		}
		var rowBuf [8]byte
		if _, err := io.ReadFull(r, rowBuf[:]); err != nil {
			break
		}
		entries = append(entries, walEntry{
			Op:  walOp(opByte),
			Key: string(keyBuf),
			Row: RowID(binary.LittleEndian.Uint64(rowBuf[:])),
		})
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return nil, rerrors.IO("seek wal", err)
	}
	return entries, nil
}

// truncate empties the WAL after a successful msync.
func (w *wal) truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return rerrors.IO("truncate wal", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return rerrors.IO("seek wal", err)
	}
	return nil
}

func (w *wal) close() error {
	return w.file.Close()
}

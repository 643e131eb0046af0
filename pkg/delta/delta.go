// Package delta implements C3: a stateless, thread-safe binary diff/patch
// codec between two CSV byte images, plus the compression wrapper used to
// store deltas on disk (spec.md §4.3).
//
// No binary-diff library exists anywhere in the reference corpus, so the
// diff/patch algorithm itself is hand-written here; see DESIGN.md. It
// follows the same shape as rsync's rolling-checksum delta algorithm
// (fitting, since spec.md's out-of-scope P2P sync daemon is rsync-based):
// weak-hash the old image into fixed-size blocks, then slide a matching
// window over the new image, emitting Copy ops for matched regions and
// Insert ops for the literal bytes in between.
package delta

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

const blockSize = 64

// magic tags the start of every patch so Patch() can reject garbage before
// it starts indexing into old.
var magic = [4]byte{'R', 'B', 'D', '1'}

type opTag byte

const (
	opCopy   opTag = 0
	opInsert opTag = 1
)

// Diff computes a binary patch that, applied to old, yields new. Time is
// O(len(old)+len(new)): old is indexed once into a block hash map, then new
// is scanned once extending matches greedily.
func Diff(old, new []byte) []byte {
	index := indexBlocks(old)

	var ops bytes.Buffer
	var literal []byte

	flushLiteral := func() {
		if len(literal) == 0 {
			return
		}
		writeOp(&ops, opInsert, 0, literal)
		literal = nil
	}

	i := 0
	for i < len(new) {
		matched := false
		if i+blockSize <= len(new) {
			h := weakHash(new[i : i+blockSize])
			for _, off := range index[h] {
				if off+blockSize > len(old) {
					continue
				}
				if !bytes.Equal(old[off:off+blockSize], new[i:i+blockSize]) {
					continue
				}
				// Extend the match forward only: backward extension would
				// reclaim bytes already flushed into the pending literal
				// buffer and double-count them. Forward-only extension is
				// simpler and still keeps output proportional to edit
				// distance for the append/insert-heavy edits this engine
				// sees in practice (translations, routes, metadata rows).
				start, end := off, off+blockSize
				nj := i + blockSize
				for end < len(old) && nj < len(new) && old[end] == new[nj] {
					end++
					nj++
				}
				flushLiteral()
				writeOp(&ops, opCopy, start, old[start:end])
				i = nj
				matched = true
				break
			}
		}
		if !matched {
			literal = append(literal, new[i])
			i++
		}
	}
	flushLiteral()

	var patch bytes.Buffer
	patch.Write(magic[:])
	var lenBuf [8]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(new)))
	patch.Write(lenBuf[:n])
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc32.ChecksumIEEE(new))
	patch.Write(crcBuf[:])
	patch.Write(ops.Bytes())
	return patch.Bytes()
}

func writeOp(buf *bytes.Buffer, tag opTag, offset int, data []byte) {
	buf.WriteByte(byte(tag))
	var tmp [8]byte
	if tag == opCopy {
		n := binary.PutUvarint(tmp[:], uint64(offset))
		buf.Write(tmp[:n])
	}
	n := binary.PutUvarint(tmp[:], uint64(len(data)))
	buf.Write(tmp[:n])
	buf.Write(data)
}

// Patch applies patch to old, returning the reconstructed new image.
// apply(old, Diff(old, new)) == new byte-exact, per spec.md invariant 2.
func Patch(old, patch []byte) ([]byte, error) {
	r := bytes.NewReader(patch)
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil || got != magic {
		return nil, rerrors.Corruption("delta", "bad patch magic")
	}
	newLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, rerrors.Corruption("delta", "truncated patch header")
	}
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, rerrors.Corruption("delta", "truncated patch header")
	}
	wantCRC := binary.LittleEndian.Uint32(crcBuf[:])

	out := make([]byte, 0, newLen)
	for {
		tagByte, err := r.ReadByte()
		if err != nil {
			break
		}
		switch opTag(tagByte) {
		case opCopy:
			offset, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, rerrors.Corruption("delta", "truncated copy op")
			}
			n, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, rerrors.Corruption("delta", "truncated copy op")
			}
			lo, hi := int(offset), int(offset+n)
			if hi > len(old) || lo > hi {
				return nil, rerrors.Corruption("delta", "copy op out of range")
			}
			out = append(out, old[lo:hi]...)
		case opInsert:
			n, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, rerrors.Corruption("delta", "truncated insert op")
			}
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, rerrors.Corruption("delta", "truncated insert payload")
			}
			out = append(out, buf...)
		default:
			return nil, rerrors.Corruption("delta", "unknown op tag")
		}
	}

	if uint64(len(out)) != newLen {
		return nil, rerrors.Corruption("delta", "reconstructed length mismatch")
	}
	if crc32.ChecksumIEEE(out) != wantCRC {
		return nil, rerrors.Corruption("delta", "reconstructed image fails internal CRC")
	}
	return out, nil
}

func weakHash(block []byte) uint32 {
	return crc32.ChecksumIEEE(block)
}

// indexBlocks builds a map from the weak hash of every aligned blockSize-byte
// block in data to the block's starting offsets.
func indexBlocks(data []byte) map[uint32][]int {
	index := make(map[uint32][]int)
	for off := 0; off+blockSize <= len(data); off += blockSize {
		h := weakHash(data[off : off+blockSize])
		index[h] = append(index[h], off)
	}
	return index
}

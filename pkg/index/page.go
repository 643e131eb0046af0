package index

import (
	"encoding/binary"
	"hash/crc32"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// PageSize is the fixed B+-tree page size from spec.md §4.5.
const PageSize = 4096

// HeaderSize is the fixed 32-byte page header size.
const HeaderSize = 32

// BodySize is the usable payload per page.
const BodySize = PageSize - HeaderSize

// PageMagic is the bit-exact magic required by spec.md §6.
const PageMagic uint32 = 0xB7EE7EE1

// PageType distinguishes internal nodes from leaves.
type PageType byte

const (
	PageInternal PageType = 0
	PageLeaf     PageType = 1
)

// pageHeader is the 32-byte page header, bit-exact per spec.md §6:
// magic(4) type(1) numKeys(2) nextLeafPage(4) crc32(4) reserved(17).
type pageHeader struct {
	Magic        uint32
	Type         PageType
	NumKeys      uint16
	NextLeafPage uint32
	CRC32        uint32
}

func encodeHeader(h pageHeader, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = byte(h.Type)
	binary.LittleEndian.PutUint16(buf[5:7], h.NumKeys)
	binary.LittleEndian.PutUint32(buf[7:11], h.NextLeafPage)
	binary.LittleEndian.PutUint32(buf[11:15], h.CRC32)
	for i := 15; i < HeaderSize; i++ {
		buf[i] = 0
	}
}

func decodeHeader(buf []byte) pageHeader {
	return pageHeader{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Type:         PageType(buf[4]),
		NumKeys:      binary.LittleEndian.Uint16(buf[5:7]),
		NextLeafPage: binary.LittleEndian.Uint32(buf[7:11]),
		CRC32:        binary.LittleEndian.Uint32(buf[11:15]),
	}
}

// leafEntry is one key -> row-id-set pair inside a leaf page body.
type leafEntry struct {
	Key  string
	Rows RowSet
}

// encodeLeafBody serializes entries (already sorted by Key) into a
// BodySize-capped buffer. Returns false if they do not fit.
func encodeLeafBody(entries []leafEntry) ([]byte, bool) {
	buf := make([]byte, 0, BodySize)
	var tmp [8]byte
	for _, e := range entries {
		need := 2 + len(e.Key) + 2 + 8*len(e.Rows)
		if len(buf)+need > BodySize {
			return nil, false
		}
		binary.LittleEndian.PutUint16(tmp[:2], uint16(len(e.Key)))
		buf = append(buf, tmp[:2]...)
		buf = append(buf, e.Key...)
		binary.LittleEndian.PutUint16(tmp[:2], uint16(len(e.Rows)))
		buf = append(buf, tmp[:2]...)
		for _, r := range e.Rows {
			binary.LittleEndian.PutUint64(tmp[:8], uint64(r))
			buf = append(buf, tmp[:8]...)
		}
	}
	return buf, true
}

func decodeLeafBody(buf []byte, numKeys uint16) ([]leafEntry, error) {
	entries := make([]leafEntry, 0, numKeys)
	off := 0
	for i := uint16(0); i < numKeys; i++ {
		if off+2 > len(buf) {
			return nil, rerrors.Corruption("index", "truncated leaf entry key length")
		}
		keyLen := int(binary.LittleEndian.Uint16(buf[off : off+2]))
		off += 2
		if off+keyLen > len(buf) {
			return nil, rerrors.Corruption("index", "truncated leaf entry key")
		}
		key := string(buf[off : off+keyLen])
		off += keyLen
		if off+2 > len(buf) {
			return nil, rerrors.Corruption("index", "truncated leaf entry row count")
		}
		numRows := int(binary.LittleEndian.Uint16(buf[off : off+2]))
		off += 2
		rows := make(RowSet, numRows)
		for j := 0; j < numRows; j++ {
			if off+8 > len(buf) {
				return nil, rerrors.Corruption("index", "truncated leaf entry rows")
			}
			rows[j] = RowID(binary.LittleEndian.Uint64(buf[off : off+8]))
			off += 8
		}
		entries = append(entries, leafEntry{Key: key, Rows: rows})
	}
	return entries, nil
}

// internalEntry is one separator key inside an internal page; Children has
// len(Keys)+1 entries.
type internalBody struct {
	Keys     []string
	Children []uint32
}

func encodeInternalBody(b internalBody) ([]byte, bool) {
	buf := make([]byte, 0, BodySize)
	var tmp [4]byte
	for i, k := range b.Keys {
		need := 2 + len(k) + 4
		if len(buf)+need > BodySize {
			return nil, false
		}
		binary.LittleEndian.PutUint16(tmp[:2], uint16(len(k)))
		buf = append(buf, tmp[:2]...)
		buf = append(buf, k...)
		binary.LittleEndian.PutUint32(tmp[:4], b.Children[i])
		buf = append(buf, tmp[:4]...)
	}
	// final child pointer, no preceding key
	if len(buf)+4 > BodySize {
		return nil, false
	}
	binary.LittleEndian.PutUint32(tmp[:4], b.Children[len(b.Keys)])
	buf = append(buf, tmp[:4]...)
	return buf, true
}

func decodeInternalBody(buf []byte, numKeys uint16) (internalBody, error) {
	b := internalBody{Keys: make([]string, 0, numKeys), Children: make([]uint32, 0, numKeys+1)}
	off := 0
	for i := uint16(0); i < numKeys; i++ {
		if off+2 > len(buf) {
			return b, rerrors.Corruption("index", "truncated internal key length")
		}
		keyLen := int(binary.LittleEndian.Uint16(buf[off : off+2]))
		off += 2
		if off+keyLen > len(buf) {
			return b, rerrors.Corruption("index", "truncated internal key")
		}
		key := string(buf[off : off+keyLen])
		off += keyLen
		if off+4 > len(buf) {
			return b, rerrors.Corruption("index", "truncated internal child pointer")
		}
		child := binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
		b.Keys = append(b.Keys, key)
		b.Children = append(b.Children, child)
	}
	if off+4 > len(buf) {
		return b, rerrors.Corruption("index", "truncated internal final child pointer")
	}
	b.Children = append(b.Children, binary.LittleEndian.Uint32(buf[off:off+4]))
	return b, nil
}

func bodyChecksum(body []byte) uint32 {
	return crc32.ChecksumIEEE(body)
}

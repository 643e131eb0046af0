package delta

import (
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/zstd"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// Compression buffers (the zstd encoder/decoder pair) are thread-local per
// spec.md §5's shared-resource policy, to avoid contention on the shared
// compressor state under concurrent writers.
var (
	encoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil)
		return enc
	}}
	decoderPool = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	}}
)

// EncodeFile compresses a patch (as produced by Diff) and wraps it with a
// leading 4-byte CRC32 of the compressed bytes, per spec.md §4.2's "the
// compressed file on disk is additionally CRC32'd".
func EncodeFile(patch []byte) []byte {
	enc := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(enc)

	compressed := enc.EncodeAll(patch, nil)
	enc.Close() // flush internal state; safe to reuse after Reset below
	enc.Reset(nil)

	out := make([]byte, 4+len(compressed))
	binary.LittleEndian.PutUint32(out[:4], crc32.ChecksumIEEE(compressed))
	copy(out[4:], compressed)
	return out
}

// DecodeFile validates the outer CRC32 and decompresses back to the raw
// patch bytes Diff produced.
func DecodeFile(encoded []byte) ([]byte, error) {
	if len(encoded) < 4 {
		return nil, rerrors.Corruption("delta", "delta file too short")
	}
	wantCRC := binary.LittleEndian.Uint32(encoded[:4])
	compressed := encoded[4:]
	if crc32.ChecksumIEEE(compressed) != wantCRC {
		return nil, rerrors.Corruption("delta", "delta file fails outer CRC32")
	}

	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)

	patch, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, rerrors.Corruption("delta", "zstd decode failed: "+err.Error())
	}
	return patch, nil
}

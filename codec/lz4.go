package codec

import (
	"errors"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses payloads with LZ4 block compression.
type LZ4 struct{}

func (LZ4) ID() ID       { return IDLZ4 }
func (LZ4) Name() string { return "lz4" }

func (LZ4) Encode(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return frame(src, nil), nil
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return frame(src, nil), nil // Incompressible
	}
	return frame(src, compressed[:n]), nil
}

func (LZ4) Decode(src []byte) ([]byte, error) {
	size, body, compressed, err := unframe(src)
	if err != nil || !compressed {
		return body, err
	}
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, err
	}
	if uint32(n) != size {
		return nil, errors.New("decompressed size mismatch")
	}
	return out, nil
}

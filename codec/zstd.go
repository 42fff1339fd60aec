package codec

import (
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// EncodeAll and DecodeAll are safe for concurrent use, so one pair is shared.
func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// Zstd compresses payloads with zstandard.
type Zstd struct{}

func (Zstd) ID() ID       { return IDZstd }
func (Zstd) Name() string { return "zstd" }

func (Zstd) Encode(src []byte) ([]byte, error) {
	enc, _, err := zstdCoders()
	if err != nil {
		return nil, err
	}
	return frame(src, enc.EncodeAll(src, nil)), nil
}

func (Zstd) Decode(src []byte) ([]byte, error) {
	size, body, compressed, err := unframe(src)
	if err != nil || !compressed {
		return body, err
	}
	_, dec, err := zstdCoders()
	if err != nil {
		return nil, err
	}
	out, err := dec.DecodeAll(body, make([]byte, 0, size))
	if err != nil {
		return nil, err
	}
	if uint32(len(out)) != size {
		return nil, errors.New("decompressed size mismatch")
	}
	return out, nil
}

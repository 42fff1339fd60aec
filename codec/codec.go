// Package codec centralizes value compression for persisted cache entries.
//
// Codec selection is recorded per entry (see blobstore's record format), so
// changing the configured codec never breaks reads of older entries.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ID identifies a codec inside persisted records. IDs are stable.
type ID byte

const (
	IDNone ID = 0
	IDZstd ID = 1
	IDLZ4  ID = 2
)

// blockHeaderSize is <uncompressed u32><compressed u32>. A compressed size of
// zero marks a block stored raw because it did not shrink.
const blockHeaderSize = 8

var (
	// ErrUnknownCodec is returned for codec names or IDs that are not built in.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrShortBlock is returned when an encoded block is truncated.
	ErrShortBlock = errors.New("encoded block too small")
)

// Codec compresses and decompresses opaque payloads.
// Implementations must be safe for concurrent use.
type Codec interface {
	ID() ID
	Name() string
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
}

// Default is the codec used when none is configured.
var Default Codec = None{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return None{}, nil
	case "zstd":
		return Zstd{}, nil
	case "lz4":
		return LZ4{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// ByID returns a built-in codec by its persisted ID.
func ByID(id ID) (Codec, error) {
	switch id {
	case IDNone:
		return None{}, nil
	case IDZstd:
		return Zstd{}, nil
	case IDLZ4:
		return LZ4{}, nil
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCodec, id)
	}
}

// None stores payloads unchanged.
type None struct{}

func (None) ID() ID       { return IDNone }
func (None) Name() string { return "none" }

func (None) Encode(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (None) Decode(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// frame wraps a compressed (or raw) body with the block header.
func frame(raw, compressed []byte) []byte {
	if compressed == nil || len(compressed) >= len(raw) {
		out := make([]byte, blockHeaderSize+len(raw))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(raw)))
		binary.LittleEndian.PutUint32(out[4:], 0) // 0 = uncompressed
		copy(out[blockHeaderSize:], raw)
		return out
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out
}

// unframe splits a block. When body is raw, compressed is false and body is
// already the payload.
func unframe(src []byte) (size uint32, body []byte, compressed bool, err error) {
	if len(src) < blockHeaderSize {
		return 0, nil, false, ErrShortBlock
	}
	size = binary.LittleEndian.Uint32(src[0:])
	csize := binary.LittleEndian.Uint32(src[4:])

	if csize == 0 {
		if uint32(len(src)-blockHeaderSize) < size {
			return 0, nil, false, ErrShortBlock
		}
		out := make([]byte, size)
		copy(out, src[blockHeaderSize:blockHeaderSize+size])
		return size, out, false, nil
	}

	if uint32(len(src)-blockHeaderSize) < csize {
		return 0, nil, false, ErrShortBlock
	}
	return size, src[blockHeaderSize : blockHeaderSize+csize], true, nil
}

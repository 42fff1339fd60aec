package blobstore

import (
	"bytes"
	_ "crypto/sha256" // registers the digest algorithm
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/blobcache/codec"
	"github.com/opencontainers/go-digest"
)

// Record layout used by the persistent engines:
//
//	magic   [4]byte "BCR1"
//	codec   byte    codec.ID
//	dlen    uint16  length of digest string
//	digest  []byte  sha256 digest of the raw payload ("sha256:<hex>")
//	body    []byte  codec-encoded payload
var recordMagic = []byte("BCR1")

const recordHeaderSize = 7

// ErrCorrupt is returned when a persisted record fails to decode or verify.
var ErrCorrupt = errors.New("corrupt record")

// EncodeRecord encodes value with c and prefixes the record header.
func EncodeRecord(c codec.Codec, value []byte) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	body, err := c.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.Name(), err)
	}
	d := digest.FromBytes(value).String()

	out := make([]byte, 0, recordHeaderSize+len(d)+len(body))
	out = append(out, recordMagic...)
	out = append(out, byte(c.ID()))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(d)))
	out = append(out, d...)
	out = append(out, body...)
	return out, nil
}

// DecodeRecord reverses EncodeRecord and verifies the payload digest.
func DecodeRecord(data []byte) ([]byte, error) {
	if len(data) < recordHeaderSize || !bytes.Equal(data[:4], recordMagic) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	c, err := codec.ByID(codec.ID(data[4]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	dlen := int(binary.LittleEndian.Uint16(data[5:7]))
	if len(data) < recordHeaderSize+dlen {
		return nil, fmt.Errorf("%w: truncated digest", ErrCorrupt)
	}
	want, err := digest.Parse(string(data[recordHeaderSize : recordHeaderSize+dlen]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	value, err := c.Decode(data[recordHeaderSize+dlen:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	verifier := want.Verifier()
	_, _ = verifier.Write(value)
	if !verifier.Verified() {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return value, nil
}

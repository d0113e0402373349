package sim

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// Codec names the compression applied to a snapshot payload.
type Codec string

const (
	CodecNone   Codec = "none"
	CodecSnappy Codec = "snappy"
	CodecLZ4    Codec = "lz4"
)

var validCodecs = map[Codec]bool{
	CodecNone:   true,
	CodecSnappy: true,
	CodecLZ4:    true,
}

// IsValidCodec returns true if name is a recognized snapshot codec.
func IsValidCodec(name string) bool { return validCodecs[Codec(name)] }

// Snapshot is the exported state of a trained predictor. The engine and
// harness treat Payload as inert bytes; only the producing family decodes it.
type Snapshot struct {
	Family  string `json:"family"`
	Version int    `json:"version"`
	Codec   Codec  `json:"codec"`
	RawSize int    `json:"rawSize"`
	Payload []byte `json:"payload"`
}

// NewSnapshot JSON-encodes state and compresses it with codec.
func NewSnapshot(family string, version int, codec Codec, state any) (*Snapshot, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding %s snapshot: %w", family, err)
	}
	payload, used, err := compress(codec, raw)
	if err != nil {
		return nil, fmt.Errorf("encoding %s snapshot: %w", family, err)
	}
	return &Snapshot{Family: family, Version: version, Codec: used, RawSize: len(raw), Payload: payload}, nil
}

// Decode checks family and version, decompresses the payload and
// unmarshals it into state.
func (s *Snapshot) Decode(family string, version int, state any) error {
	if s == nil {
		return fmt.Errorf("nil snapshot")
	}
	if s.Family != family {
		return fmt.Errorf("snapshot family %q does not match %q", s.Family, family)
	}
	if s.Version != version {
		return fmt.Errorf("unsupported %s snapshot version %d (want %d)", family, s.Version, version)
	}
	raw, err := decompress(s.Codec, s.Payload, s.RawSize)
	if err != nil {
		return fmt.Errorf("decoding %s snapshot: %w", family, err)
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return fmt.Errorf("decoding %s snapshot: %w", family, err)
	}
	return nil
}

// compress returns the payload and the codec actually applied.
func compress(codec Codec, raw []byte) ([]byte, Codec, error) {
	switch codec {
	case CodecNone, "":
		return append([]byte(nil), raw...), CodecNone, nil
	case CodecSnappy:
		return snappy.Encode(nil, raw), CodecSnappy, nil
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, "", fmt.Errorf("lz4 compression failed: %w", err)
		}
		if n == 0 {
			// lz4 reports incompressible input with n == 0; store it raw.
			return append([]byte(nil), raw...), CodecNone, nil
		}
		return buf[:n], CodecLZ4, nil
	default:
		return nil, "", fmt.Errorf("unsupported codec %q", codec)
	}
}

func decompress(codec Codec, payload []byte, rawSize int) ([]byte, error) {
	switch codec {
	case CodecNone, "":
		return payload, nil
	case CodecSnappy:
		return snappy.Decode(nil, payload)
	case CodecLZ4:
		if rawSize <= 0 {
			return nil, fmt.Errorf("lz4 payload missing raw size")
		}
		buf := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, buf)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		return buf[:n], nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}
}

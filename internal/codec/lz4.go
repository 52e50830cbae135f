package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// ErrCorrupt is returned when a compressed frame cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt compressed data")

// maxDecompressed bounds the size a compressed frame may claim.
const maxDecompressed = 16 << 20

const (
	flagRaw byte = 0
	flagLZ4 byte = 1
)

type compressed struct {
	inner Codec
}

// Compressed wraps c with lz4 block compression.
// Frame: [1B flag][4B LE raw length][body]. Payloads that do not shrink are
// stored raw.
func Compressed(c Codec) Codec {
	return compressed{inner: c}
}

func (c compressed) Name() string { return c.inner.Name() + "+lz4" }

func (c compressed) Marshal(v any) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 5+lz4.CompressBlockBound(len(raw)))
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(raw)))

	var ht [1 << 16]int
	n, err := lz4.CompressBlock(raw, out[5:], ht[:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 || n >= len(raw) {
		out[0] = flagRaw
		return append(out[:5], raw...), nil
	}
	out[0] = flagLZ4
	return out[:5+n], nil
}

func (c compressed) Unmarshal(data []byte, v any) error {
	if len(data) < 5 {
		return fmt.Errorf("%w: short header", ErrCorrupt)
	}
	size := int(binary.LittleEndian.Uint32(data[1:5]))
	body := data[5:]
	switch data[0] {
	case flagRaw:
		return c.inner.Unmarshal(body, v)
	case flagLZ4:
		if size > maxDecompressed {
			return fmt.Errorf("%w: claimed size %d", ErrCorrupt, size)
		}
		raw := make([]byte, size)
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return c.inner.Unmarshal(raw[:n], v)
	default:
		return fmt.Errorf("%w: flag %d", ErrCorrupt, data[0])
	}
}

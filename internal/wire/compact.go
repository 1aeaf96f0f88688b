package wire

import (
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a payload ends before a field is complete.
var ErrShortBuffer = errors.New("short buffer")

// AppendCompactU16 appends n in the shortvec encoding: 7 bits per byte,
// little-endian, high bit set on every byte except the last.
func AppendCompactU16(dst []byte, n int) []byte {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// ReadCompactU16 decodes a shortvec length and returns it with the number of
// bytes consumed.
func ReadCompactU16(b []byte) (int, int, error) {
	var v int
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("%w: compact-u16", ErrShortBuffer)
		}
		v |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errors.New("compact-u16 overflows three bytes")
}

package bits

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShortBuffer  = errors.New("destination buffer too short")
	ErrInvalidDigit = errors.New("invalid digit")
)

const hexDigits = "0123456789abcdef"

// String renders one '0' or '1' per bit, highest bit index first.
func (b *Buffer) String() string {
	var sb strings.Builder
	sb.Grow(b.bitCount)
	for i := b.bitCount - 1; i >= 0; i-- {
		if b.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// HexString renders two lowercase hex digits per byte, most significant byte
// first. Bits past BitCount in the last byte render as zero, so buffers that
// are Equal share one hex form.
func (b *Buffer) HexString() string {
	used := b.Bytes()
	out := make([]byte, 0, len(used)*2)
	for i := len(used) - 1; i >= 0; i-- {
		v := used[i]
		if i == len(used)-1 {
			if rem := b.bitCount % 8; rem != 0 {
				v &= lowMask(rem)
			}
		}
		out = append(out, hexDigits[v>>4], hexDigits[v&0x0f])
	}
	return string(out)
}

// EncodeBinary writes the String form followed by a NUL byte into dst. With a
// nil dst it only reports the number of bytes required.
func (b *Buffer) EncodeBinary(dst []byte) (int, error) {
	need := b.bitCount + 1
	if dst == nil {
		return need, nil
	}
	if len(dst) < need {
		return 0, fmt.Errorf("encode binary: need %d bytes, have %d: %w", need, len(dst), ErrShortBuffer)
	}
	copy(dst, b.String())
	dst[b.bitCount] = 0
	return need, nil
}

// EncodeHex writes the HexString form followed by a NUL byte into dst. With a
// nil dst it only reports the number of bytes required.
func (b *Buffer) EncodeHex(dst []byte) (int, error) {
	digits := byteCount(b.bitCount) * 2
	need := digits + 1
	if dst == nil {
		return need, nil
	}
	if len(dst) < need {
		return 0, fmt.Errorf("encode hex: need %d bytes, have %d: %w", need, len(dst), ErrShortBuffer)
	}
	copy(dst, b.HexString())
	dst[digits] = 0
	return need, nil
}

// FromString replaces the contents of b with the bits described by s, which
// must consist of '0' and '1' only, highest bit index first.
func (b *Buffer) FromString(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return fmt.Errorf("parse binary: %q at offset %d: %w", s[i], i, ErrInvalidDigit)
		}
	}
	b.SetBitCount(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '1' {
			b.Set(len(s) - 1 - i)
		}
	}
	return nil
}

// FromHexString replaces the contents of b with the bytes described by s,
// most significant byte first. The resulting bit count is len(s)/2*8.
func (b *Buffer) FromHexString(s string) error {
	if len(s)%2 != 0 {
		return fmt.Errorf("parse hex: odd length %d: %w", len(s), ErrInvalidDigit)
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("parse hex: %v: %w", err, ErrInvalidDigit)
	}
	b.SetBitCount(len(decoded) * 8)
	for i, v := range decoded {
		b.bytes[len(decoded)-1-i] = v
	}
	return nil
}

func ParseBinary(s string) (*Buffer, error) {
	b := &Buffer{}
	if err := b.FromString(s); err != nil {
		return nil, err
	}
	return b, nil
}

func ParseHex(s string) (*Buffer, error) {
	b := &Buffer{}
	if err := b.FromHexString(s); err != nil {
		return nil, err
	}
	return b, nil
}

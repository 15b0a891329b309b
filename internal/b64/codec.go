// Package b64 implements standard base64 (RFC 4648 alphabet, "=" padding) on
// top of a 256-entry lookup table.
//
// Decoding is strict about the alphabet and the position of padding but
// tolerates a final group with the padding omitted. There is no line wrapping
// and no whitespace tolerance.
package b64

import (
	"errors"
	"fmt"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const padChar = '='

// Table sentinels. Neither collides with a 6-bit value.
const (
	padding byte = 0xfe
	unknown byte = 0xff
)

var (
	ErrInvalidLength    = errors.New("input length leaves a single trailing character")
	ErrInvalidCharacter = errors.New("character outside the base64 alphabet")
	ErrMisplacedPadding = errors.New("padding before the end of input")
	ErrEmptyGroup       = errors.New("group carries no data before padding")
	ErrPartialPadding   = errors.New("padded final group is shorter than four characters")
)

// CorruptInputError reports the input offset at which decoding failed.
type CorruptInputError struct {
	Offset int
	Err    error
}

func (e *CorruptInputError) Error() string {
	return fmt.Sprintf("illegal base64 data at input byte %d: %v", e.Offset, e.Err)
}

func (e *CorruptInputError) Unwrap() error { return e.Err }

// Codec holds the decode table. It is never written after New returns, so a
// single Codec may be shared by any number of goroutines.
type Codec struct {
	table [256]byte
}

// Std is the shared codec used by the launcher.
var Std = New()

// New builds the lookup table.
func New() *Codec {
	c := &Codec{}
	for i := range c.table {
		c.table[i] = unknown
	}
	for i := 0; i < len(alphabet); i++ {
		c.table[alphabet[i]] = byte(i)
	}
	c.table[padChar] = padding
	return c
}

// DecodedLen returns the maximum number of bytes n input characters decode to.
func DecodedLen(n int) int {
	return n/4*3 + n%4*6/8
}

// EncodedLen returns the length of the padded encoding of n bytes.
func EncodedLen(n int) int {
	return (n + 2) / 3 * 4
}

// Decode decodes s. Partial output is never returned.
func (c *Codec) Decode(s string) ([]byte, error) {
	if len(s)%4 == 1 {
		return nil, &CorruptInputError{Offset: len(s) - 1, Err: ErrInvalidLength}
	}

	out := make([]byte, 0, DecodedLen(len(s)))
	for off := 0; off < len(s); off += 4 {
		end := min(off+4, len(s))
		var err error
		if out, err = c.decodeQuad(out, s, off, end); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeQuad appends the bytes carried by s[off:end] to dst. Every 6-bit value
// is shifted into buf; a byte is emitted each time eight bits are complete.
func (c *Codec) decodeQuad(dst []byte, s string, off, end int) ([]byte, error) {
	var (
		buf     uint32
		bits    uint
		emitted int
	)
	for i := off; i < end; i++ {
		switch v := c.table[s[i]]; v {
		case unknown:
			return dst, &CorruptInputError{Offset: i, Err: ErrInvalidCharacter}
		case padding:
			if err := checkTail(s, i); err != nil {
				return dst, err
			}
			if emitted == 0 {
				return dst, &CorruptInputError{Offset: off, Err: ErrEmptyGroup}
			}
			// A tail may drop its padding entirely, never in part.
			if end-off != 4 {
				return dst, &CorruptInputError{Offset: i, Err: ErrPartialPadding}
			}
			return dst, nil
		default:
			buf = buf<<6 | uint32(v)
			bits += 6
		}
		if bits >= 8 {
			bits -= 8
			dst = append(dst, byte(buf>>bits))
			emitted++
		}
	}
	if emitted == 0 {
		return dst, &CorruptInputError{Offset: off, Err: ErrEmptyGroup}
	}
	return dst, nil
}

// checkTail verifies that the padding starting at s[i] runs to the end of the
// input and stays inside the final group.
func checkTail(s string, i int) error {
	if len(s)-i > 2 {
		return &CorruptInputError{Offset: i, Err: ErrMisplacedPadding}
	}
	for j := i + 1; j < len(s); j++ {
		if s[j] != padChar {
			return &CorruptInputError{Offset: i, Err: ErrMisplacedPadding}
		}
	}
	return nil
}

// Encode returns the canonical padded encoding of src.
func (c *Codec) Encode(src []byte) string {
	dst := make([]byte, 0, EncodedLen(len(src)))

	n := len(src) / 3 * 3
	for i := 0; i < n; i += 3 {
		buf := uint32(src[i])<<16 | uint32(src[i+1])<<8 | uint32(src[i+2])
		dst = append(dst,
			alphabet[buf>>18&0x3f],
			alphabet[buf>>12&0x3f],
			alphabet[buf>>6&0x3f],
			alphabet[buf&0x3f],
		)
	}

	switch len(src) - n {
	case 1:
		buf := uint32(src[n]) << 16
		dst = append(dst, alphabet[buf>>18&0x3f], alphabet[buf>>12&0x3f], padChar, padChar)
	case 2:
		buf := uint32(src[n])<<16 | uint32(src[n+1])<<8
		dst = append(dst, alphabet[buf>>18&0x3f], alphabet[buf>>12&0x3f], alphabet[buf>>6&0x3f], padChar)
	}
	return string(dst)
}

package b64

import (
	"encoding/base64"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	c := New()
	assert.Equal(t, unknown, c.table[0])
	assert.Equal(t, unknown, c.table['@'])
	assert.Equal(t, byte(0), c.table['A'])
	assert.Equal(t, byte(1), c.table['B'])
	assert.Equal(t, byte(2), c.table['C'])
	assert.Equal(t, byte(26), c.table['a'])
	assert.Equal(t, byte(52), c.table['0'])
	assert.Equal(t, byte(62), c.table['+'])
	assert.Equal(t, byte(63), c.table['/'])
	assert.Equal(t, padding, c.table['='])
	assert.NotEqual(t, padding, unknown)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"full quads", "TWFueSBoYW5kcyBtYWtlIGxpZ2h0IHdvcmsu", "Many hands make light work."},
		{"one padding char", "ay4=", "k."},
		{"two padding chars", "aw==", "k"},
		{"missing one padding char", "ay4", "k."},
		{"missing two padding chars", "aw", "k"},
		{"empty", "", ""},
		{"json payload", "eyJhIjoxfQ==", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Decode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"single character", "a", ErrInvalidLength},
		{"five characters", "aGVsb", ErrInvalidLength},
		{"only padding after one char", "a===", nil},
		{"padding only", "==", ErrEmptyGroup},
		{"unknown character", "aGV$bG8=", ErrInvalidCharacter},
		{"whitespace", "aGVs bG8=", ErrInvalidCharacter},
		{"newline", "aGVs\nbG8=", ErrInvalidCharacter},
		{"url alphabet", "a-_b", ErrInvalidCharacter},
		{"interior padding", "aw==aw==", ErrMisplacedPadding},
		{"padding then data", "ay=4", ErrMisplacedPadding},
		{"data after padded group", "aGVsbG8=a=", ErrMisplacedPadding},
		{"lone char before padding", "aGVsbG8a=", ErrInvalidLength},
		{"lone char then padding in tail", "aGVsa=", ErrEmptyGroup},
		{"partly padded tail", "ab=", ErrPartialPadding},
		{"partly padded tail after full group", "AAba+1=", ErrPartialPadding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Decode(tt.input)
			require.Error(t, err)
			assert.Nil(t, got)

			var cerr *CorruptInputError
			require.True(t, errors.As(err, &cerr), "want *CorruptInputError, got %T", err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestDecodeLengthOneModFourAlwaysFails(t *testing.T) {
	for n := 1; n <= 41; n += 4 {
		s := strings.Repeat("Q", n)
		_, err := Std.Decode(s)
		assert.ErrorIs(t, err, ErrInvalidLength, "length %d", n)
	}
}

func TestDecodeRejectsEveryNonAlphabetByte(t *testing.T) {
	for b := 0; b < 256; b++ {
		if strings.IndexByte(alphabet, byte(b)) >= 0 || b == padChar {
			continue
		}
		input := "QU" + string([]byte{byte(b)}) + "B"
		_, err := Std.Decode(input)
		assert.ErrorIs(t, err, ErrInvalidCharacter, "byte 0x%02x", b)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"r", "cg=="},
		{"rk", "cms="},
		{"rkm", "cmtt"},
		{"Many hands make light work.", "TWFueSBoYW5kcyBtYWtlIGxpZ2h0IHdvcmsu"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, New().Encode([]byte(tt.input)))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := New()

	for n := 0; n <= 512; n++ {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(rng.UintN(256))
		}

		enc := c.Encode(b)
		assert.Equal(t, base64.StdEncoding.EncodeToString(b), enc, "length %d", n)
		assert.Zero(t, len(enc)%4)

		dec, err := c.Decode(enc)
		require.NoError(t, err, "length %d", n)
		assert.Equal(t, b, dec)
		assert.Len(t, dec, 3*(len(enc)/4)-strings.Count(enc, "="))
	}
}

func TestEncodeCanonicalizesUnpadded(t *testing.T) {
	for _, s := range []string{"aw", "ay4", "TWFu", "TWE"} {
		dec, err := Std.Decode(s)
		require.NoError(t, err)

		canonical := Std.Encode(dec)
		assert.Equal(t, 0, len(canonical)%4)
		assert.True(t, strings.HasPrefix(canonical, s), "%q -> %q", s, canonical)
	}
}

func TestLengths(t *testing.T) {
	assert.Equal(t, 0, EncodedLen(0))
	assert.Equal(t, 4, EncodedLen(1))
	assert.Equal(t, 4, EncodedLen(3))
	assert.Equal(t, 8, EncodedLen(4))
	assert.Equal(t, 3, DecodedLen(4))
	assert.Equal(t, 2, DecodedLen(3))
	assert.Equal(t, 1, DecodedLen(2))
}

func TestDecodePaddingMatchesStdlib(t *testing.T) {
	for _, s := range []string{"ab=", "AAba+1=", "cg=", "Zm9vYg="} {
		_, stdErr := base64.StdEncoding.DecodeString(s)
		_, rawErr := base64.RawStdEncoding.DecodeString(s)
		require.Error(t, stdErr, s)
		require.Error(t, rawErr, s)

		_, err := Std.Decode(s)
		assert.ErrorIs(t, err, ErrPartialPadding, s)
	}
}

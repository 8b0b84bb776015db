package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

const sampleCSV = "Name,Email\nAda,ada@example.com"

func encodeUTF16(t *testing.T, s string, e xunicode.Endianness) []byte {
	t.Helper()
	out, err := xunicode.UTF16(e, xunicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

func encodeUTF32(t *testing.T, s string, e utf32.Endianness) []byte {
	t.Helper()
	out, err := utf32.UTF32(e, utf32.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

func encodeWindows1252(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestEncoding_String(t *testing.T) {
	names := make([]string, 0, len(Candidates))
	for _, c := range Candidates {
		names = append(names, c.String())
	}
	assert.Equal(t, []string{
		"UTF-32BE", "UTF-32LE", "UTF-16BE", "UTF-16LE", "UTF-8",
		"WINDOWS-1252", "ISO-8859-1", "ISO-8859-15", "CP1252",
	}, names)
	assert.Equal(t, "UNKNOWN", Unknown.String())
	assert.True(t, UTF16LE.IsWide())
	assert.False(t, CP1252.IsWide())
}

func TestTextTranscoder_Decode(t *testing.T) {
	tc := TextTranscoder{}

	t.Run("utf8 passthrough", func(t *testing.T) {
		text, err := tc.Decode([]byte("José"), UTF8)
		require.NoError(t, err)
		assert.Equal(t, "José", text)
	})

	t.Run("utf8 rejects malformed input", func(t *testing.T) {
		_, err := tc.Decode([]byte{'a', 0xff}, UTF8)
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})

	t.Run("cp1252 is an alias of windows-1252", func(t *testing.T) {
		a, err := tc.Decode([]byte{0x80, 0x99}, CP1252)
		require.NoError(t, err)
		b, err := tc.Decode([]byte{0x80, 0x99}, Windows1252)
		require.NoError(t, err)
		assert.Equal(t, "€™", a)
		assert.Equal(t, a, b)
	})

	t.Run("iso-8859-15 differs from iso-8859-1", func(t *testing.T) {
		latin1, err := tc.Decode([]byte{0xA4}, ISO88591)
		require.NoError(t, err)
		latin9, err := tc.Decode([]byte{0xA4}, ISO885915)
		require.NoError(t, err)
		assert.Equal(t, "¤", latin1)
		assert.Equal(t, "€", latin9)
	})

	t.Run("lone surrogate in utf-16 becomes a question mark", func(t *testing.T) {
		text, err := tc.Decode([]byte{0x61, 0x00, 0x00, 0xD8, 0x62, 0x00}, UTF16LE)
		require.NoError(t, err)
		assert.Equal(t, "a?b", text)
	})

	t.Run("out of range utf-32 unit becomes a question mark", func(t *testing.T) {
		text, err := tc.Decode([]byte{0x61, 0, 0, 0, 0xFF, 0xFF, 0x11, 0x00}, UTF32LE)
		require.NoError(t, err)
		assert.Equal(t, "a?", text)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := tc.Decode([]byte("x"), Unknown)
		assert.ErrorIs(t, err, ErrUnsupportedEncoding)
	})
}

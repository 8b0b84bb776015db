package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBOM(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		want   Encoding
		length int
	}{
		{"utf-8", []byte{0xEF, 0xBB, 0xBF, 'a'}, UTF8, 3},
		{"utf-16be", []byte{0xFE, 0xFF, 0x00, 'a'}, UTF16BE, 2},
		{"utf-16le", []byte{0xFF, 0xFE, 'a', 0x00}, UTF16LE, 2},
		{"utf-32be", []byte{0x00, 0x00, 0xFE, 0xFF, 0x00, 0x00, 0x00, 'a'}, UTF32BE, 4},
		{"utf-32le", []byte{0xFF, 0xFE, 0x00, 0x00, 'a', 0x00, 0x00, 0x00}, UTF32LE, 4},
		{"bare utf-16le mark", []byte{0xFF, 0xFE}, UTF16LE, 2},
		{"no mark", []byte("abc"), Unknown, 0},
		{"empty", nil, Unknown, 0},
		{"single byte", []byte{0xEF}, Unknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, n := DetectBOM(tt.input)
			assert.Equal(t, tt.want, enc)
			assert.Equal(t, tt.length, n)
		})
	}
}

func TestStripBOM(t *testing.T) {
	t.Run("removes each mark", func(t *testing.T) {
		marks := [][]byte{
			{0xEF, 0xBB, 0xBF},
			{0xFE, 0xFF},
			{0xFF, 0xFE},
			{0x00, 0x00, 0xFE, 0xFF},
			{0xFF, 0xFE, 0x00, 0x00},
		}
		for _, mark := range marks {
			input := concat(mark, []byte("xyz"))
			assert.Equal(t, []byte("xyz"), StripBOM(input), "mark % X", mark)
		}
	})

	t.Run("utf-32le mark is not truncated to utf-16le", func(t *testing.T) {
		input := []byte{0xFF, 0xFE, 0x00, 0x00, 'a', 0x00, 0x00, 0x00}
		assert.Equal(t, []byte{'a', 0x00, 0x00, 0x00}, StripBOM(input))
	})

	t.Run("leaves unmarked input untouched", func(t *testing.T) {
		assert.Equal(t, []byte(sampleCSV), StripBOM([]byte(sampleCSV)))
	})
}

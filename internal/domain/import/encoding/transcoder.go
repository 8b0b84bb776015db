package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

var (
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrInvalidUTF8         = errors.New("input is not valid UTF-8")
)

// Transcoder converts bytes in a known source encoding into a UTF-8 string.
type Transcoder interface {
	Decode(data []byte, from Encoding) (string, error)
}

// substituteChar replaces code units a wide decoder could not map.
const substituteChar = "?"

// TextTranscoder is the Transcoder backed by golang.org/x/text.
// Malformed UTF-16/UTF-32 code units, such as lone surrogates, decode to '?'
// rather than U+FFFD so the output survives a second normalization unchanged.
type TextTranscoder struct{}

func (TextTranscoder) Decode(data []byte, from Encoding) (string, error) {
	if from == UTF8 {
		if !utf8.Valid(data) {
			return "", ErrInvalidUTF8
		}
		return string(data), nil
	}

	enc, err := textEncoding(from)
	if err != nil {
		return "", err
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", from, err)
	}
	if from.IsWide() {
		out = bytes.ReplaceAll(out, replacementBytes, []byte(substituteChar))
	}
	return string(out), nil
}

func textEncoding(e Encoding) (xencoding.Encoding, error) {
	switch e {
	case UTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), nil
	case UTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), nil
	case UTF16BE:
		return xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM), nil
	case UTF16LE:
		return xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM), nil
	case Windows1252, CP1252:
		return charmap.Windows1252, nil
	case ISO88591:
		return charmap.ISO8859_1, nil
	case ISO885915:
		return charmap.ISO8859_15, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, e)
}

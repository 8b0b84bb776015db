package encoding

import (
	"bytes"

	"github.com/dimchansky/utfbom"
)

// DetectBOM reports the encoding named by a leading byte order mark and the
// length of that mark. It returns Unknown and 0 when no mark is present.
//
// The 4-byte UTF-32 marks are matched before the 2-byte UTF-16 ones, since
// FF FE is a prefix of FF FE 00 00.
func DetectBOM(data []byte) (Encoding, int) {
	_, enc := utfbom.Skip(bytes.NewReader(data))
	switch enc {
	case utfbom.UTF32BigEndian:
		return UTF32BE, 4
	case utfbom.UTF32LittleEndian:
		return UTF32LE, 4
	case utfbom.UTF8:
		return UTF8, 3
	case utfbom.UTF16BigEndian:
		return UTF16BE, 2
	case utfbom.UTF16LittleEndian:
		return UTF16LE, 2
	default:
		return Unknown, 0
	}
}

// StripBOM returns data without its leading byte order mark, if any.
// The returned slice shares memory with data.
func StripBOM(data []byte) []byte {
	_, n := DetectBOM(data)
	return data[n:]
}

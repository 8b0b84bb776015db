// Package encoding turns uploaded CSV bytes of unknown or mislabeled character
// encoding into valid UTF-8 text.
//
// The pipeline runs in three stages: wide (UTF-16/UTF-32) detection, BOM
// stripping and a cascade of reinterpretation strategies. Every stage is pure
// and the package holds no mutable state, so a Normalizer can be shared
// between goroutines.
package encoding

// Encoding identifies a character encoding the pipeline knows how to decode.
type Encoding int

const (
	Unknown Encoding = iota
	UTF32BE
	UTF32LE
	UTF16BE
	UTF16LE
	UTF8
	Windows1252
	ISO88591
	ISO885915
	CP1252
)

// Candidates lists every supported encoding in priority order.
var Candidates = []Encoding{
	UTF32BE,
	UTF32LE,
	UTF16BE,
	UTF16LE,
	UTF8,
	Windows1252,
	ISO88591,
	ISO885915,
	CP1252,
}

// legacyEncodings are tried, in this order, once every targeted repair failed.
var legacyEncodings = []Encoding{Windows1252, ISO88591, ISO885915, CP1252}

// IsWide reports whether e is one of the UTF-16 or UTF-32 encodings.
func (e Encoding) IsWide() bool {
	switch e {
	case UTF32BE, UTF32LE, UTF16BE, UTF16LE:
		return true
	}
	return false
}

func (e Encoding) String() string {
	switch e {
	case UTF32BE:
		return "UTF-32BE"
	case UTF32LE:
		return "UTF-32LE"
	case UTF16BE:
		return "UTF-16BE"
	case UTF16LE:
		return "UTF-16LE"
	case UTF8:
		return "UTF-8"
	case Windows1252:
		return "WINDOWS-1252"
	case ISO88591:
		return "ISO-8859-1"
	case ISO885915:
		return "ISO-8859-15"
	case CP1252:
		return "CP1252"
	default:
		return "UNKNOWN"
	}
}

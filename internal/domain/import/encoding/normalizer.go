package encoding

import (
	"bytes"
	"os"
)

// Names of the cascade stages, reported in Result.Strategy.
const (
	StrategyWide              = "wide"
	StrategyUTF8              = "utf8"
	StrategyWindows1252       = "windows-1252"
	StrategyWindows1252Range  = "windows-1252-range"
	StrategyReplacementRepair = "replacement-repair"
	StrategyLegacy            = "legacy"
	StrategyFallback          = "fallback"
	StrategyUnreadable        = "unreadable"
)

var (
	replacementBytes    = []byte(replacementChar)
	rightSingleQuote    = []byte("\u2019")
	defaultNormalizer   = NewNormalizer(nil)
	windows1252Unmapped = [256]bool{0x81: true, 0x8D: true, 0x8F: true, 0x90: true, 0x9D: true}
)

// Result describes the text produced by a Normalizer and the stage that
// produced it. Valid is false only for the fallback and unreadable paths.
type Result struct {
	Text     string
	Strategy string
	Encoding Encoding
	Valid    bool
}

// Strategy is a single reinterpretation attempt over the raw file bytes.
// Trusted strategies are accepted without the IsValidConversion check.
type Strategy struct {
	Name    string
	Trusted bool
	Attempt func(raw []byte) (text string, enc Encoding, ok bool)
}

// Normalizer runs an ordered list of strategies and keeps the first one that
// yields clean UTF-8.
type Normalizer struct {
	tc         Transcoder
	strategies []Strategy
}

// NewNormalizer builds the default cascade around tc. A nil tc selects
// TextTranscoder.
func NewNormalizer(tc Transcoder) *Normalizer {
	if tc == nil {
		tc = TextTranscoder{}
	}
	n := &Normalizer{tc: tc}
	n.strategies = []Strategy{
		{Name: StrategyWide, Trusted: true, Attempt: n.wide},
		{Name: StrategyUTF8, Attempt: n.cleanUTF8},
		{Name: StrategyWindows1252, Attempt: n.windows1252},
		{Name: StrategyWindows1252Range, Attempt: n.windows1252Range},
		{Name: StrategyReplacementRepair, Attempt: n.replacementRepair},
		{Name: StrategyLegacy, Attempt: n.legacy},
	}
	return n
}

// Strategies returns the names of the cascade stages in evaluation order.
func (n *Normalizer) Strategies() []string {
	names := make([]string, 0, len(n.strategies))
	for _, s := range n.strategies {
		names = append(names, s.Name)
	}
	return names
}

// Normalize converts raw to UTF-8. It never fails: when no strategy produces
// a valid conversion the BOM-stripped input is returned unconverted with
// Valid set to false.
func (n *Normalizer) Normalize(raw []byte) Result {
	for _, s := range n.strategies {
		text, enc, ok := s.Attempt(raw)
		if !ok {
			continue
		}
		if s.Trusted {
			return Result{Text: text, Strategy: s.Name, Encoding: enc, Valid: IsValidConversion(text)}
		}
		if IsValidConversion(text) {
			return Result{Text: text, Strategy: s.Name, Encoding: enc, Valid: true}
		}
	}
	return Result{Text: string(StripBOM(raw)), Strategy: StrategyFallback}
}

// ReadFile reads and normalizes the file at path. An unreadable file yields
// an empty Result instead of an error.
func (n *Normalizer) ReadFile(path string) Result {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{Strategy: StrategyUnreadable}
	}
	return n.Normalize(raw)
}

// Normalize converts raw to UTF-8 with the default cascade.
func Normalize(raw []byte) string {
	return defaultNormalizer.Normalize(raw).Text
}

// ReadFile reads and normalizes the file at path with the default cascade.
func ReadFile(path string) Result {
	return defaultNormalizer.ReadFile(path)
}

func (n *Normalizer) wide(raw []byte) (string, Encoding, bool) {
	return DetectWideEncoding(raw, n.tc)
}

func (n *Normalizer) cleanUTF8(raw []byte) (string, Encoding, bool) {
	text, err := n.tc.Decode(StripBOM(raw), UTF8)
	if err != nil {
		return "", Unknown, false
	}
	return text, UTF8, true
}

func (n *Normalizer) windows1252(raw []byte) (string, Encoding, bool) {
	return n.decode(StripBOM(raw), Windows1252)
}

// windows1252Range converts only when the input uses a byte that is printable
// in Windows-1252 but a C1 control in ISO-8859-1. It decodes the same bytes
// with the same codec as windows1252, so once that stage has failed this one
// fails too. It stays in the cascade to keep the stage order and names stable
// for callers that report Strategy.
func (n *Normalizer) windows1252Range(raw []byte) (string, Encoding, bool) {
	data := StripBOM(raw)
	if !hasWindows1252Specific(data) {
		return "", Unknown, false
	}
	return n.decode(data, Windows1252)
}

// replacementRepair swaps every U+FFFD for U+2019, the smart quote most
// often lost in a previous bad conversion.
func (n *Normalizer) replacementRepair(raw []byte) (string, Encoding, bool) {
	data := StripBOM(raw)
	if !bytes.Contains(data, replacementBytes) {
		return "", Unknown, false
	}
	return string(bytes.ReplaceAll(data, replacementBytes, rightSingleQuote)), UTF8, true
}

func (n *Normalizer) legacy(raw []byte) (string, Encoding, bool) {
	data := StripBOM(raw)
	for _, enc := range legacyEncodings {
		text, _, ok := n.decode(data, enc)
		if ok && IsValidConversion(text) {
			return text, enc, true
		}
	}
	return "", Unknown, false
}

func (n *Normalizer) decode(data []byte, enc Encoding) (string, Encoding, bool) {
	text, err := n.tc.Decode(data, enc)
	if err != nil {
		return "", Unknown, false
	}
	return text, enc, true
}

func hasWindows1252Specific(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F && !windows1252Unmapped[b] {
			return true
		}
	}
	return false
}

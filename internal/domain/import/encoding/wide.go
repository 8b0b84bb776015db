package encoding

// wideSampleSize bounds the BOM-less heuristic to the head of the file.
const wideSampleSize = 100

const (
	utf32MinHits = 5
	utf16MinHits = 10
)

// DetectWideEncoding recognizes UTF-32 and UTF-16 input and decodes it to
// UTF-8. An explicit BOM wins; otherwise the null-byte layout of the first
// 100 bytes is inspected. ok is false when the input does not look wide, in
// which case the caller continues with the byte-oriented stages.
func DetectWideEncoding(raw []byte, tc Transcoder) (text string, enc Encoding, ok bool) {
	if tc == nil {
		tc = TextTranscoder{}
	}

	enc = sniffWide(raw)
	if enc == Unknown {
		return "", Unknown, false
	}

	bomEnc, n := DetectBOM(raw)
	if bomEnc != enc {
		n = 0
	}

	text, err := tc.Decode(raw[n:], enc)
	if err != nil {
		return "", Unknown, false
	}
	return text, enc, true
}

// sniffWide returns the wide encoding of raw, or Unknown.
func sniffWide(raw []byte) Encoding {
	switch enc, _ := DetectBOM(raw); enc {
	case UTF32BE, UTF32LE, UTF16BE, UTF16LE:
		return enc
	}

	sample := raw
	if len(sample) > wideSampleSize {
		sample = sample[:wideSampleSize]
	}

	if len(raw)%4 == 0 && countUTF32LEUnits(sample) > utf32MinHits {
		return UTF32LE
	}
	if len(raw)%2 == 0 {
		if countZeroAt(sample, 1) > utf16MinHits {
			return UTF16LE
		}
		if countZeroAt(sample, 0) > utf16MinHits {
			return UTF16BE
		}
	}
	return Unknown
}

// countUTF32LEUnits counts 4-byte groups whose three high-order bytes are zero.
func countUTF32LEUnits(sample []byte) int {
	hits := 0
	for i := 0; i+3 < len(sample); i += 4 {
		if sample[i+1] == 0 && sample[i+2] == 0 && sample[i+3] == 0 {
			hits++
		}
	}
	return hits
}

// countZeroAt counts 2-byte pairs whose byte at offset is zero.
func countZeroAt(sample []byte, offset int) int {
	hits := 0
	for i := 0; i+1 < len(sample); i += 2 {
		if sample[i+offset] == 0 {
			hits++
		}
	}
	return hits
}

// Package sniffer provides automatic detection of CSV layouts for entity imports.
// It identifies delimiters, header rows and generates fingerprints so saved
// column mappings can be recognized on the next upload.
package sniffer

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Common invoicing header keywords (multi-language)
var headerKeywords = []string{
	// English
	"name", "email", "phone", "number", "date", "amount", "balance", "client",
	"invoice", "quote", "product", "quantity", "cost", "price", "vendor", "currency",
	"address", "city", "country", "notes", "description", "discount", "tax",
	// German
	"rechnung", "kunde", "betrag", "datum", "menge", "preis",
	// Spanish / Portuguese
	"factura", "cliente", "fecha", "importe", "fatura", "valor", "data",
	// French
	"facture", "montant", "prix",
}

var keywordMatcher = ahocorasick.NewStringMatcher(headerKeywords)

// maxHeaderSearchLines bounds the header row search.
const maxHeaderSearchLines = 20

// sampleRowLimit is the number of data rows kept for previews.
const sampleRowLimit = 5

// FileConfig holds the detected configuration for a CSV file
type FileConfig struct {
	Delimiter   rune       // The field delimiter (',', '.', ';', '|')
	SkipLines   int        // Number of metadata lines before headers
	Headers     []string   // Detected header names
	Fingerprint string     // SHA256 hash of normalized headers
	SampleRows  [][]string // First few data rows for preview
}

// DetectOptions allows callers to override header row or delimiter detection.
type DetectOptions struct {
	// HeaderRowIndex is a 0-based index for the header row. Set to -1 to auto-detect.
	HeaderRowIndex int
	// Delimiter overrides the detected delimiter when non-zero.
	Delimiter rune
}

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoHeadersFound = errors.New("could not find data headers")
)

// DetectConfig analyzes normalized CSV text and returns its configuration
func DetectConfig(text string) (*FileConfig, error) {
	return DetectConfigWithOptions(text, nil)
}

// DetectConfigWithOptions analyzes normalized CSV text with optional overrides.
func DetectConfigWithOptions(text string, opts *DetectOptions) (*FileConfig, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(text, "\n")

	var (
		delimiter rune
		skipLines int
		err       error
	)
	if opts != nil && opts.HeaderRowIndex >= 0 {
		if opts.HeaderRowIndex >= len(lines) {
			return nil, ErrNoHeadersFound
		}
		skipLines = opts.HeaderRowIndex
		delimiter, _ = lineDelimiter(cleanLine(lines[skipLines]))
	} else {
		delimiter, skipLines, err = findHeaderRow(lines)
		if err != nil {
			return nil, err
		}
	}
	if opts != nil && opts.Delimiter != 0 {
		delimiter = opts.Delimiter
	}

	reader := csv.NewReader(strings.NewReader(cleanLine(lines[skipLines])))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Fingerprint: Fingerprint(headers),
		SampleRows:  sampleRows(text, delimiter, skipLines+1, sampleRowLimit),
	}, nil
}

// findHeaderRow locates the header row and its delimiter. Lines carrying
// invoicing keywords are preferred; otherwise the widest line wins.
func findHeaderRow(lines []string) (rune, int, error) {
	fallbackIndex := -1
	fallbackDelimiter := rune(0)
	fallbackCount := 0

	keywordIndex := -1
	keywordDelimiter := rune(0)
	keywordScore := 0

	for i, line := range lines {
		if i >= maxHeaderSearchLines {
			break
		}

		line = cleanLine(line)
		if line == "" {
			continue
		}

		delimiter, count := lineDelimiter(line)
		if count < 1 {
			continue
		}

		matches := len(keywordMatcher.Match([]byte(strings.ToLower(line))))
		if matches > 0 {
			// Real headers have many columns, metadata lines have few.
			score := count*10 + matches
			if keywordIndex == -1 || score > keywordScore {
				keywordScore = score
				keywordDelimiter = delimiter
				keywordIndex = i
			}
			continue
		}

		if count > fallbackCount {
			fallbackCount = count
			fallbackDelimiter = delimiter
			fallbackIndex = i
		}
	}

	if keywordIndex >= 0 {
		return keywordDelimiter, keywordIndex, nil
	}
	if fallbackIndex >= 0 {
		return fallbackDelimiter, fallbackIndex, nil
	}

	// A single-column file has no delimiter signal; its first line is the header.
	for i, line := range lines {
		if cleanLine(line) != "" {
			return DefaultDelimiter, i, nil
		}
	}
	return 0, 0, ErrNoHeadersFound
}

func cleanLine(line string) string {
	line = strings.TrimRight(line, "\r")
	return strings.TrimSpace(line)
}

// Fingerprint creates a stable hash from header names, ignoring case,
// punctuation and whitespace.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

// SuggestColumns maps importable field names (such as "client.name") to the
// index of the header that most likely holds them. Fields without a plausible
// header are left out of the result. Each header is used at most once.
func SuggestColumns(headers []string, fields []string) map[string]int {
	suggestions := make(map[string]int)
	used := make(map[int]bool)

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeLabel(h)
	}

	// Exact label matches first so fuzzy matching can't steal them.
	for _, field := range fields {
		label := fieldLabel(field)
		for i, h := range normalized {
			if !used[i] && h == label {
				suggestions[field] = i
				used[i] = true
				break
			}
		}
	}

	for _, field := range fields {
		if _, ok := suggestions[field]; ok {
			continue
		}
		ranks := fuzzy.RankFindNormalizedFold(fieldLabel(field), normalized)
		sort.Sort(ranks)
		for _, rank := range ranks {
			if !used[rank.OriginalIndex] {
				suggestions[field] = rank.OriginalIndex
				used[rank.OriginalIndex] = true
				break
			}
		}
	}

	return suggestions
}

// fieldLabel turns "client.shipping_city" into "shipping city".
func fieldLabel(field string) string {
	if i := strings.LastIndex(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return normalizeLabel(field)
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// sampleRows returns the first maxRows data rows starting at the 0-based
// physical line startLine.
func sampleRows(text string, delimiter rune, startLine, maxRows int) [][]string {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		if line, _ := reader.FieldPos(0); line-1 < startLine {
			continue
		}
		rows = append(rows, record)
		if len(rows) >= maxRows {
			break
		}
	}

	return rows
}

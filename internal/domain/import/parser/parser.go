// Package parser reads normalized CSV text and XLSX workbooks into rows and
// typed entity records. It uses gocsv for struct-based unmarshaling.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// ParserConfig configures how rows are read and cells are interpreted
type ParserConfig struct {
	Delimiter        rune   // CSV delimiter (default: ',')
	SkipLines        int    // Lines to skip before headers
	DateFormat       string // Expected date format (default: flexible)
	IsEuropeanFormat bool   // Amount format: true = 1.234,56, false = 1,234.56
	RowLines         []int  // Physical line of each data row, as returned by ReadRowsWithLines
}

// DefaultConfig returns a parser config with sensible defaults
func DefaultConfig() ParserConfig {
	return ParserConfig{Delimiter: ','}
}

// ParseError represents a parsing error for a specific row
type ParseError struct {
	Row     int
	Column  string
	Message string
	RawData string
}

func (e ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// Record is implemented by typed import rows.
type Record interface {
	Validate(cfg ParserConfig) error
}

// ParseResult contains the typed records of an import and the rows that failed
type ParseResult[T Record] struct {
	Records   []T
	Errors    []ParseError
	TotalRows int
}

var ErrNoRows = errors.New("no rows to parse")

// ReadRows splits normalized CSV text into rows. SkipLines counts physical
// lines, blank ones included, so it matches the header row index reported by
// the sniffer. limit <= 0 reads everything.
func ReadRows(text string, config ParserConfig, limit int) ([][]string, error) {
	rows, _, err := ReadRowsWithLines(text, config, limit)
	return rows, err
}

// ReadRowsWithLines is ReadRows that also returns the 1-based line of text on
// which each row starts. Blank lines and quoted cells spanning several lines
// are counted.
func ReadRowsWithLines(text string, config ParserConfig, limit int) ([][]string, []int, error) {
	reader := newCSVReader(strings.NewReader(skipLines(text, config.SkipLines)), config)

	var (
		rows  [][]string
		lines []int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		line, _ := reader.FieldPos(0)
		rows = append(rows, record)
		lines = append(lines, line+config.SkipLines)
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows, lines, nil
}

func skipLines(text string, n int) string {
	for ; n > 0; n-- {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			return ""
		}
		text = text[i+1:]
	}
	return text
}

// Remap rebuilds rows so that column i holds fields[i], using mapping to
// locate each field in the source row. The first returned row is the header
// made of field labels ("client.name" becomes "name"). Unmapped fields stay
// empty.
func Remap(rows [][]string, fields []string, mapping map[string]int) [][]string {
	header := make([]string, len(fields))
	for i, field := range fields {
		header[i] = FieldLabel(field)
	}

	out := make([][]string, 0, len(rows)+1)
	out = append(out, header)
	for _, row := range rows {
		mapped := make([]string, len(fields))
		for i, field := range fields {
			idx, ok := mapping[field]
			if ok && idx >= 0 && idx < len(row) {
				mapped[i] = strings.TrimSpace(row[idx])
			}
		}
		out = append(out, mapped)
	}
	return out
}

// FieldLabel strips the entity prefix from an import field name.
func FieldLabel(field string) string {
	if i := strings.LastIndex(field, "."); i >= 0 {
		return field[i+1:]
	}
	return field
}

// Unmarshal decodes a header row plus data rows into typed records and
// validates each one. Rows that fail validation are reported in Errors and
// left out of Records. Error rows come from config.RowLines when set,
// otherwise they are counted from SkipLines assuming one line per row.
func Unmarshal[T Record](rows [][]string, config ParserConfig) (*ParseResult[T], error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	var records []T
	if err := gocsv.UnmarshalCSV(&sliceReader{rows: rows}, &records); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	result := &ParseResult[T]{
		Records:   make([]T, 0, len(records)),
		TotalRows: len(records),
	}
	for i, rec := range records {
		rowNum := rowNumber(i, config)
		if err := rec.Validate(config); err != nil {
			var pe ParseError
			if errors.As(err, &pe) {
				pe.Row = rowNum
				result.Errors = append(result.Errors, pe)
			} else {
				result.Errors = append(result.Errors, ParseError{Row: rowNum, Message: err.Error()})
			}
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func rowNumber(i int, config ParserConfig) int {
	if i < len(config.RowLines) {
		return config.RowLines[i]
	}
	return i + config.SkipLines + 2 // +2 for 1-indexed and header
}

func newCSVReader(r io.Reader, config ParserConfig) *csv.Reader {
	reader := csv.NewReader(r)
	if config.Delimiter != 0 {
		reader.Comma = config.Delimiter
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader
}

// sliceReader feeds already split rows to gocsv.
type sliceReader struct {
	rows [][]string
	pos  int
}

func (r *sliceReader) Read() ([]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *sliceReader) ReadAll() ([][]string, error) {
	rest := r.rows[r.pos:]
	r.pos = len(r.rows)
	return rest, nil
}

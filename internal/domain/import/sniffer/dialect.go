package sniffer

import "strings"

// RegionalDialect represents inferred regional formatting for amounts and dates
type RegionalDialect struct {
	DecimalSeparator   rune    // '.' (US) or ',' (EU)
	ThousandsSeparator rune    // ',' (US) or '.' (EU)
	DateFormat         string  // "DD/MM/YYYY" or "MM/DD/YYYY"
	CurrencyHint       string  // "EUR", "USD", "GBP" if detected
	Confidence         float64 // 0.0-1.0 confidence score
	IsEuropeanFormat   bool    // true if comma is the decimal separator
}

var currencyHints = []struct {
	token    string
	code     string
	european bool
}{
	{"€", "EUR", true},
	{"EUR", "EUR", true},
	{"£", "GBP", false},
	{"GBP", "GBP", false},
	{"R$", "BRL", true},
	{"$", "USD", false},
	{"USD", "USD", false},
}

// ProbeDialect analyzes sample rows to infer the amount and date format of an
// import. amountIdx and dateIdx may be -1 when the column is unknown.
func ProbeDialect(rows [][]string, amountIdx, dateIdx int) *RegionalDialect {
	dialect := &RegionalDialect{
		DecimalSeparator:   '.',
		ThousandsSeparator: ',',
		DateFormat:         "MM/DD/YYYY",
		Confidence:         0.5,
	}

	europeanHints, usHints := 0, 0
	dayFirst, monthFirst := false, false

	for _, row := range rows {
		if v := cell(row, amountIdx); v != "" {
			switch hint := amountFormatHint(v); {
			case hint > 0:
				europeanHints++
			case hint < 0:
				usHints++
			}
			if code, european, ok := currencyHint(v); ok {
				dialect.CurrencyHint = code
				if european {
					europeanHints++
				} else {
					usHints++
				}
			}
		}

		if v := cell(row, dateIdx); v != "" {
			if isDayFirst(v) {
				dayFirst = true
			} else {
				monthFirst = true
			}
		}
	}

	if europeanHints > usHints {
		dialect.DecimalSeparator = ','
		dialect.ThousandsSeparator = '.'
		dialect.IsEuropeanFormat = true
	}

	if total := europeanHints + usHints; total > 0 {
		winning := max(europeanHints, usHints)
		dialect.Confidence = float64(winning) / float64(total)
	}

	switch {
	case dayFirst && !monthFirst:
		dialect.DateFormat = "DD/MM/YYYY"
	case !dayFirst && monthFirst:
		dialect.DateFormat = "MM/DD/YYYY"
	case dialect.IsEuropeanFormat:
		// Ambiguous dates follow the amount format.
		dialect.DateFormat = "DD/MM/YYYY"
	}

	return dialect
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func currencyHint(v string) (string, bool, bool) {
	for _, h := range currencyHints {
		if strings.Contains(v, h.token) {
			return h.code, h.european, true
		}
	}
	return "", false, false
}

// amountFormatHint returns >0 for European, <0 for US, 0 for ambiguous
func amountFormatHint(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)

	comma := strings.LastIndex(cleaned, ",")
	dot := strings.LastIndex(cleaned, ".")

	switch {
	case comma >= 0 && dot >= 0:
		// The last separator is the decimal one.
		if comma > dot {
			return 1
		}
		return -1
	case comma >= 0:
		if len(cleaned)-comma-1 <= 2 {
			return 1
		}
	case dot >= 0:
		if len(cleaned)-dot-1 <= 2 {
			return -1
		}
	}
	return 0
}

// isDayFirst reports whether the leading date component can only be a day.
func isDayFirst(v string) bool {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) < 2 {
		return false
	}

	day := 0
	for _, c := range strings.TrimSpace(parts[0]) {
		if c < '0' || c > '9' {
			break
		}
		day = day*10 + int(c-'0')
	}
	return day > 12 && day <= 31
}

package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var currencySymbols = []struct {
	token string
	code  string
}{
	{"R$", "BRL"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"$", "USD"},
	{"USD", "USD"},
	{"EUR", "EUR"},
	{"GBP", "GBP"},
	{"BRL", "BRL"},
}

var dateFormats = []string{
	"2006-01-02",           // ISO 8601
	"02/01/2006",           // DD/MM/YYYY (European)
	"01/02/2006",           // MM/DD/YYYY (American)
	"02-01-2006",           // DD-MM-YYYY
	"01-02-2006",           // MM-DD-YYYY
	"2006/01/02",           // YYYY/MM/DD
	"02.01.2006",           // DD.MM.YYYY (German)
	"2006-01-02T15:04:05Z", // ISO 8601 with time
	"2006-01-02 15:04:05",  // ISO with space
}

// ParseAmount parses a money cell into a decimal and returns the ISO currency
// code when the cell carries a symbol. Parentheses and a leading minus both
// mark negative amounts.
func ParseAmount(s string, european bool) (decimal.Decimal, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, "", fmt.Errorf("empty amount")
	}

	currency := ""
	for _, sym := range currencySymbols {
		if strings.Contains(s, sym.token) {
			currency = sym.code
			s = strings.ReplaceAll(s, sym.token, "")
			break
		}
	}
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "(") {
		negative = true
		s = strings.TrimPrefix(s, "-")
		s = strings.Trim(s, "()")
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")

	if european {
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, currency, fmt.Errorf("invalid number: %s", s)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, currency, nil
}

// ParseDate parses a date cell. layout, when set, is tried before the common
// formats.
func ParseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized format: %s", s)
}

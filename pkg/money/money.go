// Package money provides currency-safe amounts in integer minor units
// backed by go-money, with conversion to and from shopspring/decimal.
package money

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	BRL = "BRL" // Brazilian Real
	JPY = "JPY" // Japanese Yen (no decimal places)
)

// Money is a monetary value in a single currency.
type Money struct {
	m *money.Money
}

// IsKnownCurrency reports whether code is an ISO-4217 code go-money knows.
// Codes are matched case-insensitively.
func IsKnownCurrency(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	return code != "" && money.GetCurrency(code) != nil
}

// New creates a Money value from minor units (cents).
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, strings.ToUpper(currencyCode))}
}

// NewFromDecimal rounds amount to the minor unit of the currency. Unknown
// currencies are rejected.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) (*Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	currency := money.GetCurrency(code)
	if currency == nil {
		return nil, fmt.Errorf("unknown currency %q", currencyCode)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return New(cents, code), nil
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// String returns the amount as a decimal string (e.g., "1234.56")
func (m *Money) String() string {
	return m.ToDecimal().StringFixed(m.fraction())
}

// ToDecimal converts the minor units back to a decimal amount
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -m.fraction())
}

func (m *Money) fraction() int32 {
	if m == nil || m.m == nil {
		return 2
	}
	return int32(m.m.Currency().Fraction)
}

func (m *Money) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(map[string]any{
		"amount":   m.String(),
		"currency": m.Currency(),
		"display":  m.Display(),
	})
}

// Totals accumulates amounts per currency.
type Totals map[string]*Money

// Add adds amount to the running total of its currency.
func (t Totals) Add(amount decimal.Decimal, currencyCode string) error {
	value, err := NewFromDecimal(amount, currencyCode)
	if err != nil {
		return err
	}

	sum, err := t[value.Currency()].Add(value)
	if err != nil {
		return err
	}
	t[value.Currency()] = sum
	return nil
}

// Currencies returns the currency codes held, sorted.
func (t Totals) Currencies() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

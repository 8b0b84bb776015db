package parser

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/invoice-import/pkg/money"
)

// Valued is implemented by records that carry a money amount. ok is false
// when the row has no amount to report.
type Valued interface {
	Value(cfg ParserConfig) (amount decimal.Decimal, currency string, ok bool)
}

// ClientRow is a client record as it arrives from an import file.
type ClientRow struct {
	Name       string `csv:"name"`
	Number     string `csv:"number"`
	Email      string `csv:"email"`
	Phone      string `csv:"phone"`
	Website    string `csv:"website"`
	Address1   string `csv:"address1"`
	Address2   string `csv:"address2"`
	City       string `csv:"city"`
	State      string `csv:"state"`
	PostalCode string `csv:"postal_code"`
	Country    string `csv:"country"`
	IDNumber   string `csv:"id_number"`
	VATNumber  string `csv:"vat_number"`
	Currency   string `csv:"currency"`
	PublicNote string `csv:"public_notes"`
}

func (r ClientRow) Validate(_ ParserConfig) error {
	if strings.TrimSpace(r.Name) == "" && strings.TrimSpace(r.Email) == "" {
		return ParseError{Column: "name", Message: "client needs a name or an email"}
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return ParseError{Column: "email", Message: "invalid email", RawData: r.Email}
		}
	}
	return validateCurrency(r.Currency)
}

// ProductRow is a product record as it arrives from an import file.
type ProductRow struct {
	ProductKey string `csv:"product_key"`
	Notes      string `csv:"notes"`
	Cost       string `csv:"cost"`
	Price      string `csv:"price"`
	Quantity   string `csv:"quantity"`
	TaxName1   string `csv:"tax_name1"`
	TaxRate1   string `csv:"tax_rate1"`
}

func (r ProductRow) Validate(cfg ParserConfig) error {
	if strings.TrimSpace(r.ProductKey) == "" {
		return ParseError{Column: "product_key", Message: "missing product key"}
	}
	return validateAmounts(cfg, map[string]string{
		"cost":      r.Cost,
		"price":     r.Price,
		"quantity":  r.Quantity,
		"tax_rate1": r.TaxRate1,
	})
}

// InvoiceRow is an invoice or quote line as it arrives from an import file.
type InvoiceRow struct {
	Number       string `csv:"number"`
	ClientName   string `csv:"client_name"`
	ClientEmail  string `csv:"client_email"`
	Date         string `csv:"date"`
	DueDate      string `csv:"due_date"`
	PONumber     string `csv:"po_number"`
	Amount       string `csv:"amount"`
	Paid         string `csv:"paid"`
	Discount     string `csv:"discount"`
	ItemKey      string `csv:"item_product_key"`
	ItemNotes    string `csv:"item_notes"`
	ItemCost     string `csv:"item_cost"`
	ItemQuantity string `csv:"item_quantity"`
	PublicNotes  string `csv:"public_notes"`
	Terms        string `csv:"terms"`
}

// Value returns the invoice total.
func (r InvoiceRow) Value(cfg ParserConfig) (decimal.Decimal, string, bool) {
	return cellValue(r.Amount, cfg)
}

func (r InvoiceRow) Validate(cfg ParserConfig) error {
	if strings.TrimSpace(r.ClientName) == "" && strings.TrimSpace(r.ClientEmail) == "" {
		return ParseError{Column: "client_name", Message: "invoice needs a client"}
	}
	for column, value := range map[string]string{"date": r.Date, "due_date": r.DueDate} {
		if value == "" {
			continue
		}
		if _, err := ParseDate(value, cfg.DateFormat); err != nil {
			return ParseError{Column: column, Message: err.Error(), RawData: value}
		}
	}
	return validateAmounts(cfg, map[string]string{
		"amount":        r.Amount,
		"paid":          r.Paid,
		"discount":      r.Discount,
		"item_cost":     r.ItemCost,
		"item_quantity": r.ItemQuantity,
	})
}

// PaymentRow is a payment record as it arrives from an import file.
type PaymentRow struct {
	Number         string `csv:"number"`
	InvoiceNumber  string `csv:"invoice_number"`
	ClientName     string `csv:"client_name"`
	Date           string `csv:"date"`
	Amount         string `csv:"amount"`
	TransactionRef string `csv:"transaction_reference"`
	PrivateNotes   string `csv:"private_notes"`
}

func (r PaymentRow) Value(cfg ParserConfig) (decimal.Decimal, string, bool) {
	return cellValue(r.Amount, cfg)
}

func (r PaymentRow) Validate(cfg ParserConfig) error {
	if strings.TrimSpace(r.Amount) == "" {
		return ParseError{Column: "amount", Message: "missing amount"}
	}
	if r.Date != "" {
		if _, err := ParseDate(r.Date, cfg.DateFormat); err != nil {
			return ParseError{Column: "date", Message: err.Error(), RawData: r.Date}
		}
	}
	return validateAmounts(cfg, map[string]string{"amount": r.Amount})
}

// VendorRow is a vendor record as it arrives from an import file.
type VendorRow struct {
	Name      string `csv:"name"`
	Number    string `csv:"number"`
	Email     string `csv:"email"`
	Phone     string `csv:"phone"`
	Address1  string `csv:"address1"`
	City      string `csv:"city"`
	Country   string `csv:"country"`
	VATNumber string `csv:"vat_number"`
	Currency  string `csv:"currency"`
}

func (r VendorRow) Validate(_ ParserConfig) error {
	if strings.TrimSpace(r.Name) == "" {
		return ParseError{Column: "name", Message: "missing vendor name"}
	}
	return validateCurrency(r.Currency)
}

// ExpenseRow is an expense record as it arrives from an import file.
type ExpenseRow struct {
	Number       string `csv:"number"`
	VendorName   string `csv:"vendor"`
	ClientName   string `csv:"client"`
	Category     string `csv:"category"`
	Date         string `csv:"date"`
	Amount       string `csv:"amount"`
	Currency     string `csv:"currency"`
	PublicNotes  string `csv:"public_notes"`
	PrivateNotes string `csv:"private_notes"`
}

func (r ExpenseRow) Validate(cfg ParserConfig) error {
	if strings.TrimSpace(r.Amount) == "" {
		return ParseError{Column: "amount", Message: "missing amount"}
	}
	if r.Date != "" {
		if _, err := ParseDate(r.Date, cfg.DateFormat); err != nil {
			return ParseError{Column: "date", Message: err.Error(), RawData: r.Date}
		}
	}
	if err := validateCurrency(r.Currency); err != nil {
		return err
	}
	return validateAmounts(cfg, map[string]string{"amount": r.Amount})
}

// Value returns the expense amount. The currency column wins over a symbol
// in the amount cell.
func (r ExpenseRow) Value(cfg ParserConfig) (decimal.Decimal, string, bool) {
	amount, currency, ok := cellValue(r.Amount, cfg)
	if code := strings.TrimSpace(r.Currency); code != "" {
		currency = strings.ToUpper(code)
	}
	return amount, currency, ok
}

func validateCurrency(code string) error {
	if strings.TrimSpace(code) == "" || money.IsKnownCurrency(code) {
		return nil
	}
	return ParseError{Column: "currency", Message: "unknown currency code", RawData: code}
}

func cellValue(cell string, cfg ParserConfig) (decimal.Decimal, string, bool) {
	if strings.TrimSpace(cell) == "" {
		return decimal.Zero, "", false
	}
	amount, currency, err := ParseAmount(cell, cfg.IsEuropeanFormat)
	if err != nil {
		return decimal.Zero, "", false
	}
	return amount, currency, true
}

func validateAmounts(cfg ParserConfig, values map[string]string) error {
	for column, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, _, err := ParseAmount(value, cfg.IsEuropeanFormat); err != nil {
			return ParseError{Column: column, Message: fmt.Sprintf("invalid amount: %s", err.Error()), RawData: value}
		}
	}
	return nil
}

// ContactRow is a client contact as it arrives from an import file.
type ContactRow struct {
	ClientName string `csv:"client_name"`
	FirstName  string `csv:"first_name"`
	LastName   string `csv:"last_name"`
	Email      string `csv:"email"`
	Phone      string `csv:"phone"`
}

func (r ContactRow) Validate(_ ParserConfig) error {
	if strings.TrimSpace(r.ClientName) == "" {
		return ParseError{Column: "client_name", Message: "contact needs a client"}
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return ParseError{Column: "email", Message: "invalid email", RawData: r.Email}
		}
	}
	return nil
}

// TaskRow is a task as it arrives from an import file.
type TaskRow struct {
	Number      string `csv:"number"`
	Description string `csv:"description"`
	ClientName  string `csv:"client_name"`
	ProjectName string `csv:"project_name"`
	Rate        string `csv:"rate"`
	Duration    string `csv:"duration"`
	Date        string `csv:"date"`
}

func (r TaskRow) Validate(cfg ParserConfig) error {
	if strings.TrimSpace(r.Description) == "" {
		return ParseError{Column: "description", Message: "missing description"}
	}
	if r.Date != "" {
		if _, err := ParseDate(r.Date, cfg.DateFormat); err != nil {
			return ParseError{Column: "date", Message: err.Error(), RawData: r.Date}
		}
	}
	return validateAmounts(cfg, map[string]string{"rate": r.Rate, "duration": r.Duration})
}

package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/invoice-import/internal/domain/import/parser"
)

var ErrUnknownEntity = errors.New("unknown import entity")

// Entity names an importable record type.
type Entity string

const (
	EntityClient  Entity = "client"
	EntityContact Entity = "contact"
	EntityInvoice Entity = "invoice"
	EntityQuote   Entity = "quote"
	EntityPayment Entity = "payment"
	EntityProduct Entity = "product"
	EntityVendor  Entity = "vendor"
	EntityExpense Entity = "expense"
	EntityTask    Entity = "task"
)

// Entities lists every importable entity in display order.
var Entities = []Entity{
	EntityClient, EntityContact, EntityInvoice, EntityQuote, EntityPayment,
	EntityProduct, EntityVendor, EntityExpense, EntityTask,
}

var invoiceFields = []string{
	"number", "client_name", "client_email", "date", "due_date", "po_number",
	"amount", "paid", "discount", "item_product_key", "item_notes", "item_cost",
	"item_quantity", "public_notes", "terms",
}

var entityFields = map[Entity][]string{
	EntityClient: {
		"name", "number", "email", "phone", "website", "address1", "address2",
		"city", "state", "postal_code", "country", "id_number", "vat_number",
		"currency", "public_notes",
	},
	EntityContact: {"client_name", "first_name", "last_name", "email", "phone"},
	EntityInvoice: invoiceFields,
	EntityQuote:   invoiceFields,
	EntityPayment: {
		"number", "invoice_number", "client_name", "date", "amount",
		"transaction_reference", "private_notes",
	},
	EntityProduct: {"product_key", "notes", "cost", "price", "quantity", "tax_name1", "tax_rate1"},
	EntityVendor:  {"name", "number", "email", "phone", "address1", "city", "country", "vat_number", "currency"},
	EntityExpense: {
		"number", "vendor", "client", "category", "date", "amount", "currency",
		"public_notes", "private_notes",
	},
	EntityTask: {"number", "description", "client_name", "project_name", "rate", "duration", "date"},
}

// ParseEntity validates an entity name.
func ParseEntity(s string) (Entity, error) {
	e := Entity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := entityFields[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
	}
	return e, nil
}

// AvailableFields returns the importable field names of an entity, prefixed
// with the entity name ("client.name").
func AvailableFields(e Entity) []string {
	labels := entityFields[e]
	fields := make([]string, len(labels))
	for i, label := range labels {
		fields[i] = string(e) + "." + label
	}
	return fields
}

// decodeRecords turns remapped rows into typed records for the entity.
func decodeRecords(e Entity, rows [][]string, cfg parser.ParserConfig) ([]parser.Record, []parser.ParseError, int, error) {
	switch e {
	case EntityClient:
		return decode[parser.ClientRow](rows, cfg)
	case EntityContact:
		return decode[parser.ContactRow](rows, cfg)
	case EntityInvoice, EntityQuote:
		return decode[parser.InvoiceRow](rows, cfg)
	case EntityPayment:
		return decode[parser.PaymentRow](rows, cfg)
	case EntityProduct:
		return decode[parser.ProductRow](rows, cfg)
	case EntityVendor:
		return decode[parser.VendorRow](rows, cfg)
	case EntityExpense:
		return decode[parser.ExpenseRow](rows, cfg)
	case EntityTask:
		return decode[parser.TaskRow](rows, cfg)
	default:
		return nil, nil, 0, fmt.Errorf("%w: %q", ErrUnknownEntity, e)
	}
}

func decode[T parser.Record](rows [][]string, cfg parser.ParserConfig) ([]parser.Record, []parser.ParseError, int, error) {
	result, err := parser.Unmarshal[T](rows, cfg)
	if err != nil {
		return nil, nil, 0, err
	}
	records := make([]parser.Record, len(result.Records))
	for i, rec := range result.Records {
		records[i] = rec
	}
	return records, result.Errors, result.TotalRows, nil
}

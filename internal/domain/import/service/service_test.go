package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/FACorreiaa/invoice-import/internal/domain/import/parser"
	"github.com/FACorreiaa/invoice-import/internal/domain/import/repository"
	"github.com/FACorreiaa/invoice-import/pkg/cache"
	"github.com/FACorreiaa/invoice-import/pkg/storage"
)

type recordingWriter struct {
	mu      sync.Mutex
	entity  Entity
	records []parser.Record
	err     error
}

func (w *recordingWriter) WriteRecords(_ context.Context, _ uuid.UUID, entity Entity, records []parser.Record) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	w.entity = entity
	w.records = append(w.records, records...)
	return len(records), nil
}

type memoryMappingRepo struct {
	mu       sync.Mutex
	mappings map[string]*repository.ImportMapping
}

func newMemoryMappingRepo() *memoryMappingRepo {
	return &memoryMappingRepo{mappings: make(map[string]*repository.ImportMapping)}
}

func mappingKey(companyID uuid.UUID, entity, fingerprint string) string {
	return companyID.String() + "|" + entity + "|" + fingerprint
}

func (r *memoryMappingRepo) SaveMapping(_ context.Context, m *repository.ImportMapping) (*repository.ImportMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := *m
	saved.ID = uuid.New()
	r.mappings[mappingKey(m.CompanyID, m.EntityType, m.Fingerprint)] = &saved
	return &saved, nil
}

func (r *memoryMappingRepo) GetMappingByFingerprint(_ context.Context, companyID uuid.UUID, entity, fingerprint string) (*repository.ImportMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[mappingKey(companyID, entity, fingerprint)]
	if !ok {
		return nil, repository.ErrMappingNotFound
	}
	return m, nil
}

func (r *memoryMappingRepo) ListMappings(_ context.Context, companyID uuid.UUID) ([]*repository.ImportMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.ImportMapping
	for _, m := range r.mappings {
		if m.CompanyID == companyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryMappingRepo) DeleteMapping(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

// unreadableStorage stores files but fails every read.
type unreadableStorage struct {
	storage.Storage
}

func (unreadableStorage) GetReader(context.Context, uuid.UUID, uuid.UUID) (io.ReadCloser, error) {
	return nil, errors.New("disk on fire")
}

func newTestService(t *testing.T) (*ImportService, *recordingWriter, *memoryMappingRepo) {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	writer := &recordingWriter{}
	repo := newMemoryMappingRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewImportService(store, cache.NewMemoryCache(), writer, Options{PreviewRows: 3}, logger).
		WithMappingRepository(repo)
	return svc, writer, repo
}

func utf16LE(t *testing.T, s string) []byte {
	t.Helper()
	out, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

func windows1252(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.Windows1252.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

func TestPreimport(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()

	t.Run("UTF-16 file with BOM", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		res, err := svc.Preimport(ctx, companyID, []Upload{{
			Entity:   EntityClient,
			Filename: "clients.csv",
			Data:     utf16LE(t, "Name,Email\nAda,ada@example.com\nGrace,grace@example.com"),
		}})

		require.NoError(t, err)
		assert.NotEmpty(t, res.Hash)
		require.Len(t, res.Files, 1)

		f := res.Files[0]
		assert.Equal(t, "wide", f.Strategy)
		assert.Equal(t, "UTF-16LE", f.Encoding)
		assert.True(t, f.Valid)
		assert.Equal(t, ",", f.Delimiter)
		assert.Equal(t, []string{"Name", "Email"}, f.Headers)
		assert.Equal(t, [][]string{{"Ada", "ada@example.com"}, {"Grace", "grace@example.com"}}, f.Rows)
		assert.Equal(t, map[string]int{"client.name": 0, "client.email": 1}, f.Suggested)
		assert.Contains(t, f.Available, "client.postal_code")
		assert.Nil(t, f.SavedMapping)
	})

	t.Run("Windows-1252 file with semicolons", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		res, err := svc.Preimport(ctx, companyID, []Upload{{
			Entity:   EntityVendor,
			Filename: "vendors.csv",
			Data:     windows1252(t, "Name;City\nCafé Lumière;Montréal"),
		}})

		require.NoError(t, err)
		f := res.Files[0]
		assert.True(t, f.Valid)
		assert.Equal(t, ";", f.Delimiter)
		assert.Equal(t, [][]string{{"Café Lumière", "Montréal"}}, f.Rows)
	})

	t.Run("preview is limited", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		var b strings.Builder
		b.WriteString("product_key,price\n")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&b, "SKU-%d,%d.00\n", i, i)
		}

		res, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityProduct, Filename: "p.csv", Data: []byte(b.String())}})

		require.NoError(t, err)
		assert.Len(t, res.Files[0].Rows, 3)
	})

	t.Run("European amounts are probed", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		res, err := svc.Preimport(ctx, companyID, []Upload{{
			Entity:   EntityProduct,
			Filename: "products.csv",
			Data:     []byte("product_key;price\nWIDGET;1.234,56\nGADGET;10,50"),
		}})

		require.NoError(t, err)
		f := res.Files[0]
		require.NotNil(t, f.Dialect)
		assert.True(t, f.Dialect.IsEuropeanFormat)
		assert.Equal(t, 1, f.Suggested["product.price"])
	})

	t.Run("workbook upload", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		wb := excelize.NewFile()
		defer wb.Close()
		require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]any{"Name", "Email"}))
		require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]any{"Ada", "ada@example.com"}))
		var buf bytes.Buffer
		require.NoError(t, wb.Write(&buf))

		res, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityClient, Filename: "clients.xlsx", Data: buf.Bytes()}})

		require.NoError(t, err)
		f := res.Files[0]
		assert.Equal(t, StrategyXLSX, f.Strategy)
		assert.Equal(t, []string{"Name", "Email"}, f.Headers)
		assert.Equal(t, [][]string{{"Ada", "ada@example.com"}}, f.Rows)
	})

	t.Run("empty file", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		res, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityClient, Filename: "empty.csv"}})

		require.NoError(t, err)
		f := res.Files[0]
		assert.Empty(t, f.Headers)
		assert.Empty(t, f.Rows)
		assert.Equal(t, ",", f.Delimiter)
	})

	t.Run("unreadable stored file yields empty text", func(t *testing.T) {
		store, err := storage.NewLocalStorage(t.TempDir())
		require.NoError(t, err)
		svc := NewImportService(unreadableStorage{store}, cache.NewMemoryCache(), &recordingWriter{}, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

		res, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityClient, Filename: "c.csv", Data: []byte("name\nAda")}})

		require.NoError(t, err)
		assert.Empty(t, res.Files[0].Headers)
	})

	t.Run("unknown entity", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Preimport(ctx, companyID, []Upload{{Entity: "spaceship", Filename: "x.csv", Data: []byte("a")}})
		assert.ErrorIs(t, err, ErrUnknownEntity)
	})

	t.Run("no files", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Preimport(ctx, companyID, nil)
		assert.ErrorIs(t, err, ErrNoFiles)
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	gofakeit.Seed(42)

	var b strings.Builder
	b.WriteString("Full Name,E-mail Address,Town\n")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "%s,%s,%s\n", gofakeit.Name(), strings.ToLower(gofakeit.Email()), gofakeit.City())
	}
	b.WriteString(",,Nowhere\n")
	clients := []byte(b.String())

	t.Run("imports with an explicit mapping", func(t *testing.T) {
		svc, writer, repo := newTestService(t)

		pre, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityClient, Filename: "clients.csv", Data: clients}})
		require.NoError(t, err)

		mapping := map[string]int{"client.name": 0, "client.email": 1, "client.city": 2, "client.bogus": 7}
		summary, err := svc.Import(ctx, companyID, ImportRequest{
			Hash:        pre.Hash,
			Entity:      EntityClient,
			Mapping:     mapping,
			SaveMapping: true,
		})

		require.NoError(t, err)
		assert.Equal(t, 6, summary.RowsTotal)
		assert.Equal(t, 5, summary.RowsImported)
		assert.Equal(t, 1, summary.RowsFailed)
		require.Len(t, summary.Errors, 1)
		assert.Equal(t, 7, summary.Errors[0].Row)
		assert.NotContains(t, summary.Mapping, "client.bogus")
		assert.True(t, summary.MappingSaved)

		require.Len(t, writer.records, 5)
		assert.Equal(t, EntityClient, writer.entity)
		first, ok := writer.records[0].(parser.ClientRow)
		require.True(t, ok)
		assert.NotEmpty(t, first.Name)
		assert.Contains(t, first.Email, "@")
		assert.NotEmpty(t, first.City)

		saved, err := repo.GetMappingByFingerprint(ctx, companyID, "client", pre.Files[0].Fingerprint)
		require.NoError(t, err)
		assert.Equal(t, 2, saved.Columns["client.city"])
	})

	t.Run("saved mapping is reused", func(t *testing.T) {
		svc, writer, repo := newTestService(t)

		first, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityClient, Filename: "clients.csv", Data: clients}})
		require.NoError(t, err)
		_, err = repo.SaveMapping(ctx, &repository.ImportMapping{
			CompanyID:   companyID,
			EntityType:  "client",
			Fingerprint: first.Files[0].Fingerprint,
			Columns:     map[string]int{"client.name": 0, "client.email": 1, "client.city": 2},
		})
		require.NoError(t, err)

		second, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityClient, Filename: "clients.csv", Data: clients}})
		require.NoError(t, err)
		require.NotNil(t, second.Files[0].SavedMapping)

		summary, err := svc.Import(ctx, companyID, ImportRequest{Hash: second.Hash, Entity: EntityClient})

		require.NoError(t, err)
		assert.Equal(t, 5, summary.RowsImported)
		assert.Equal(t, 2, summary.Mapping["client.city"])
		assert.Len(t, writer.records, 5)
	})

	t.Run("European products", func(t *testing.T) {
		svc, writer, _ := newTestService(t)

		pre, err := svc.Preimport(ctx, companyID, []Upload{{
			Entity:   EntityProduct,
			Filename: "products.csv",
			Data:     []byte("product_key;price\nWIDGET;1.234,56\nGADGET;10,50"),
		}})
		require.NoError(t, err)

		summary, err := svc.Import(ctx, companyID, ImportRequest{Hash: pre.Hash, Entity: EntityProduct})

		require.NoError(t, err)
		assert.Equal(t, 2, summary.RowsImported)
		require.Len(t, writer.records, 2)
		assert.Equal(t, "1.234,56", writer.records[0].(parser.ProductRow).Price)
	})

	t.Run("expense totals per currency", func(t *testing.T) {
		store, err := storage.NewLocalStorage(t.TempDir())
		require.NoError(t, err)
		svc := NewImportService(store, cache.NewMemoryCache(), &recordingWriter{},
			Options{DefaultCurrency: "EUR"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

		pre, err := svc.Preimport(ctx, companyID, []Upload{{
			Entity:   EntityExpense,
			Filename: "expenses.csv",
			Data:     []byte("amount;currency\n10.00;CHF\n5.00;\n2.50;\n"),
		}})
		require.NoError(t, err)

		us := false
		summary, err := svc.Import(ctx, companyID, ImportRequest{
			Hash:             pre.Hash,
			Entity:           EntityExpense,
			Mapping:          map[string]int{"expense.amount": 0, "expense.currency": 1},
			IsEuropeanFormat: &us,
		})

		require.NoError(t, err)
		assert.Equal(t, 3, summary.RowsImported)
		require.Len(t, summary.Totals, 2)
		assert.Equal(t, "10.00", summary.Totals["CHF"].String())
		assert.Equal(t, "7.50", summary.Totals["EUR"].String())
	})

	t.Run("error rows are physical lines", func(t *testing.T) {
		svc, writer, _ := newTestService(t)

		data := "name,email,city\nAda,ada@example.com,\"London\nUK\"\n\nBob,bob-at-paris,Paris\n"
		pre, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityClient, Filename: "clients.csv", Data: []byte(data)}})
		require.NoError(t, err)

		summary, err := svc.Import(ctx, companyID, ImportRequest{
			Hash:    pre.Hash,
			Entity:  EntityClient,
			Mapping: map[string]int{"client.name": 0, "client.email": 1, "client.city": 2},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, summary.RowsImported)
		require.Len(t, writer.records, 1)
		assert.Equal(t, "London\nUK", writer.records[0].(parser.ClientRow).City)
		require.Len(t, summary.Errors, 1)
		assert.Equal(t, 5, summary.Errors[0].Row)
	})

	t.Run("expired preimport", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Import(ctx, companyID, ImportRequest{Hash: "missing", Entity: EntityClient})
		assert.ErrorIs(t, err, ErrPreimportExpired)
	})

	t.Run("writer failure", func(t *testing.T) {
		svc, writer, _ := newTestService(t)
		writer.err = errors.New("orm unavailable")

		pre, err := svc.Preimport(ctx, companyID, []Upload{{Entity: EntityClient, Filename: "clients.csv", Data: clients}})
		require.NoError(t, err)

		_, err = svc.Import(ctx, companyID, ImportRequest{Hash: pre.Hash, Entity: EntityClient, Mapping: map[string]int{"client.name": 0}})
		assert.ErrorContains(t, err, "orm unavailable")
	})
}

func TestReadFileWithProperEncoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latin1.csv")
	require.NoError(t, os.WriteFile(path, []byte("name\nCaf\xe9"), 0o644))

	assert.Equal(t, "name\nCafé", ReadFileWithProperEncoding(path))
	assert.Equal(t, "", ReadFileWithProperEncoding(filepath.Join(dir, "missing.csv")))
}

func TestAvailableFields(t *testing.T) {
	for _, e := range Entities {
		fields := AvailableFields(e)
		require.NotEmpty(t, fields, string(e))
		for _, f := range fields {
			assert.True(t, strings.HasPrefix(f, string(e)+"."), f)
		}
	}

	e, err := ParseEntity(" Invoice ")
	require.NoError(t, err)
	assert.Equal(t, EntityInvoice, e)
}

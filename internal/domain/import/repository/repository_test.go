package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mappingColumns = []string{
	"id", "company_id", "entity_type", "fingerprint", "delimiter",
	"header_row", "columns", "created_at", "updated_at",
}

func TestSaveMapping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresImportMappingRepository(mock)
	companyID := uuid.New()
	mappingID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO import_mappings`).
		WithArgs(companyID, "client", "abc123", ";", 0, []byte(`{"client.email":1,"client.name":0}`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(mappingID, now, now))

	saved, err := repo.SaveMapping(context.Background(), &ImportMapping{
		CompanyID:   companyID,
		EntityType:  "client",
		Fingerprint: "abc123",
		Delimiter:   ";",
		Columns:     map[string]int{"client.name": 0, "client.email": 1},
	})

	require.NoError(t, err)
	assert.Equal(t, mappingID, saved.ID)
	assert.Equal(t, now, saved.CreatedAt)
	assert.Equal(t, 1, saved.Columns["client.email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMappingByFingerprint(t *testing.T) {
	companyID := uuid.New()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		now := time.Now()
		mock.ExpectQuery(`SELECT id, company_id, entity_type`).
			WithArgs(companyID, "product", "fp").
			WillReturnRows(pgxmock.NewRows(mappingColumns).AddRow(
				id, companyID, "product", "fp", ",", 2, []byte(`{"product.product_key":3}`), now, now,
			))

		m, err := NewPostgresImportMappingRepository(mock).GetMappingByFingerprint(context.Background(), companyID, "product", "fp")

		require.NoError(t, err)
		assert.Equal(t, id, m.ID)
		assert.Equal(t, 2, m.HeaderRow)
		assert.Equal(t, map[string]int{"product.product_key": 3}, m.Columns)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, company_id, entity_type`).
			WithArgs(companyID, "product", "missing").
			WillReturnError(pgx.ErrNoRows)

		_, err = NewPostgresImportMappingRepository(mock).GetMappingByFingerprint(context.Background(), companyID, "product", "missing")
		assert.ErrorIs(t, err, ErrMappingNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, company_id, entity_type`).
			WithArgs(companyID, "product", "fp").
			WillReturnError(errors.New("connection reset"))

		_, err = NewPostgresImportMappingRepository(mock).GetMappingByFingerprint(context.Background(), companyID, "product", "fp")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMappingNotFound)
	})
}

func TestListMappings(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	companyID := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT id, company_id, entity_type`).
		WithArgs(companyID).
		WillReturnRows(pgxmock.NewRows(mappingColumns).
			AddRow(uuid.New(), companyID, "client", "a", ",", 0, []byte(`{}`), now, now).
			AddRow(uuid.New(), companyID, "invoice", "b", ";", 1, []byte(`{"invoice.number":0}`), now, now))

	mappings, err := NewPostgresImportMappingRepository(mock).ListMappings(context.Background(), companyID)

	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "invoice", mappings[1].EntityType)
	assert.Equal(t, 0, mappings[1].Columns["invoice.number"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMapping(t *testing.T) {
	companyID, id := uuid.New(), uuid.New()

	t.Run("deleted", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM import_mappings`).
			WithArgs(companyID, id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, NewPostgresImportMappingRepository(mock).DeleteMapping(context.Background(), companyID, id))
	})

	t.Run("missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM import_mappings`).
			WithArgs(companyID, id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = NewPostgresImportMappingRepository(mock).DeleteMapping(context.Background(), companyID, id)
		assert.ErrorIs(t, err, ErrMappingNotFound)
	})
}

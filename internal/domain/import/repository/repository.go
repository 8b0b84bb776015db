// Package repository persists saved column mappings for entity imports so a
// file with a known header layout can be imported without remapping.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrMappingNotFound = errors.New("import mapping not found")

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ImportMapping is a saved column mapping keyed by header fingerprint.
type ImportMapping struct {
	ID          uuid.UUID      `json:"id"`
	CompanyID   uuid.UUID      `json:"company_id"`
	EntityType  string         `json:"entity_type"`
	Fingerprint string         `json:"fingerprint"`
	Delimiter   string         `json:"delimiter"`
	HeaderRow   int            `json:"header_row"`
	Columns     map[string]int `json:"columns"` // field name -> column index
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ImportMappingRepository defines data access for saved mappings
type ImportMappingRepository interface {
	SaveMapping(ctx context.Context, m *ImportMapping) (*ImportMapping, error)
	GetMappingByFingerprint(ctx context.Context, companyID uuid.UUID, entityType, fingerprint string) (*ImportMapping, error)
	ListMappings(ctx context.Context, companyID uuid.UUID) ([]*ImportMapping, error)
	DeleteMapping(ctx context.Context, companyID, id uuid.UUID) error
}

// PostgresImportMappingRepository implements ImportMappingRepository using PostgreSQL
type PostgresImportMappingRepository struct {
	db DBTX
}

func NewPostgresImportMappingRepository(db DBTX) *PostgresImportMappingRepository {
	return &PostgresImportMappingRepository{db: db}
}

// SaveMapping inserts a mapping or replaces the one stored for the same
// company, entity and fingerprint.
func (r *PostgresImportMappingRepository) SaveMapping(ctx context.Context, m *ImportMapping) (*ImportMapping, error) {
	columns, err := json.Marshal(m.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mapping columns: %w", err)
	}

	query := `
		INSERT INTO import_mappings (company_id, entity_type, fingerprint, delimiter, header_row, columns)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, entity_type, fingerprint) DO UPDATE SET
			delimiter = EXCLUDED.delimiter,
			header_row = EXCLUDED.header_row,
			columns = EXCLUDED.columns,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	saved := *m
	err = r.db.QueryRow(ctx, query,
		m.CompanyID, m.EntityType, m.Fingerprint, m.Delimiter, m.HeaderRow, columns,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save import mapping: %w", err)
	}
	return &saved, nil
}

// GetMappingByFingerprint returns ErrMappingNotFound when nothing is saved
func (r *PostgresImportMappingRepository) GetMappingByFingerprint(ctx context.Context, companyID uuid.UUID, entityType, fingerprint string) (*ImportMapping, error) {
	query := `
		SELECT id, company_id, entity_type, fingerprint, delimiter, header_row, columns, created_at, updated_at
		FROM import_mappings
		WHERE company_id = $1 AND entity_type = $2 AND fingerprint = $3
	`

	m, err := scanMapping(r.db.QueryRow(ctx, query, companyID, entityType, fingerprint))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import mapping: %w", err)
	}
	return m, nil
}

func (r *PostgresImportMappingRepository) ListMappings(ctx context.Context, companyID uuid.UUID) ([]*ImportMapping, error) {
	query := `
		SELECT id, company_id, entity_type, fingerprint, delimiter, header_row, columns, created_at, updated_at
		FROM import_mappings
		WHERE company_id = $1
		ORDER BY entity_type, updated_at DESC
	`

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list import mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*ImportMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import mappings: %w", err)
	}
	return mappings, nil
}

func (r *PostgresImportMappingRepository) DeleteMapping(ctx context.Context, companyID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM import_mappings WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete import mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMappingNotFound
	}
	return nil
}

func scanMapping(row pgx.Row) (*ImportMapping, error) {
	var (
		m       ImportMapping
		columns []byte
	)
	err := row.Scan(
		&m.ID, &m.CompanyID, &m.EntityType, &m.Fingerprint, &m.Delimiter,
		&m.HeaderRow, &columns, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(columns, &m.Columns); err != nil {
		return nil, fmt.Errorf("failed to decode mapping columns: %w", err)
	}
	return &m, nil
}

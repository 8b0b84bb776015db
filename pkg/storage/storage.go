// Package storage provides company-scoped storage for uploaded import files
// with local and S3 implementations.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrFileNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	CompanyID   uuid.UUID `json:"company_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for file storage operations
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, companyID uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// GetReader returns a reader for a stored file
	GetReader(ctx context.Context, companyID uuid.UUID, fileID uuid.UUID) (io.ReadCloser, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, companyID uuid.UUID, fileID uuid.UUID) error

	// List returns all files for a company
	List(ctx context.Context, companyID uuid.UUID) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without reading it
	GetInfo(ctx context.Context, companyID uuid.UUID, fileID uuid.UUID) (*FileInfo, error)

	// Purge removes every file stored before the cutoff and reports how many went
	Purge(ctx context.Context, before time.Time) (int, error)
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// Config holds storage configuration
type Config struct {
	Type StorageType

	// Local storage config
	LocalPath string

	// S3 storage config
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string // For S3-compatible services (MinIO, etc.)
}

// New creates a new Storage implementation based on configuration
func New(ctx context.Context, cfg *Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	case StorageTypeLocal:
		fallthrough
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

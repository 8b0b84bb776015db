package main

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/invoice-import/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/invoice-import/internal/domain/import/service"
)

// loggingEntityWriter accepts validated records and logs them. Deployments
// that persist entities plug their own importservice.EntityWriter in here.
type loggingEntityWriter struct {
	logger *slog.Logger
}

func newLoggingEntityWriter(logger *slog.Logger) importservice.EntityWriter {
	return &loggingEntityWriter{logger: logger}
}

// WriteRecords implements importservice.EntityWriter
func (w *loggingEntityWriter) WriteRecords(ctx context.Context, companyID uuid.UUID, entity importservice.Entity, records []parser.Record) (int, error) {
	w.logger.InfoContext(ctx, "records accepted",
		slog.String("company_id", companyID.String()),
		slog.String("entity", string(entity)),
		slog.Int("records", len(records)),
	)
	return len(records), nil
}

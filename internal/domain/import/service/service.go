// Package service provides the import orchestration logic: uploaded entity
// files are stored, normalized to UTF-8, sniffed and cached until the user
// confirms a column mapping and the rows are imported.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/invoice-import/internal/domain/import/encoding"
	"github.com/FACorreiaa/invoice-import/internal/domain/import/parser"
	"github.com/FACorreiaa/invoice-import/internal/domain/import/repository"
	"github.com/FACorreiaa/invoice-import/internal/domain/import/sniffer"
	"github.com/FACorreiaa/invoice-import/pkg/cache"
	"github.com/FACorreiaa/invoice-import/pkg/money"
	"github.com/FACorreiaa/invoice-import/pkg/storage"
)

var (
	ErrPreimportExpired = errors.New("preimport expired or not found")
	ErrNoFiles          = errors.New("no files to import")
)

// StrategyXLSX marks text produced by converting a workbook.
const StrategyXLSX = "xlsx"

const defaultPreviewRows = 10

// Upload is one uploaded file bound to the entity it holds.
type Upload struct {
	Entity      Entity
	Filename    string
	ContentType string
	Data        []byte

	// DetectHeader searches for the header row instead of using the first line.
	DetectHeader bool
}

// FilePreview describes one prepared file so the user can map its columns.
type FilePreview struct {
	Entity       Entity                    `json:"entity"`
	FileID       uuid.UUID                 `json:"file_id"`
	Filename     string                    `json:"filename"`
	Strategy     string                    `json:"strategy"`
	Encoding     string                    `json:"encoding"`
	Valid        bool                      `json:"valid"`
	Delimiter    string                    `json:"delimiter"`
	HeaderRow    int                       `json:"header_row"`
	Headers      []string                  `json:"headers"`
	Rows         [][]string                `json:"rows"`
	Fingerprint  string                    `json:"fingerprint"`
	Available    []string                  `json:"available"`
	Suggested    map[string]int            `json:"suggested"`
	SavedMapping *repository.ImportMapping `json:"saved_mapping,omitempty"`
	Dialect      *sniffer.RegionalDialect  `json:"dialect,omitempty"`
}

// PreimportResult is returned by Preimport. Hash identifies the cached files
// in the following Import call.
type PreimportResult struct {
	Hash  string        `json:"hash"`
	Files []FilePreview `json:"files"`
}

// ImportRequest confirms the mapping of one preimported entity file.
type ImportRequest struct {
	Hash   string
	Entity Entity

	// Mapping maps field names ("client.name") to column indices. When empty
	// the saved mapping for the header fingerprint is used, then suggestions.
	Mapping map[string]int

	IsEuropeanFormat *bool  // nil uses the probed dialect
	DateFormat       string // Go layout, empty for flexible parsing
	SaveMapping      bool
}

// ImportSummary reports the outcome of an import
type ImportSummary struct {
	Entity       Entity              `json:"entity"`
	RowsTotal    int                 `json:"rows_total"`
	RowsImported int                 `json:"rows_imported"`
	RowsFailed   int                 `json:"rows_failed"`
	Errors       []parser.ParseError `json:"errors,omitempty"`
	Mapping      map[string]int      `json:"mapping"`
	MappingSaved bool                `json:"mapping_saved"`
	Totals       money.Totals        `json:"totals,omitempty"`
}

// EntityWriter persists validated records. It returns how many were written.
type EntityWriter interface {
	WriteRecords(ctx context.Context, companyID uuid.UUID, entity Entity, records []parser.Record) (int, error)
}

// cachedFile is the preimport payload kept between Preimport and Import.
type cachedFile struct {
	FileID      uuid.UUID `json:"file_id"`
	Text        string    `json:"text"`
	Delimiter   string    `json:"delimiter"`
	HeaderRow   int       `json:"header_row"`
	Headers     []string  `json:"headers"`
	Fingerprint string    `json:"fingerprint"`
	European    bool      `json:"european"`
	Currency    string    `json:"currency,omitempty"`
}

// Options configures an ImportService
type Options struct {
	CacheTTL        time.Duration
	PreviewRows     int
	DefaultCurrency string // Currency of amounts without a symbol or currency column
}

// ImportService orchestrates preimport and import operations
type ImportService struct {
	storage    storage.Storage
	cache      cache.Cache
	repo       repository.ImportMappingRepository // Optional: nil when no database is configured
	writer     EntityWriter
	normalizer *encoding.Normalizer
	opts       Options
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(store storage.Storage, c cache.Cache, writer EntityWriter, opts Options, logger *slog.Logger) *ImportService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = defaultPreviewRows
	}
	if !money.IsKnownCurrency(opts.DefaultCurrency) {
		opts.DefaultCurrency = money.USD
	}
	return &ImportService{
		storage:    store,
		cache:      c,
		writer:     writer,
		normalizer: encoding.NewNormalizer(nil),
		opts:       opts,
		tracer:     otel.Tracer("github.com/FACorreiaa/invoice-import/internal/domain/import/service"),
		logger:     logger,
	}
}

// WithMappingRepository enables saved column mappings
func (s *ImportService) WithMappingRepository(repo repository.ImportMappingRepository) *ImportService {
	s.repo = repo
	return s
}

// Preimport stores each uploaded file, converts it to UTF-8 text and caches it
// under <hash>-<entity>. The result carries the headers, the first rows and
// suggested column mappings for every file.
func (s *ImportService) Preimport(ctx context.Context, companyID uuid.UUID, files []Upload) (*PreimportResult, error) {
	ctx, span := s.tracer.Start(ctx, "ImportService.Preimport",
		trace.WithAttributes(attribute.Int("import.files", len(files))))
	defer span.End()

	start := time.Now()
	defer func() { preimportDuration.Observe(time.Since(start).Seconds()) }()

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	result := &PreimportResult{
		Hash:  newHash(),
		Files: make([]FilePreview, 0, len(files)),
	}

	for _, upload := range files {
		if _, err := ParseEntity(string(upload.Entity)); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		preview, err := s.preimportFile(ctx, companyID, result.Hash, upload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to prepare %s file: %w", upload.Entity, err)
		}
		result.Files = append(result.Files, *preview)
	}

	s.logger.Info("preimport completed",
		slog.String("company_id", companyID.String()),
		slog.String("hash", result.Hash),
		slog.Int("files", len(result.Files)),
	)
	return result, nil
}

func (s *ImportService) preimportFile(ctx context.Context, companyID uuid.UUID, hash string, upload Upload) (*FilePreview, error) {
	info, err := s.storage.Upload(ctx, companyID, upload.Filename, upload.ContentType, bytes.NewReader(upload.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	// The stored copy is the source of truth. An unreadable file yields empty text.
	raw := s.readStored(ctx, companyID, info.ID)

	var (
		text      string
		result    encoding.Result
		delimiter rune
	)
	if isWorkbook(upload) {
		text, err = workbookText(raw)
		if err != nil {
			return nil, err
		}
		result = encoding.Result{Text: text, Strategy: StrategyXLSX, Encoding: encoding.UTF8, Valid: true}
		delimiter = sniffer.DefaultDelimiter
	} else {
		result = s.normalizer.Normalize(raw)
		text = result.Text
		delimiter = sniffer.DetectDelimiter(text)
	}
	normalizationTotal.WithLabelValues(result.Strategy, strconv.FormatBool(result.Valid)).Inc()
	if !result.Valid && len(raw) > 0 {
		s.logger.Warn("upload could not be converted to valid UTF-8",
			slog.String("entity", string(upload.Entity)),
			slog.String("filename", upload.Filename),
			slog.String("strategy", result.Strategy),
		)
	}

	delimiterTotal.WithLabelValues(string(delimiter)).Inc()

	preview := &FilePreview{
		Entity:    upload.Entity,
		FileID:    info.ID,
		Filename:  upload.Filename,
		Strategy:  result.Strategy,
		Encoding:  result.Encoding.String(),
		Valid:     result.Valid,
		Delimiter: string(delimiter),
		Available: AvailableFields(upload.Entity),
		Suggested: map[string]int{},
	}

	opts := &sniffer.DetectOptions{HeaderRowIndex: 0, Delimiter: delimiter}
	if upload.DetectHeader {
		opts = &sniffer.DetectOptions{HeaderRowIndex: -1}
	}
	cfg, err := sniffer.DetectConfigWithOptions(text, opts)
	switch {
	case errors.Is(err, sniffer.ErrEmptyFile):
		cfg = &sniffer.FileConfig{Delimiter: delimiter, Fingerprint: sniffer.Fingerprint(nil)}
	case err != nil:
		return nil, fmt.Errorf("failed to detect file layout: %w", err)
	}

	preview.Delimiter = string(cfg.Delimiter)
	preview.HeaderRow = cfg.SkipLines
	preview.Headers = cfg.Headers
	preview.Fingerprint = cfg.Fingerprint

	if len(cfg.Headers) > 0 {
		rows, err := parser.ReadRows(text, parser.ParserConfig{Delimiter: cfg.Delimiter, SkipLines: cfg.SkipLines + 1}, s.opts.PreviewRows)
		if err != nil {
			return nil, err
		}
		preview.Rows = rows
		preview.Suggested = sniffer.SuggestColumns(cfg.Headers, preview.Available)
		preview.Dialect = sniffer.ProbeDialect(rows, s.findColumn(preview.Suggested, upload.Entity, "amount", "price", "cost"), s.findColumn(preview.Suggested, upload.Entity, "date"))
		preview.SavedMapping = s.savedMapping(ctx, companyID, upload.Entity, cfg.Fingerprint)
	}

	payload := cachedFile{
		FileID:      info.ID,
		Text:        text,
		Delimiter:   string(cfg.Delimiter),
		HeaderRow:   cfg.SkipLines,
		Headers:     cfg.Headers,
		Fingerprint: cfg.Fingerprint,
		European:    preview.Dialect != nil && preview.Dialect.IsEuropeanFormat,
	}
	if preview.Dialect != nil {
		payload.Currency = preview.Dialect.CurrencyHint
	}
	if err := s.putCached(ctx, cacheKey(hash, upload.Entity), payload); err != nil {
		return nil, err
	}

	return preview, nil
}

// Import parses a preimported file with the confirmed mapping and hands the
// valid records to the EntityWriter.
func (s *ImportService) Import(ctx context.Context, companyID uuid.UUID, req ImportRequest) (*ImportSummary, error) {
	ctx, span := s.tracer.Start(ctx, "ImportService.Import",
		trace.WithAttributes(attribute.String("import.entity", string(req.Entity))))
	defer span.End()

	if _, err := ParseEntity(string(req.Entity)); err != nil {
		return nil, err
	}

	cached, err := s.getCached(ctx, cacheKey(req.Hash, req.Entity))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	fields := AvailableFields(req.Entity)
	mapping := s.resolveMapping(ctx, companyID, req, cached, fields)

	cfg := parser.ParserConfig{
		Delimiter:        delimiterRune(cached.Delimiter),
		SkipLines:        cached.HeaderRow,
		DateFormat:       req.DateFormat,
		IsEuropeanFormat: cached.European,
	}
	if req.IsEuropeanFormat != nil {
		cfg.IsEuropeanFormat = *req.IsEuropeanFormat
	}

	rows, lines, err := parser.ReadRowsWithLines(cached.Text, parser.ParserConfig{Delimiter: cfg.Delimiter, SkipLines: cached.HeaderRow + 1}, 0)
	if err != nil {
		return nil, err
	}
	cfg.RowLines = lines

	summary := &ImportSummary{Entity: req.Entity, Mapping: mapping}
	if len(rows) == 0 {
		return summary, nil
	}

	records, parseErrors, total, err := decodeRecords(req.Entity, parser.Remap(rows, fields, mapping), cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	summary.RowsTotal = total
	summary.Errors = parseErrors
	summary.RowsFailed = len(parseErrors)
	summary.Totals = s.totals(records, cfg, cached.Currency)

	if len(records) > 0 {
		written, err := s.writer.WriteRecords(ctx, companyID, req.Entity, records)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to write %s records: %w", req.Entity, err)
		}
		summary.RowsImported = written
		summary.RowsFailed += len(records) - written
	}

	importedRowsTotal.WithLabelValues(string(req.Entity), "imported").Add(float64(summary.RowsImported))
	importedRowsTotal.WithLabelValues(string(req.Entity), "failed").Add(float64(summary.RowsFailed))

	if req.SaveMapping && s.repo != nil {
		_, err := s.repo.SaveMapping(ctx, &repository.ImportMapping{
			CompanyID:   companyID,
			EntityType:  string(req.Entity),
			Fingerprint: cached.Fingerprint,
			Delimiter:   cached.Delimiter,
			HeaderRow:   cached.HeaderRow,
			Columns:     mapping,
		})
		if err != nil {
			// Rows are already written at this point.
			s.logger.Warn("failed to save import mapping",
				slog.String("company_id", companyID.String()),
				slog.Any("error", err),
			)
		} else {
			summary.MappingSaved = true
		}
	}

	s.logger.Info("import completed",
		slog.String("company_id", companyID.String()),
		slog.String("entity", string(req.Entity)),
		slog.Int("rows_total", summary.RowsTotal),
		slog.Int("rows_imported", summary.RowsImported),
		slog.Int("rows_failed", summary.RowsFailed),
	)
	return summary, nil
}

// totals sums the amounts of valued records per currency. Amounts without a
// currency fall back to the currency hinted at preimport, then to the
// service default.
func (s *ImportService) totals(records []parser.Record, cfg parser.ParserConfig, hint string) money.Totals {
	fallback := s.opts.DefaultCurrency
	if money.IsKnownCurrency(hint) {
		fallback = hint
	}

	totals := money.Totals{}
	for _, rec := range records {
		valued, ok := rec.(parser.Valued)
		if !ok {
			continue
		}
		amount, currency, ok := valued.Value(cfg)
		if !ok {
			continue
		}
		if currency == "" {
			currency = fallback
		}
		if err := totals.Add(amount, currency); err != nil {
			s.logger.Debug("skipping amount in totals", slog.String("currency", currency), slog.Any("error", err))
		}
	}
	if len(totals) == 0 {
		return nil
	}
	return totals
}

// ReadFileWithProperEncoding returns the UTF-8 text of a file on disk. A file
// that cannot be read yields "".
func ReadFileWithProperEncoding(path string) string {
	return encoding.ReadFile(path).Text
}

func (s *ImportService) resolveMapping(ctx context.Context, companyID uuid.UUID, req ImportRequest, cached *cachedFile, fields []string) map[string]int {
	if len(req.Mapping) > 0 {
		allowed := make(map[string]bool, len(fields))
		for _, f := range fields {
			allowed[f] = true
		}
		mapping := make(map[string]int, len(req.Mapping))
		for field, idx := range req.Mapping {
			if allowed[field] && idx >= 0 {
				mapping[field] = idx
			}
		}
		return mapping
	}

	if saved := s.savedMapping(ctx, companyID, req.Entity, cached.Fingerprint); saved != nil {
		return saved.Columns
	}
	return sniffer.SuggestColumns(cached.Headers, fields)
}

func (s *ImportService) savedMapping(ctx context.Context, companyID uuid.UUID, entity Entity, fingerprint string) *repository.ImportMapping {
	if s.repo == nil {
		return nil
	}
	m, err := s.repo.GetMappingByFingerprint(ctx, companyID, string(entity), fingerprint)
	if err != nil {
		if !errors.Is(err, repository.ErrMappingNotFound) {
			s.logger.Warn("failed to look up saved mapping",
				slog.String("entity", string(entity)),
				slog.Any("error", err),
			)
		}
		return nil
	}
	return m
}

// findColumn returns the column suggested for the first matching label, or -1.
func (s *ImportService) findColumn(suggested map[string]int, entity Entity, labels ...string) int {
	for _, label := range labels {
		if idx, ok := suggested[string(entity)+"."+label]; ok {
			return idx
		}
	}
	return -1
}

func (s *ImportService) readStored(ctx context.Context, companyID, fileID uuid.UUID) []byte {
	rc, err := s.storage.GetReader(ctx, companyID, fileID)
	if err != nil {
		s.logger.Warn("stored upload is unreadable", slog.String("file_id", fileID.String()), slog.Any("error", err))
		return nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		s.logger.Warn("stored upload is unreadable", slog.String("file_id", fileID.String()), slog.Any("error", err))
		return nil
	}
	return data
}

func (s *ImportService) putCached(ctx context.Context, key string, payload cachedFile) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode preimport: %w", err)
	}
	if err := s.cache.Set(ctx, key, data, s.opts.CacheTTL); err != nil {
		return fmt.Errorf("failed to cache preimport: %w", err)
	}
	return nil
}

func (s *ImportService) getCached(ctx context.Context, key string) (*cachedFile, error) {
	data, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrPreimportExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preimport: %w", err)
	}

	var payload cachedFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode preimport: %w", err)
	}
	return &payload, nil
}

func workbookText(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	rows, err := parser.ReadXLSX(bytes.NewReader(raw))
	if errors.Is(err, parser.ErrNoSheet) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return parser.RowsToCSV(rows, sniffer.DefaultDelimiter)
}

func isWorkbook(u Upload) bool {
	switch strings.ToLower(filepath.Ext(u.Filename)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return u.ContentType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func delimiterRune(s string) rune {
	for _, r := range s {
		return r
	}
	return sniffer.DefaultDelimiter
}

func cacheKey(hash string, entity Entity) string {
	return hash + "-" + string(entity)
}

func newHash() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

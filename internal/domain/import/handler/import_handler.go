package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	importservice "github.com/FACorreiaa/invoice-import/internal/domain/import/service"
)

// CompanyHeader carries the company the request acts for.
const CompanyHeader = "X-Company-ID"

const defaultMaxUploadBytes = 32 << 20

// ImportHandler serves the import HTTP API
type ImportHandler struct {
	importSvc      *importservice.ImportService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *importservice.ImportService, maxUploadBytes int64, logger *slog.Logger) *ImportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ImportHandler{
		importSvc:      importSvc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Register mounts the handler routes on mux
func (h *ImportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/import/preimport", h.Preimport)
	mux.HandleFunc("POST /api/v1/import", h.Import)
	mux.HandleFunc("GET /healthz", h.Health)
}

// Preimport accepts a multipart form with one file per entity, sent as
// files[<entity>] (e.g. files[client]).
func (h *ImportHandler) Preimport(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	detectHeader, _ := strconv.ParseBool(r.FormValue("detect_header"))

	var uploads []importservice.Upload
	for _, entity := range importservice.Entities {
		headers := r.MultipartForm.File["files["+string(entity)+"]"]
		if len(headers) == 0 {
			continue
		}

		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to open %s upload: %w", entity, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read %s upload: %w", entity, err))
			return
		}

		uploads = append(uploads, importservice.Upload{
			Entity:       entity,
			Filename:     fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Data:         data,
			DetectHeader: detectHeader,
		})
	}

	result, err := h.importSvc.Preimport(r.Context(), companyID, uploads)
	if err != nil {
		h.writeServiceError(w, "failed to preimport files", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

type importRequest struct {
	Hash             string         `json:"hash"`
	Entity           string         `json:"entity"`
	Mapping          map[string]int `json:"mapping"`
	IsEuropeanFormat *bool          `json:"is_european_format"`
	DateFormat       string         `json:"date_format"`
	SaveMapping      bool           `json:"save_mapping"`
}

// Import confirms the column mapping of a preimported file
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req importRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Hash == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("hash is required"))
		return
	}

	entity, err := importservice.ParseEntity(req.Entity)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	summary, err := h.importSvc.Import(r.Context(), companyID, importservice.ImportRequest{
		Hash:             req.Hash,
		Entity:           entity,
		Mapping:          req.Mapping,
		IsEuropeanFormat: req.IsEuropeanFormat,
		DateFormat:       req.DateFormat,
		SaveMapping:      req.SaveMapping,
	})
	if err != nil {
		h.writeServiceError(w, "failed to import file", err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// Health reports liveness
func (h *ImportHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ImportHandler) companyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get(CompanyHeader))
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, fmt.Errorf("missing or invalid %s header", CompanyHeader))
		return uuid.Nil, false
	}
	return id, true
}

func (h *ImportHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, importservice.ErrUnknownEntity), errors.Is(err, importservice.ErrNoFiles):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, importservice.ErrPreimportExpired):
		h.writeError(w, http.StatusNotFound, err)
	default:
		h.logger.Error(msg, slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, errors.New(msg))
	}
}

func (h *ImportHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *ImportHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", slog.Any("error", err))
	}
}

package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"kbrag/internal/ingest"
	"kbrag/internal/middleware"
	"kbrag/internal/rag"
)

type Ingestor interface {
	Ingest(ctx context.Context, src io.Reader, filename, docName string) (*ingest.Result, error)
}

type Handler struct {
	ingestor    Ingestor
	repo        Repository
	maxUploadMB int64
}

func NewHandler(ingestor Ingestor, repo Repository, maxUploadMB int64) *Handler {
	return &Handler{ingestor: ingestor, repo: repo, maxUploadMB: maxUploadMB}
}

var validExts = map[string]bool{
	".pdf": true, ".txt": true, ".md": true,
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB<<20)

	if err := r.ParseMultipartForm(h.maxUploadMB << 20); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if name == "" {
		name = header.Filename
	}

	if !validExts[strings.ToLower(filepath.Ext(header.Filename))] {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unsupported file type", http.StatusBadRequest)
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), file, header.Filename, name)
	if err != nil {
		h.writeIngestError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.repo.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	// Return [] instead of null for an empty registry
	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": doc}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeIngestError maps pipeline failures onto HTTP statuses. Bad input is the
// caller's fault; a failing collaborator is a bad gateway; missing
// configuration is ours.
func (h *Handler) writeIngestError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rag.ErrValidation):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, rag.ErrExtraction):
		h.writeError(ctx, w, "EXTRACTION_FAILED", err.Error(), http.StatusBadGateway)
	case errors.Is(err, rag.ErrEmbedding):
		h.writeError(ctx, w, "EMBEDDING_FAILED", err.Error(), http.StatusBadGateway)
	case errors.Is(err, rag.ErrStore):
		h.writeError(ctx, w, "STORE_FAILED", err.Error(), http.StatusBadGateway)
	case errors.Is(err, rag.ErrConfiguration):
		h.writeError(ctx, w, "NOT_CONFIGURED", err.Error(), http.StatusInternalServerError)
	default:
		slog.ErrorContext(ctx, "ingestion failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kbrag/internal/middleware"
	"kbrag/internal/rag"
	"kbrag/internal/retrieval"
)

const defaultK = 5

type Answerer interface {
	Query(ctx context.Context, question string, k int) (*retrieval.Answer, error)
}

type Handler struct {
	answerer Answerer
}

func NewHandler(answerer Answerer) *Handler {
	return &Handler{answerer: answerer}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		K        int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.K == 0 {
		req.K = defaultK
	}

	ans, err := h.answerer.Query(r.Context(), req.Question, req.K)
	if err != nil {
		h.writeQueryError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": ans}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeQueryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rag.ErrValidation):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, rag.ErrEmbedding):
		h.writeError(ctx, w, "EMBEDDING_FAILED", err.Error(), http.StatusBadGateway)
	case errors.Is(err, rag.ErrGeneration):
		h.writeError(ctx, w, "GENERATION_FAILED", err.Error(), http.StatusBadGateway)
	case errors.Is(err, rag.ErrStore):
		h.writeError(ctx, w, "STORE_FAILED", err.Error(), http.StatusBadGateway)
	case errors.Is(err, rag.ErrConfiguration):
		h.writeError(ctx, w, "NOT_CONFIGURED", err.Error(), http.StatusInternalServerError)
	default:
		slog.ErrorContext(ctx, "query failed", "error", err)
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

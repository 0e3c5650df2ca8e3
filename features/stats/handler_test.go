package stats_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kbrag/features/stats"
)

type MockDocumentRepo struct{ mock.Mock }

func (m *MockDocumentRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockChunkCounter struct{ mock.Mock }

func (m *MockChunkCounter) CountChunks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats(t *testing.T) {
	docs := new(MockDocumentRepo)
	chunks := new(MockChunkCounter)
	docs.On("Count", mock.Anything).Return(4, nil)
	chunks.On("CountChunks", mock.Anything).Return(128, nil)

	handler := stats.NewHandler(docs, chunks)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	handler.GetStats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data stats.StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.Documents)
	assert.Equal(t, 128, resp.Data.Chunks)
}

func TestHandler_GetStats_RepoFailure(t *testing.T) {
	docs := new(MockDocumentRepo)
	chunks := new(MockChunkCounter)
	docs.On("Count", mock.Anything).Return(0, errors.New("db down"))

	handler := stats.NewHandler(docs, chunks)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	handler.GetStats(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	chunks.AssertNotCalled(t, "CountChunks", mock.Anything)
}

func TestHandler_GetStats_StoreFailure(t *testing.T) {
	docs := new(MockDocumentRepo)
	chunks := new(MockChunkCounter)
	docs.On("Count", mock.Anything).Return(4, nil)
	chunks.On("CountChunks", mock.Anything).Return(0, errors.New("store down"))

	handler := stats.NewHandler(docs, chunks)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	handler.GetStats(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

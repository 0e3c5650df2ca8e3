package query_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kbrag/features/query"
	"kbrag/internal/rag"
	"kbrag/internal/retrieval"
)

type MockAnswerer struct{ mock.Mock }

func (m *MockAnswerer) Query(ctx context.Context, question string, k int) (*retrieval.Answer, error) {
	args := m.Called(ctx, question, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retrieval.Answer), args.Error(1)
}

func TestHandler_Ask(t *testing.T) {
	answerer := new(MockAnswerer)
	answerer.On("Query", mock.Anything, "what is a quorum", 3).Return(&retrieval.Answer{
		Answer: "A majority of nodes.",
		Sources: []retrieval.Source{
			{Doc: "Paper", Page: 4, Score: 0.9},
		},
	}, nil)

	handler := query.NewHandler(answerer)
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question":"what is a quorum","k":3}`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data retrieval.Answer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "A majority of nodes.", resp.Data.Answer)
	require.Len(t, resp.Data.Sources, 1)
	assert.Equal(t, retrieval.Source{Doc: "Paper", Page: 4, Score: 0.9}, resp.Data.Sources[0])
	// Flat source entries: no chunk text, no nested metadata.
	assert.Contains(t, rec.Body.String(), `"sources":[{"doc":"Paper","page":4,"score":0.9}]`)
}

func TestHandler_Ask_DefaultK(t *testing.T) {
	answerer := new(MockAnswerer)
	answerer.On("Query", mock.Anything, "question", 5).Return(&retrieval.Answer{Answer: "ok"}, nil)

	handler := query.NewHandler(answerer)
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question":"question"}`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	answerer.AssertExpectations(t)
}

func TestHandler_Ask_InvalidBody(t *testing.T) {
	handler := query.NewHandler(new(MockAnswerer))
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()

	handler.Ask(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestHandler_Ask_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"Validation", rag.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"Embedding", rag.ErrEmbedding, http.StatusBadGateway, "EMBEDDING_FAILED"},
		{"Generation", rag.ErrGeneration, http.StatusBadGateway, "GENERATION_FAILED"},
		{"Store", rag.ErrStore, http.StatusBadGateway, "STORE_FAILED"},
		{"Configuration", rag.ErrConfiguration, http.StatusInternalServerError, "NOT_CONFIGURED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			answerer := new(MockAnswerer)
			answerer.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)

			handler := query.NewHandler(answerer)
			req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question":"q"}`))
			rec := httptest.NewRecorder()

			handler.Ask(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.code)
		})
	}
}

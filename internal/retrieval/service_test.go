package retrieval_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kbrag/internal/rag"
	"kbrag/internal/retrieval"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedText(ctx context.Context, s string) ([]float32, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockStore struct{ mock.Mock }

func (m *MockStore) UpsertChunks(ctx context.Context, records []rag.ChunkRecord) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) VectorSearch(ctx context.Context, vector []float32, limit, candidates int) ([]rag.Hit, error) {
	args := m.Called(ctx, vector, limit, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rag.Hit), args.Error(1)
}

func (m *MockStore) CountChunks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

var defaultPool = retrieval.PoolConfig{Floor: 50, Factor: 10}

func TestSearch_WidensCandidatePool(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	embedder.On("EmbedText", mock.Anything, "what is raft").Return([]float32{0.1, 0.2}, nil)

	hits := []rag.Hit{
		{Text: "a", Metadata: rag.Metadata{DocName: "Paper", Page: 3}, Score: 0.91},
		{Text: "b", Metadata: rag.Metadata{DocName: "Paper", Page: 7}, Score: 0.85},
		{Text: "c", Metadata: rag.Metadata{DocName: "Notes", Page: 1}, Score: 0.40},
	}

	t.Run("Small K Uses Floor", func(t *testing.T) {
		store.On("VectorSearch", mock.Anything, []float32{0.1, 0.2}, 5, 50).Return(hits, nil).Once()

		svc := retrieval.NewService(embedder, store, nil, defaultPool, nil)
		got, err := svc.Search(context.Background(), "what is raft", 5)
		require.NoError(t, err)
		require.Len(t, got, 3, "fewer hits than k is a valid result")
		assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
		assert.GreaterOrEqual(t, got[1].Score, got[2].Score)
	})

	t.Run("Large K Scales By Factor", func(t *testing.T) {
		store.On("VectorSearch", mock.Anything, []float32{0.1, 0.2}, 20, 200).Return(hits, nil).Once()

		svc := retrieval.NewService(embedder, store, nil, defaultPool, nil)
		_, err := svc.Search(context.Background(), "what is raft", 20)
		require.NoError(t, err)
	})

	store.AssertExpectations(t)
}

func TestSearch_CleansQuestionBeforeEmbedding(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	embedder.On("EmbedText", mock.Anything, "what is raft").Return([]float32{0.5}, nil)
	store.On("VectorSearch", mock.Anything, mock.Anything, 5, 50).Return([]rag.Hit{}, nil)

	svc := retrieval.NewService(embedder, store, nil, defaultPool, nil)
	_, err := svc.Search(context.Background(), "  what\n\tis   raft  ", 5)
	require.NoError(t, err)
	embedder.AssertExpectations(t)
}

func TestSearch_Validation(t *testing.T) {
	svc := retrieval.NewService(new(MockEmbedder), new(MockStore), nil, defaultPool, nil)

	_, err := svc.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, err = svc.Search(context.Background(), "valid", 0)
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, err = svc.Search(context.Background(), "valid", -3)
	assert.ErrorIs(t, err, rag.ErrValidation)
}

func TestSearch_EmbedFailure(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	embedder.On("EmbedText", mock.Anything, mock.Anything).Return(nil, rag.ErrEmbedding)

	svc := retrieval.NewService(embedder, store, nil, defaultPool, nil)
	_, err := svc.Search(context.Background(), "question", 5)
	assert.ErrorIs(t, err, rag.ErrEmbedding)
	store.AssertNotCalled(t, "VectorSearch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAssembleContext(t *testing.T) {
	t.Run("Headers And Separation", func(t *testing.T) {
		ctx := retrieval.AssembleContext([]rag.Hit{
			{Text: "first chunk", Metadata: rag.Metadata{DocName: "Manual", Page: 2}},
			{Text: "second chunk", Metadata: rag.Metadata{DocName: "Guide", Page: 10}},
		})
		assert.Equal(t, "Source: Manual, Page 2\nfirst chunk\n\nSource: Guide, Page 10\nsecond chunk", ctx)
	})

	t.Run("Missing Metadata Falls Back", func(t *testing.T) {
		ctx := retrieval.AssembleContext([]rag.Hit{{Text: "orphan chunk"}})
		assert.Equal(t, "Source: Doc, Page ?\norphan chunk", ctx)
	})

	t.Run("No Hits", func(t *testing.T) {
		assert.Equal(t, "", retrieval.AssembleContext(nil))
	})
}

func TestSynthesize_PromptAndSources(t *testing.T) {
	gen := new(MockGenerator)
	hits := []rag.Hit{
		{Text: "leaders send heartbeats", Metadata: rag.Metadata{DocName: "Paper", Page: 4}, Score: 0.9},
	}

	var prompt string
	gen.On("Generate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		prompt = args.String(1)
	}).Return("Leaders send periodic heartbeats.", nil)

	svc := retrieval.NewService(nil, nil, gen, defaultPool, nil)
	ans, err := svc.Synthesize(context.Background(), "how do leaders stay in power", hits)
	require.NoError(t, err)

	assert.Equal(t, "Leaders send periodic heartbeats.", ans.Answer)
	// Sources carry provenance only, never the chunk text.
	assert.Equal(t, []retrieval.Source{{Doc: "Paper", Page: 4, Score: 0.9}}, ans.Sources)

	assert.Contains(t, prompt, "citation-focused assistant")
	assert.Contains(t, prompt, "# Question\nhow do leaders stay in power")
	assert.Contains(t, prompt, "# Context\nSource: Paper, Page 4\nleaders send heartbeats")
	assert.True(t, strings.Contains(prompt, "Using ONLY the context below"))
}

func TestSynthesize_GenerateFailure(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", rag.ErrGeneration)

	svc := retrieval.NewService(nil, nil, gen, defaultPool, nil)
	_, err := svc.Synthesize(context.Background(), "question", nil)
	assert.ErrorIs(t, err, rag.ErrGeneration)
}

func TestQuery_EndToEnd(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	gen := new(MockGenerator)

	hits := []rag.Hit{
		{Text: "chunk one", Metadata: rag.Metadata{DocName: "Doc A", Page: 1}, Score: 0.8},
		{Text: "chunk two", Metadata: rag.Metadata{DocName: "Doc B", Page: 2}, Score: 0.6},
	}
	embedder.On("EmbedText", mock.Anything, "question").Return([]float32{1}, nil)
	store.On("VectorSearch", mock.Anything, []float32{1}, 5, 50).Return(hits, nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("the answer", nil)

	svc := retrieval.NewService(embedder, store, gen, defaultPool, nil)
	ans, err := svc.Query(context.Background(), "question", 5)
	require.NoError(t, err)
	assert.Equal(t, "the answer", ans.Answer)
	assert.Equal(t, []retrieval.Source{
		{Doc: "Doc A", Page: 1, Score: 0.8},
		{Doc: "Doc B", Page: 2, Score: 0.6},
	}, ans.Sources)
}

func TestQuery_NoHitsStillGenerates(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	gen := new(MockGenerator)

	embedder.On("EmbedText", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	store.On("VectorSearch", mock.Anything, mock.Anything, 5, 50).Return([]rag.Hit{}, nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("I don't know.", nil)

	svc := retrieval.NewService(embedder, store, gen, defaultPool, nil)
	ans, err := svc.Query(context.Background(), "unanswerable", 5)
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", ans.Answer)
	assert.Empty(t, ans.Sources)
}

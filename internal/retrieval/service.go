package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kbrag/internal/rag"
	"kbrag/internal/text"
)

type Embedder interface {
	EmbedText(ctx context.Context, s string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PoolConfig sizes the ANN candidate pool. The store considers
// max(Floor, k*Factor) candidates before truncating to k, so small k values
// still search a reasonably wide neighborhood.
type PoolConfig struct {
	Floor  int
	Factor int
}

func (p PoolConfig) candidates(k int) int {
	pool := k * p.Factor
	if pool < p.Floor {
		pool = p.Floor
	}
	return pool
}

// Source identifies where a retrieved chunk came from, without the chunk
// text itself.
type Source struct {
	Doc   string  `json:"doc"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
}

// Answer is a generated response plus the provenance of the chunks it was
// grounded on. Sources are exactly what retrieval returned, in retrieval
// order, whether or not the model used them.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type Service struct {
	embedder  Embedder
	store     rag.Store
	generator Generator
	pool      PoolConfig
	logger    *QueryLogger
}

func NewService(e Embedder, s rag.Store, g Generator, pool PoolConfig, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, generator: g, pool: pool, logger: l}
}

// Search embeds the question and returns up to k chunks by descending
// similarity. Fewer than k hits is a normal outcome on a small corpus.
func (s *Service) Search(ctx context.Context, question string, k int) ([]rag.Hit, error) {
	question = text.Clean(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", rag.ErrValidation)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", rag.ErrValidation, k)
	}

	vec, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}

	return s.store.VectorSearch(ctx, vec, k, s.pool.candidates(k))
}

// AssembleContext renders retrieved chunks into the prompt's context block,
// one source-labelled section per hit.
func AssembleContext(hits []rag.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		name := h.Metadata.DocName
		if name == "" {
			name = "Doc"
		}
		page := "?"
		if h.Metadata.Page > 0 {
			page = fmt.Sprintf("%d", h.Metadata.Page)
		}
		parts = append(parts, fmt.Sprintf("Source: %s, Page %s\n%s", name, page, h.Text))
	}
	return strings.Join(parts, "\n\n")
}

// Synthesize generates an answer from already-retrieved hits. With no hits
// the model is still asked, and the instructions steer it toward "I don't
// know".
func (s *Service) Synthesize(ctx context.Context, question string, hits []rag.Hit) (*Answer, error) {
	answer, err := s.generator.Generate(ctx, buildPrompt(question, AssembleContext(hits)))
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, Source{Doc: h.Metadata.DocName, Page: h.Metadata.Page, Score: h.Score})
	}
	return &Answer{Answer: answer, Sources: sources}, nil
}

// Query is the full question path: retrieve then synthesize.
func (s *Service) Query(ctx context.Context, question string, k int) (*Answer, error) {
	start := time.Now()

	hits, err := s.Search(ctx, question, k)
	if err != nil {
		return nil, err
	}

	ans, err := s.Synthesize(ctx, text.Clean(question), hits)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Question:   question,
			NumSources: len(ans.Sources),
			Duration:   time.Since(start),
		})
	}
	return ans, nil
}

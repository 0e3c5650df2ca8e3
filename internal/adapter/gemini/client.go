package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"kbrag/internal/rag"
)

// Client wraps the Gemini SDK for both embeddings and answer generation.
// The underlying SDK client is created on first use and reused; a missing API
// key surfaces as a configuration error at that point, never silently.
type Client struct {
	apiKey     string
	embedModel string
	genModel   string
	clientOpts []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
}

func NewClient(apiKey, embedModel, genModel string, opts ...option.ClientOption) *Client {
	return &Client{
		apiKey:     apiKey,
		embedModel: embedModel,
		genModel:   genModel,
		clientOpts: opts,
	}
}

func (c *Client) getClient(ctx context.Context) (*genai.Client, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", rag.ErrConfiguration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.clientOpts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrConfiguration, err)
	}

	c.client = client
	return client, nil
}

// EmbedTexts embeds all texts in one batched call. The returned vectors align
// with the input by position; a count mismatch is reported as an embedding
// failure rather than returned misaligned.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	em := client.EmbeddingModel(c.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	slog.DebugContext(ctx, "embedding batch", "model", c.embedModel, "texts", len(texts))
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbedding, err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", rag.ErrEmbedding, len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: empty vector at position %d", rag.ErrEmbedding, i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// EmbedText embeds a single text, used for queries. Same model as ingestion so
// queries and stored chunks share one embedding space.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	em := client.EmbeddingModel(c.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbedding, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding received", rag.ErrEmbedding)
	}
	return res.Embedding.Values, nil
}

// Generate runs one non-streaming generation over prompt with low-temperature
// sampling. An empty response is returned as "" by contract, not as an error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return "", err
	}

	gm := client.GenerativeModel(c.genModel)
	gm.SetTemperature(0.2)
	gm.SetTopP(0.9)

	res, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", rag.ErrGeneration, err)
	}

	return responseText(res), nil
}

func responseText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 {
		return ""
	}
	cand := res.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var out string
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out += string(t)
		}
	}
	return out
}

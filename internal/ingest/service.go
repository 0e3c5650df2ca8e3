package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"kbrag/internal/identity"
	"kbrag/internal/rag"
	"kbrag/internal/text"
)

// chunkIDPrefixLen is how much of the chunk text feeds into the chunk id. Long
// enough that two chunks on the same page practically never collide, short
// enough that an unrelated edit later in the chunk still changes the id only
// when the prefix changes.
const chunkIDPrefixLen = 64

type Extractor interface {
	Extract(ctx context.Context, r io.Reader, filename string) ([]rag.Page, error)
}

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Registry records what was ingested so the API can list documents. It is a
// bookkeeping sink, not part of the pipeline's correctness.
type Registry interface {
	RecordIngest(ctx context.Context, docID, docName string, chunks int) error
}

// Service coordinates one document's ingestion:
// extract -> normalize -> chunk -> embed -> upsert.
type Service struct {
	extractor Extractor
	embedder  Embedder
	store     rag.Store
	registry  Registry
	chunkSize int
	overlap   int
}

func NewService(extractor Extractor, embedder Embedder, store rag.Store, registry Registry, chunkSize, overlap int) *Service {
	return &Service{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		registry:  registry,
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

type Result struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
}

type pageChunk struct {
	page int
	text string
}

// Ingest processes one document end to end and returns how many chunk records
// were written. The doc id derives from the document name alone, so uploading
// the same name again re-indexes in place: identical chunks re-hash to the
// same (doc_id, chunk_id) keys and overwrite rather than accumulate.
//
// The embedding batch runs before any store write, so an embedding failure
// leaves the store untouched.
func (s *Service) Ingest(ctx context.Context, src io.Reader, filename, docName string) (*Result, error) {
	docName = strings.TrimSpace(docName)
	if docName == "" {
		return nil, fmt.Errorf("%w: document name is required", rag.ErrValidation)
	}
	if s.chunkSize <= 0 || s.overlap < 0 || s.overlap >= s.chunkSize {
		return nil, fmt.Errorf("%w: chunk size %d / overlap %d", rag.ErrValidation, s.chunkSize, s.overlap)
	}

	docID := identity.DeterministicID(docName)

	pages, err := s.extractor.Extract(ctx, src, filename)
	if err != nil {
		return nil, err
	}

	var chunks []pageChunk
	for _, p := range pages {
		cleaned := text.Clean(p.Text)
		if cleaned == "" {
			continue
		}
		parts, err := text.Chunk(cleaned, s.chunkSize, s.overlap)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			chunks = append(chunks, pageChunk{page: p.Number, text: part})
		}
	}

	if len(chunks) == 0 {
		s.record(ctx, docID, docName, 0)
		slog.InfoContext(ctx, "document produced no chunks", "doc_id", docID, "doc_name", docName)
		return &Result{DocID: docID}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", rag.ErrEmbedding, len(vectors), len(chunks))
	}

	records := make([]rag.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = rag.ChunkRecord{
			DocID:     docID,
			ChunkID:   identity.DeterministicID(docID, strconv.Itoa(c.page), prefix(c.text, chunkIDPrefixLen)),
			Text:      c.text,
			Embedding: vectors[i],
			Metadata:  rag.Metadata{DocName: docName, Page: c.page},
		}
	}

	written, err := s.store.UpsertChunks(ctx, records)
	if err != nil {
		return nil, err
	}

	s.record(ctx, docID, docName, written)
	slog.InfoContext(ctx, "document ingested", "doc_id", docID, "doc_name", docName, "pages", len(pages), "chunks", written)
	return &Result{DocID: docID, Chunks: written}, nil
}

// record is best effort: the chunk upserts are already durable at this point,
// so a registry failure is logged and the ingest still succeeds. The registry
// can lag behind the store until the next re-ingest of the document.
func (s *Service) record(ctx context.Context, docID, docName string, chunks int) {
	if s.registry == nil {
		return
	}
	if err := s.registry.RecordIngest(ctx, docID, docName, chunks); err != nil {
		slog.WarnContext(ctx, "failed to record document in registry", "error", err, "doc_id", docID)
	}
}

// prefix takes the first n characters, counting runes so multi-byte text
// keeps the same id input as its character prefix.
func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}

package rag

import "context"

// Page is one unit of extracted document text. Pages are numbered from 1,
// contiguous, in document order. They exist only during ingestion.
type Page struct {
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Metadata travels with every stored chunk and comes back on retrieval hits.
type Metadata struct {
	DocName string `bson:"doc_name" json:"doc_name"`
	Page    int    `bson:"page" json:"page"`
}

// ChunkRecord is the persisted retrieval unit, keyed by (DocID, ChunkID).
// ChunkID is a deterministic function of the doc id, page number and a text
// prefix, so re-ingesting the same document overwrites instead of duplicating.
type ChunkRecord struct {
	DocID     string    `bson:"doc_id" json:"doc_id"`
	ChunkID   string    `bson:"chunk_id" json:"chunk_id"`
	Text      string    `bson:"text" json:"text"`
	Embedding []float32 `bson:"embedding" json:"embedding"`
	Metadata  Metadata  `bson:"metadata" json:"metadata"`
}

// Hit is a similarity-search result. Score is in the store's native scale,
// higher meaning more relevant.
type Hit struct {
	Text     string   `bson:"text" json:"text"`
	Metadata Metadata `bson:"metadata" json:"metadata"`
	Score    float64  `bson:"score" json:"score"`
}

// Store is the vector store boundary. UpsertChunks is an unordered bulk write
// over disjoint keys: it reports how many records were written and, on partial
// failure, an error naming the chunks that failed. VectorSearch returns at most
// limit hits ordered by descending score; candidates is the pool the store may
// widen its approximate search to before truncating.
type Store interface {
	UpsertChunks(ctx context.Context, records []ChunkRecord) (int, error)
	VectorSearch(ctx context.Context, vector []float32, limit, candidates int) ([]Hit, error)
	CountChunks(ctx context.Context) (int, error)
}

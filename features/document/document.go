package document

import (
	"context"
	"time"
)

// Document is one ingested document as the registry sees it. The doc id is
// derived from the name, so re-uploading a name updates the same row.
type Document struct {
	DocID     string    `json:"doc_id"`
	Name      string    `json:"name"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository interface {
	RecordIngest(ctx context.Context, docID, name string, chunks int) error
	Get(ctx context.Context, docID string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
}

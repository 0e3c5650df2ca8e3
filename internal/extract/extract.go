package extract

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"kbrag/internal/rag"
)

// Service routes a document to the right extractor by file extension. Plain
// text formats are handled locally; PDFs go to the extraction service.
type Service struct {
	remote *Client
}

func NewService(remote *Client) *Service {
	return &Service{remote: remote}
}

func (s *Service) Extract(ctx context.Context, r io.Reader, filename string) ([]rag.Page, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return extractPlainText(r)
	case ".pdf":
		if s.remote == nil {
			return nil, fmt.Errorf("%w: no extraction service configured", rag.ErrConfiguration)
		}
		return s.remote.Extract(ctx, r, filename)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", rag.ErrValidation, filepath.Ext(filename))
	}
}

// extractPlainText treats form feeds as page breaks; a document without any
// yields a single page 1.
func extractPlainText(r io.Reader) ([]rag.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrExtraction, err)
	}

	parts := strings.Split(string(data), "\f")
	pages := make([]rag.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, rag.Page{Number: i + 1, Text: part})
	}
	return pages, nil
}

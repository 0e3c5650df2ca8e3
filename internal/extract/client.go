package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"kbrag/internal/rag"
)

// Client talks to the document extraction service, which turns a raw document
// into ordered (page, text) pairs, numbered from 1.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Extract(ctx context.Context, r io.Reader, filename string) ([]rag.Page, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrExtraction, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrExtraction, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrExtraction, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrExtraction, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: extraction service returned %d", rag.ErrExtraction, resp.StatusCode)
	}

	var out struct {
		Pages []rag.Page `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrExtraction, err)
	}
	return out.Pages, nil
}

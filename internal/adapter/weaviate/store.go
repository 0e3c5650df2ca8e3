package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"kbrag/internal/rag"
)

const className = "DocumentChunk"

// Store implements the vector store contract over Weaviate. Objects get a
// deterministic uuid-v5 id derived from (doc_id, chunk_id), so re-ingesting
// the same chunk overwrites the existing object instead of accumulating a
// duplicate.
type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func objectID(docID, chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID+"/"+chunkID)).String())
}

func (s *Store) UpsertChunks(ctx context.Context, records []rag.ChunkRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		objects = append(objects, &models.Object{
			ID:    objectID(r.DocID, r.ChunkID),
			Class: className,
			Properties: map[string]interface{}{
				"text":    r.Text,
				"docId":   r.DocID,
				"chunkId": r.ChunkID,
				"docName": r.Metadata.DocName,
				"page":    r.Metadata.Page,
			},
			Vector: r.Embedding,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", rag.ErrStore, err)
	}

	// The batch applies objects independently; collect per-object failures so
	// the caller knows exactly which chunks were not written.
	var failed []string
	for i, res := range resp {
		if i >= len(records) {
			break
		}
		if res.Result != nil && res.Result.Errors != nil && len(res.Result.Errors.Error) > 0 {
			failed = append(failed, records[i].ChunkID)
		}
	}
	if len(failed) > 0 {
		return len(records) - len(failed), fmt.Errorf("%w: %d of %d chunk writes failed (chunks %s)",
			rag.ErrStore, len(failed), len(records), strings.Join(failed, ", "))
	}
	return len(records), nil
}

// VectorSearch runs a nearVector query. Weaviate's HNSW manages its own search
// breadth, so the candidate pool hint has no effect here; certainty serves as
// the monotonic relevance score.
func (s *Store) VectorSearch(ctx context.Context, vector []float32, limit, candidates int) ([]rag.Hit, error) {
	_ = candidates

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "docName"},
		{Name: "page"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrStore, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql error: %v", rag.ErrStore, res.Errors[0].Message)
	}

	return parseHits(res.Data), nil
}

func parseHits(data map[string]models.JSONObject) []rag.Hit {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	var hits []rag.Hit
	for _, item := range raw {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var hit rag.Hit
		if text, ok := props["text"].(string); ok {
			hit.Text = text
		}
		if name, ok := props["docName"].(string); ok {
			hit.Metadata.DocName = name
		}
		if page, ok := props["page"].(float64); ok {
			hit.Metadata.Page = int(page)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				hit.Score = certainty
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", rag.ErrStore, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("%w: graphql error: %v", rag.ErrStore, res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[className].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}

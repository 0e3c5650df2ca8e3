package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kbrag/internal/rag"
)

// Store persists chunks in a MongoDB collection with an Atlas vector search
// index over the embedding field. The index name and dimensionality are an
// operational prerequisite; they are not validated here.
type Store struct {
	col   *mongo.Collection
	index string
}

func NewStore(col *mongo.Collection, index string) *Store {
	return &Store{col: col, index: index}
}

// UpsertChunks issues one unordered bulk write of upserts keyed by
// (doc_id, chunk_id). Records are independent, so the store may apply them in
// any order; on partial failure the count of written records is still returned
// alongside an error naming the chunks that failed.
func (s *Store) UpsertChunks(ctx context.Context, records []rag.ChunkRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	models := upsertModels(records)
	_, err := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
			written := len(records) - len(bwe.WriteErrors)
			return written, fmt.Errorf("%w: %s", rag.ErrStore, describeBulkFailure(records, bwe))
		}
		return 0, fmt.Errorf("%w: %v", rag.ErrStore, err)
	}
	return len(records), nil
}

func upsertModels(records []rag.ChunkRecord) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		filter := bson.D{
			{Key: "doc_id", Value: r.DocID},
			{Key: "chunk_id", Value: r.ChunkID},
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.D{{Key: "$set", Value: r}}).
			SetUpsert(true))
	}
	return models
}

func describeBulkFailure(records []rag.ChunkRecord, bwe mongo.BulkWriteException) string {
	failed := make([]string, 0, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		// Index refers to the record's position in the batch.
		if we.Index >= 0 && we.Index < len(records) {
			failed = append(failed, records[we.Index].ChunkID)
		}
	}
	first := bwe.WriteErrors[0]
	return fmt.Sprintf("%d of %d chunk writes failed (chunks %s): %s",
		len(bwe.WriteErrors), len(records), strings.Join(failed, ", "), first.Message)
}

// VectorSearch runs an Atlas $vectorSearch aggregation. The store widens its
// approximate search to the candidate pool before truncating to limit, and
// returns hits ordered by descending vectorSearchScore.
func (s *Store) VectorSearch(ctx context.Context, vector []float32, limit, candidates int) ([]rag.Hit, error) {
	cur, err := s.col.Aggregate(ctx, searchPipeline(s.index, vector, limit, candidates))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrStore, err)
	}

	var hits []rag.Hit
	if err := cur.All(ctx, &hits); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrStore, err)
	}
	return hits, nil
}

func searchPipeline(index string, vector []float32, limit, candidates int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: index},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: candidates},
			{Key: "limit", Value: limit},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "text", Value: 1},
			{Key: "metadata", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	n, err := s.col.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", rag.ErrStore, err)
	}
	return int(n), nil
}

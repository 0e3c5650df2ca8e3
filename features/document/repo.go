package document

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) RecordIngest(ctx context.Context, docID, name string, chunks int) error {
	query := `INSERT INTO documents (doc_id, name, chunks) VALUES ($1, $2, $3)
		ON CONFLICT (doc_id) DO UPDATE SET name = EXCLUDED.name, chunks = EXCLUDED.chunks, updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, docID, name, chunks)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, docID string) (*Document, error) {
	d := &Document{}
	query := `SELECT doc_id, name, chunks, created_at, updated_at FROM documents WHERE doc_id = $1`
	err := r.db.QueryRowContext(ctx, query, docID).Scan(&d.DocID, &d.Name, &d.Chunks, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT doc_id, name, chunks, created_at, updated_at FROM documents ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.DocID, &d.Name, &d.Chunks, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Package storage provides the vector index client over Postgres+pgvector.
// Chunks are shared-read across requests and replaced only by re-ingestion.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one stored document fragment with its embedding and provenance.
type Chunk struct {
	ChunkID    string
	DocumentID string
	Text       string
	Metadata   map[string]string
	IngestedAt time.Time
}

// ScoredChunk pairs a chunk with its similarity score to a query embedding.
// Score is cosine similarity in [−1, 1], higher is more similar.
type ScoredChunk struct {
	Chunk
	Score float32
}

// Store is the vector index client. It is safe for concurrent use; the pool
// provides all locking the append-only access pattern needs.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Init creates the pgvector extension and chunk table if missing.
func (s *Store) Init(ctx context.Context, embeddingDim int) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
		chunk_id    text PRIMARY KEY,
		document_id text NOT NULL,
		content     text NOT NULL,
		metadata    jsonb NOT NULL DEFAULT '{}',
		embedding   vector(%d) NOT NULL,
		ingested_at timestamptz NOT NULL DEFAULT now()
	)`, embeddingDim)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create document_chunks table: %w", err)
	}
	return nil
}

// Upsert inserts a chunk or replaces the existing row with the same chunk ID.
// Chunk IDs are content-derived, so re-ingesting unchanged content is a
// no-op replace and never duplicates rows.
func (s *Store) Upsert(ctx context.Context, chunkID, documentID, content string, embedding []float32, metadata map[string]string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_chunks (chunk_id, document_id, content, metadata, embedding, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (chunk_id) DO UPDATE
		 SET document_id = EXCLUDED.document_id,
		     content     = EXCLUDED.content,
		     metadata    = EXCLUDED.metadata,
		     embedding   = EXCLUDED.embedding,
		     ingested_at = now()`,
		chunkID, documentID, content, metadata, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("upsert chunk %s: %w", chunkID, err)
	}
	return nil
}

// Query returns the topK chunks most similar to the query embedding, ordered
// by descending cosine similarity.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT chunk_id, document_id, content, metadata, ingested_at,
		        1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var sc ScoredChunk
		if err := rows.Scan(&sc.ChunkID, &sc.DocumentID, &sc.Text, &sc.Metadata, &sc.IngestedAt, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// Delete removes one chunk by ID.
func (s *Store) Delete(ctx context.Context, chunkID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM document_chunks WHERE chunk_id = $1", chunkID); err != nil {
		return fmt.Errorf("delete chunk %s: %w", chunkID, err)
	}
	return nil
}

// Ping checks index connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

package ingestion

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/processing"
)

// chunkNamespace seeds content-derived chunk IDs. It must never change:
// ID stability across re-ingestion depends on it.
var chunkNamespace = uuid.MustParse("5d3c8f8a-1b4e-4c6c-9f2e-7a90b1f4d2c3")

// Embedder produces an embedding for a single text. Chunk embeddings must
// share the query embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorWriter is the subset of the vector index the pipeline writes through.
type VectorWriter interface {
	Upsert(ctx context.Context, chunkID, documentID, content string, embedding []float32, metadata map[string]string) error
}

// Pipeline chunks, embeds, and stores documents. It runs independently of the
// query-time workflow and is not synchronized against in-flight retrieval.
type Pipeline struct {
	Embedder Embedder
	Index    VectorWriter
}

func NewPipeline(embedder Embedder, index VectorWriter) *Pipeline {
	return &Pipeline{Embedder: embedder, Index: index}
}

// IngestFile extracts text from the file at path, chunks it, and upserts one
// embedded chunk per piece under documentID. It returns the stored chunk
// count. Re-running on unchanged content rewrites the same chunk IDs, so
// ingestion is idempotent.
func (p *Pipeline) IngestFile(ctx context.Context, path, documentID string) (int, error) {
	text, err := ExtractText(path)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", path, err)
	}

	chunks := processing.ChunkText(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s produced no chunks", documentID)
	}
	log.Printf("[Ingestion] Document %s: %d chunks", documentID, len(chunks))

	stored := 0
	now := time.Now().UTC().Format(time.RFC3339)
	for i, chunk := range chunks {
		emb, err := p.Embedder.Embed(ctx, chunk)
		if err != nil {
			return stored, fmt.Errorf("embed chunk %d of %s: %w", i, documentID, err)
		}
		meta := map[string]string{
			"source":      path,
			"chunk_index": strconv.Itoa(i),
			"ingested_at": now,
		}
		id := ChunkID(documentID, i, chunk)
		if err := p.Index.Upsert(ctx, id, documentID, chunk, emb, meta); err != nil {
			return stored, fmt.Errorf("store chunk %d of %s: %w", i, documentID, err)
		}
		stored++
	}

	log.Printf("[Ingestion] Document %s: stored %d chunks", documentID, stored)
	return stored, nil
}

// ChunkID derives a stable chunk identifier from the document, the chunk's
// position, and its content. Identical content at the same offset always
// maps to the same ID, so repeated ingestion never duplicates chunks.
func ChunkID(documentID string, index int, content string) string {
	name := fmt.Sprintf("%s#%d\n%s", documentID, index, content)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

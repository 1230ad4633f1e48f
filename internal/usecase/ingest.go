package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragengine/internal/domain"
	"ragengine/internal/log"
	"ragengine/internal/port"
)

// IngestUseCase turns raw document text into indexed vector entries:
// chunk, embed, add. The index mutation is a single atomic batch, so a
// failed ingestion never leaves a partially indexed document.
type IngestUseCase struct {
	chunker  port.Chunker
	embedder port.Embedder
	index    port.VectorIndex
	logger   log.Logger
}

func NewIngestUseCase(
	chunker port.Chunker,
	embedder port.Embedder,
	index port.VectorIndex,
	logger log.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// IngestResult reports what a single ingestion produced.
type IngestResult struct {
	DocumentID string
	Chunks     int
}

// Ingest validates, chunks, embeds and indexes one document. The
// metadata must carry at least "source" and "document_type"; every
// produced chunk inherits it plus the per-chunk provenance keys.
func (u *IngestUseCase) Ingest(ctx context.Context, text string, metadata map[string]any) (IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return IngestResult{}, fmt.Errorf("%w: document text is empty", domain.ErrValidation)
	}
	for _, key := range []string{domain.MetaSource, domain.MetaDocumentType} {
		if v, ok := metadata[key]; !ok || v == "" {
			return IngestResult{}, fmt.Errorf("%w: metadata key %q is required", domain.ErrValidation, key)
		}
	}

	docID := uuid.NewString()

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[domain.MetaIngestedAt] = time.Now().UTC().Format(time.RFC3339)

	doc := domain.Document{
		ID:       docID,
		Text:     text,
		Metadata: meta,
	}

	chunks, err := u.chunker.Chunk(doc)
	if err != nil {
		return IngestResult{}, err
	}
	if len(chunks) == 0 {
		return IngestResult{DocumentID: docID}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return IngestResult{}, classify(err, domain.ErrEmbedding)
	}
	if len(vectors) != len(chunks) {
		return IngestResult{}, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks))
	}

	entries := make([]domain.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.Entry{
			ID:       c.ID,
			Vector:   vectors[i],
			Text:     c.Text,
			Metadata: c.Metadata,
		}
	}

	if err := u.index.Add(entries); err != nil {
		return IngestResult{}, err
	}

	u.logger.Info("document ingested",
		"document_id", docID,
		"source", meta[domain.MetaSource],
		"chunks", len(chunks),
	)

	return IngestResult{DocumentID: docID, Chunks: len(chunks)}, nil
}

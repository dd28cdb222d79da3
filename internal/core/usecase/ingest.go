package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.DocumentIngestor = (*IngestUseCase)(nil)

// IngestUseCase chunks, embeds and indexes a document, then registers it.
// The registry entry is written last and only when every segment is indexed.
type IngestUseCase struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.VectorIndex
	registry ports.DocumentRegistry
	newID    func() string
}

func NewIngestUseCase(
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	registry ports.DocumentRegistry,
) *IngestUseCase {
	return &IngestUseCase{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		registry: registry,
		newID:    uuid.NewString,
	}
}

func (uc *IngestUseCase) Ingest(ctx context.Context, title, text string) (*domain.IngestResult, error) {
	id := uc.newID()

	segments, err := uc.chunker.Split(text)
	if err != nil {
		return nil, uc.fail(ctx, id, domain.StageChunk, -1, 0, err)
	}

	for i, segmentText := range segments {
		if err := ctx.Err(); err != nil {
			return nil, uc.fail(ctx, id, domain.StageEmbed, i, i, err)
		}

		vector, err := uc.embedder.Embed(ctx, segmentText)
		if err != nil {
			return nil, uc.fail(ctx, id, domain.StageEmbed, i, i, ensureKind(err, domain.ErrEmbeddingUnavailable, "embed segment"))
		}

		segment := domain.Segment{
			DocumentID:    id,
			Text:          segmentText,
			Vector:        vector,
			SequenceIndex: i,
		}
		if err := uc.index.Add(ctx, segment); err != nil {
			return nil, uc.fail(ctx, id, domain.StageIndex, i, i, ensureKind(err, domain.ErrIndexUnavailable, "index segment"))
		}
	}

	if err := uc.registry.Put(ctx, id, title); err != nil {
		return nil, uc.fail(ctx, id, domain.StageRegister, -1, len(segments), ensureKind(err, domain.ErrRegistryUnavailable, "register document"))
	}

	slog.InfoContext(ctx, "document_ingested", "document_id", id, "segments", len(segments))
	return &domain.IngestResult{
		DocumentID: id,
		Title:      title,
		Segments:   len(segments),
	}, nil
}

func (uc *IngestUseCase) fail(ctx context.Context, id string, stage domain.IngestStage, segment, indexed int, err error) error {
	slog.WarnContext(ctx, "ingestion_failed",
		"document_id", id,
		"stage", string(stage),
		"segment_index", segment,
		"segments_indexed", indexed,
		"error", err,
	)
	return &domain.IngestionError{
		DocumentID:      id,
		Stage:           stage,
		SegmentIndex:    segment,
		SegmentsIndexed: indexed,
		Err:             err,
	}
}

// ensureKind tags err with kind unless it already carries a taxonomy kind.
func ensureKind(err, kind error, operation string) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		kind,
		domain.ErrInvalidArgument,
		domain.ErrInvalidConfiguration,
		domain.ErrEmbeddingUnavailable,
		domain.ErrIndexUnavailable,
		domain.ErrRegistryUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return domain.WrapError(kind, operation, err)
}

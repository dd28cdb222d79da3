package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrIndexUnavailable     = errors.New("vector index unavailable")
	ErrRegistryUnavailable  = errors.New("document registry unavailable")
	ErrIngestionFailed      = errors.New("ingestion failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTemporary            = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IngestStage names the pipeline step an ingestion stopped at.
type IngestStage string

const (
	StageChunk    IngestStage = "chunk"
	StageEmbed    IngestStage = "embed"
	StageIndex    IngestStage = "index"
	StageRegister IngestStage = "register"
)

// IngestionError reports a failed ingestion together with how far it got.
// It matches ErrIngestionFailed and unwraps to the underlying cause.
type IngestionError struct {
	DocumentID      string
	Stage           IngestStage
	SegmentIndex    int
	SegmentsIndexed int
	Err             error
}

func (e *IngestionError) Error() string {
	if e == nil {
		return ErrIngestionFailed.Error()
	}
	return fmt.Sprintf("ingest document %s: %s at %s (segment %d, %d indexed): %v",
		e.DocumentID, ErrIngestionFailed, e.Stage, e.SegmentIndex, e.SegmentsIndexed, e.Err)
}

func (e *IngestionError) Unwrap() []error {
	return []error{ErrIngestionFailed, e.Err}
}

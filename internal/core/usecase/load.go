package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.DirectoryLoader = (*LoadDirectoryUseCase)(nil)

// LoadDirectoryUseCase ingests every file a source lists, one document per file.
type LoadDirectoryUseCase struct {
	source    ports.FileSource
	extractor ports.TextExtractor
	ingestor  ports.DocumentIngestor
}

func NewLoadDirectoryUseCase(
	source ports.FileSource,
	extractor ports.TextExtractor,
	ingestor ports.DocumentIngestor,
) *LoadDirectoryUseCase {
	return &LoadDirectoryUseCase{
		source:    source,
		extractor: extractor,
		ingestor:  ingestor,
	}
}

// Load stops early only when listing fails or ctx ends; per-file failures are reported in the outcomes.
func (uc *LoadDirectoryUseCase) Load(ctx context.Context, progress func(domain.LoadedFile)) ([]domain.LoadedFile, error) {
	paths, err := uc.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source files: %w", err)
	}

	out := make([]domain.LoadedFile, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		file := uc.LoadFile(ctx, path)
		out = append(out, file)
		if progress != nil {
			progress(file)
		}
	}
	return out, nil
}

func (uc *LoadDirectoryUseCase) LoadFile(ctx context.Context, path string) domain.LoadedFile {
	file := domain.LoadedFile{Path: path, Title: TitleFromPath(path)}

	text, err := uc.extract(ctx, path)
	if err != nil {
		file.Error = err.Error()
		return file
	}
	if strings.TrimSpace(text) == "" {
		file.Skipped = true
		return file
	}

	result, err := uc.ingestor.Ingest(ctx, file.Title, text)
	if err != nil {
		file.Error = err.Error()
		return file
	}
	file.DocumentID = result.DocumentID
	file.Segments = result.Segments
	return file
}

func (uc *LoadDirectoryUseCase) extract(ctx context.Context, path string) (string, error) {
	body, err := uc.source.Open(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer body.Close()

	text, err := uc.extractor.Extract(ctx, filepath.Base(path), body)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	return text, nil
}

// TitleFromPath is the file's base name without its extension.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

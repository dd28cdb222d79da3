package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

// DefaultMaxBytes caps how much of a single file is read.
const DefaultMaxBytes = 32 << 20

var _ ports.TextExtractor = (*Extractor)(nil)

// Extractor picks a format by file extension.
type Extractor struct {
	MaxBytes int64
}

func New() *Extractor {
	return &Extractor{MaxBytes: DefaultMaxBytes}
}

// Supported reports whether name has an extension the extractor can read.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown", ".text", ".pdf", ".xlsx":
		return true
	}
	return false
}

func (e *Extractor) Extract(ctx context.Context, name string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := e.read(body)
	if err != nil {
		return "", err
	}

	var text string
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt", ".md", ".markdown", ".text":
		text, err = plainText(name, raw)
	case ".pdf":
		text, err = pdfText(raw)
	case ".xlsx":
		text, err = xlsxText(raw)
	default:
		return "", domain.WrapError(domain.ErrInvalidArgument, "extract", fmt.Errorf("unsupported file type %q: %s", ext, name))
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *Extractor) read(body io.Reader) ([]byte, error) {
	limit := e.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if int64(len(raw)) > limit {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "extract", fmt.Errorf("file exceeds %d bytes", limit))
	}
	return raw, nil
}

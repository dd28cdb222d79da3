package extractor

import (
	"fmt"
	"unicode/utf8"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

func plainText(name string, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidArgument, "extract", fmt.Errorf("not valid UTF-8 text: %s", name))
	}
	return string(raw), nil
}

package chunking

import (
	"fmt"
	"unicode"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

const (
	DefaultMaxLength = 900
	DefaultOverlap   = 150
)

type boundaryLevel int

const (
	levelParagraph boundaryLevel = iota
	levelLine
	levelSentence
	levelWord
	levelHard
)

// Splitter cuts text into segments of at most MaxLength runes. Each segment
// after the first starts with the last Overlap runes of its predecessor.
type Splitter struct {
	MaxLength int
	Overlap   int
}

func NewSplitter(maxLength, overlap int) (*Splitter, error) {
	if err := validate(maxLength, overlap); err != nil {
		return nil, err
	}
	return &Splitter{
		MaxLength: maxLength,
		Overlap:   overlap,
	}, nil
}

func (s *Splitter) Split(text string) ([]string, error) {
	return Split(text, s.MaxLength, s.Overlap)
}

// Split prefers cutting at a paragraph break, then a line break, a sentence
// end and a word gap, and only cuts mid-word when the window has none of them.
// The whitespace run at a cut is collapsed to its first rune, so no segment is
// padded with blank space.
func Split(text string, maxLength, overlap int) ([]string, error) {
	if err := validate(maxLength, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= maxLength {
		return []string{text}, nil
	}

	out := make([]string, 0, len(runes)/(maxLength-overlap)+1)
	var carry []rune
	pos := skipSpace(runes, 0)
	for pos < len(runes) {
		head := carry
		if len(carry) > 0 && pos > 0 && unicode.IsSpace(runes[pos-1]) && len(carry)+1 < maxLength {
			head = append(head[:len(head):len(head)], runes[gapStart(runes, pos)])
		}
		room := maxLength - len(head)

		if len(runes)-pos <= room {
			seg := append(head[:len(head):len(head)], runes[pos:]...)
			out = append(out, string(seg[:trimTrailingSpace(seg, len(seg), 0)]))
			break
		}

		// Two runes past the window let isBoundary look ahead at the limit.
		window := append(head[:len(head):len(head)], runes[pos:min(len(runes), pos+room+2)]...)
		// end > len(head) keeps at least one new rune in every segment.
		end := cutPoint(window, maxLength, len(head), levelParagraph)
		seg := window[:end]
		out = append(out, string(seg))

		pos = skipSpace(runes, pos+end-len(head))
		carry = nil
		if overlap > 0 {
			carry = seg[max(0, len(seg)-overlap):]
		}
	}
	return out, nil
}

// gapStart returns the first rune of the whitespace run that ends at pos.
func gapStart(runes []rune, pos int) int {
	for pos > 0 && unicode.IsSpace(runes[pos-1]) {
		pos--
	}
	return pos
}

func validate(maxLength, overlap int) error {
	if maxLength <= 0 {
		return domain.WrapError(domain.ErrInvalidConfiguration, "chunker", fmt.Errorf("max_length must be positive, got %d", maxLength))
	}
	if overlap < 0 || overlap >= maxLength {
		return domain.WrapError(
			domain.ErrInvalidConfiguration,
			"chunker",
			fmt.Errorf("overlap must be in [0, %d), got %d", maxLength, overlap),
		)
	}
	return nil
}

// cutPoint returns the right-most cut in (floor, limit] at the given level,
// descending to finer levels when the window has no such boundary.
func cutPoint(runes []rune, limit, floor int, level boundaryLevel) int {
	if level == levelHard {
		return limit
	}
	for p := limit; p > floor; p-- {
		if !isBoundary(runes, p, level) {
			continue
		}
		if end := trimTrailingSpace(runes, p, floor); end > floor {
			return end
		}
	}
	return cutPoint(runes, limit, floor, level+1)
}

// isBoundary reports whether a cut between runes[p-1] and runes[p] falls on the level's separator.
func isBoundary(runes []rune, p int, level boundaryLevel) bool {
	if p <= 0 || p >= len(runes) {
		return false
	}
	switch level {
	case levelParagraph:
		return runes[p] == '\n' && p+1 < len(runes) && runes[p+1] == '\n'
	case levelLine:
		return runes[p] == '\n'
	case levelSentence:
		return isSentenceEnd(runes[p-1]) && unicode.IsSpace(runes[p])
	case levelWord:
		return unicode.IsSpace(runes[p]) && !unicode.IsSpace(runes[p-1])
	default:
		return false
	}
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	default:
		return false
	}
}

func trimTrailingSpace(runes []rune, end, floor int) int {
	for end > floor && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return end
}

func skipSpace(runes []rune, start int) int {
	for start < len(runes) && unicode.IsSpace(runes[start]) {
		start++
	}
	return start
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

const snippetRunes = 120

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResults(w io.Writer, results []domain.CombinedSearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%2d. %.4f  %s [segment %d]\n    %s\n", i+1, r.Score, r.Title, r.SegmentIndex, snippet(r.Text))
	}
}

func printEntries(w io.Writer, entries []domain.RegistryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s\n", e.ID, e.Title)
	}
}

func snippet(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= snippetRunes {
		return flat
	}
	return string(runes[:snippetRunes]) + "..."
}

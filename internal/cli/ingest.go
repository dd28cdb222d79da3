package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docsearch/internal/core/usecase"
	"github.com/kirillkom/docsearch/internal/infrastructure/extractor"
)

func newIngestCommand(opts *options) *cobra.Command {
	var title, file string
	cmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Ingest one document from arguments or a file",
		Long: `Ingest one document. The text comes from the arguments or from --file, which may
be plain text, Markdown, PDF or XLSX. Without --title a file's base name is used.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if file != "" {
				if len(args) > 0 {
					return errors.New("pass either --file or text arguments, not both")
				}
				extracted, err := extractFile(cmd, file)
				if err != nil {
					return err
				}
				text = extracted
				if title == "" {
					title = usecase.TitleFromPath(file)
				}
			}
			if title == "" {
				return errors.New("--title is required when ingesting text arguments")
			}

			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.IngestUC.Ingest(cmd.Context(), title, text)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %q as %s (%d segments)\n", result.Title, result.DocumentID, result.Segments)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "document title")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document from a file")
	return cmd
}

func extractFile(cmd *cobra.Command, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	text, err := extractor.New().Extract(cmd.Context(), path, f)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	return text, nil
}

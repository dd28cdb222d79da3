package cli

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

func newLoadCommand(opts *options) *cobra.Command {
	var include []string
	var watch bool
	cmd := &cobra.Command{
		Use:   "load [dir]",
		Short: "Ingest every matching file under a directory",
		Long: `Ingest every file under dir (default INGEST_DIR) that matches the include globs.
Each file becomes one document titled by its base name without extension. Empty
files are skipped. With --watch, files created or changed afterwards are ingested too.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			loader, source, err := app.NewDirectoryLoader(dir, include)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			paths, err := source.List(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Scanning %s...\n", source.Root())

			bar := newBar(cmd.ErrOrStderr(), len(paths))
			files, err := loader.Load(ctx, func(domain.LoadedFile) {
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), files); err != nil {
					return err
				}
			} else {
				printLoadSummary(cmd.OutOrStdout(), files)
			}

			if !watch {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes, Ctrl-C to stop\n", source.Root())
			return source.Watch(ctx, func(path string) {
				printLoadedFile(cmd.OutOrStdout(), loader.LoadFile(ctx, path))
			})
		},
	}
	cmd.Flags().StringSliceVar(&include, "include", nil, "include glob, repeatable (default INGEST_INCLUDE)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and ingest new or changed files")
	return cmd
}

func newBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Loading[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

func printLoadSummary(w io.Writer, files []domain.LoadedFile) {
	var ingested, skipped, failed, segments int
	for _, f := range files {
		switch {
		case f.Error != "":
			failed++
		case f.Skipped:
			skipped++
		default:
			ingested++
			segments += f.Segments
		}
	}
	fmt.Fprintf(w, "Loading complete:\n")
	fmt.Fprintf(w, "  Files ingested: %d\n", ingested)
	fmt.Fprintf(w, "  Files skipped:  %d (empty)\n", skipped)
	fmt.Fprintf(w, "  Files failed:   %d\n", failed)
	fmt.Fprintf(w, "  Segments:       %d\n", segments)

	if failed > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, f := range files {
			if f.Error != "" {
				fmt.Fprintf(w, "  - %s: %s\n", f.Path, f.Error)
			}
		}
	}
}

func printLoadedFile(w io.Writer, f domain.LoadedFile) {
	switch {
	case f.Error != "":
		fmt.Fprintf(w, "failed   %s: %s\n", f.Path, f.Error)
	case f.Skipped:
		fmt.Fprintf(w, "skipped  %s\n", f.Path)
	default:
		fmt.Fprintf(w, "ingested %s as %s (%d segments)\n", f.Path, f.DocumentID, f.Segments)
	}
}

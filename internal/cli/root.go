package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/docsearch/internal/bootstrap"
	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/observability/logging"
)

type options struct {
	configFile string
	logLevel   string
	jsonOutput bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "docsearch",
		Short: "Ingest documents and search them by title, by meaning or both",
		Long: `docsearch splits documents into overlapping segments, embeds and indexes them,
and answers title, semantic and hybrid queries. Backends are chosen through the
same environment variables as the API and worker services.

Example usage:
  docsearch ingest --title Cats "Cats are small mammals."
  docsearch ingest --file notes/report.pdf
  docsearch similar "purring animals" -k 5
  docsearch load ./documents`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (same keys as the environment)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (default from LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newIngestCommand(opts),
		newCountCommand(opts),
		newSearchTitleCommand(opts),
		newSimilarCommand(opts),
		newHybridCommand(opts),
		newLoadCommand(opts),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (o *options) openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	if o.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", o.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := o.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	slog.SetDefault(logging.NewTextLogger(cmd.ErrOrStderr(), "docsearch-cli", level))

	app, err := bootstrap.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}

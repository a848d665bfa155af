package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/codewave/panel/internal/analysis"
	"github.com/codewave/panel/internal/models"
	"github.com/codewave/panel/internal/storage"
	"github.com/codewave/panel/internal/upload"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	endpoint    string
	contentType string
	raw         bool
	logLevel    string
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file.pdf>",
		Short: "Upload one PDF to the analysis service and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("endpoint") {
				if env := os.Getenv("ANALYSIS_ENDPOINT"); env != "" {
					opts.endpoint = env
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAnalyze(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.endpoint, "endpoint", analysis.DefaultEndpoint, "Analysis service URL")
	cmd.Flags().StringVar(&opts.contentType, "type", "", "Declared media type (detected from content when empty)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the raw service response as JSON")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error, off)")

	return cmd
}

// runAnalyze drives a single upload panel through select, submit and wait.
func runAnalyze(ctx context.Context, out io.Writer, path string, opts *analyzeOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	contentType := opts.contentType
	src := bufio.NewReader(f)
	if contentType == "" {
		head, _ := src.Peek(512)
		contentType = http.DetectContentType(head)
	}

	stagingDir, err := os.MkdirTemp("", "codewave-analyze-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	store, err := storage.NewLocalStore(stagingDir)
	if err != nil {
		return err
	}

	panel := upload.NewPanel("cli", store, analysis.NewClient(opts.endpoint), newLogger(opts.logLevel))
	defer panel.Close()

	if err := panel.SelectFile(filepath.Base(path), contentType, src); err != nil {
		return displayError(err)
	}

	task, err := panel.Submit(ctx)
	if err != nil {
		return displayError(err)
	}
	if err := task.Wait(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	snap := panel.Snapshot()
	if snap.Status != models.StatusSucceeded {
		return errors.New(snap.ErrorMessage)
	}

	if opts.raw {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Result.RawData)
	}

	fmt.Fprintf(out, "File Name: %s\n\n", snap.Result.Filename)
	fmt.Fprintf(out, "Analysis:\n%s\n", snap.FormattedAnalysis)
	return nil
}

// displayError reduces a panel error to the message the web panel would show.
func displayError(err error) error {
	var le *models.LifecycleError
	if errors.As(err, &le) {
		return errors.New(le.Message)
	}
	return err
}

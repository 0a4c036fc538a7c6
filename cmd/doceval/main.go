// Package main provides the doceval CLI, which scores extracted document
// fields against ground truth using an evaluation config.
//
// # Basic Usage
//
//	doceval evaluate --config eval.yaml --class invoice \
//	    --expected truth.json --actual extracted.json --format table
//
// Print the JSON schema the semantic judge must reply with:
//
//	doceval schema
//
// # Environment Variables
//
// SEMANTIC attributes call a language model configured through:
//
//   - DOCEVAL_JUDGE_PROVIDER: anthropic, openai or google (default: anthropic)
//   - DOCEVAL_JUDGE_MODEL: overrides semantic.model_id from the config
//   - DOCEVAL_JUDGE_API_KEY: provider API key; without it SEMANTIC attributes are recorded as errors
//   - DOCEVAL_JUDGE_BASE_URL: overrides the provider endpoint
//   - DOCEVAL_JUDGE_RPS: request rate limit (default: 2)
//   - DOCEVAL_JUDGE_TIMEOUT: per-request timeout (default: 30s)
//   - DOCEVAL_JUDGE_RETRIES: retries for transient failures (default: 2)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		clog.FromContext(ctx).Errorf("doceval: %v", err)
		stop()
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:          "doceval",
		Short:        "Evaluate document extraction results against ground truth",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLevel(logLevel)
			if err != nil {
				return err
			}
			logger := clog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(clog.WithLogger(cmd.Context(), logger))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		buildEvaluateCmd(),
		buildSchemaCmd(),
	)
	return rootCmd
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/ahrav/docgavel/infrastructure/compare"
	"github.com/ahrav/docgavel/infrastructure/middleware"
	"github.com/ahrav/docgavel/internal/application"
)

type evaluateOptions struct {
	configPath   string
	class        string
	expectedPath string
	actualPath   string
	documentID   string
	format       string
	outputPath   string
	outputURI    string
	maxTokens    int64
	maxCalls     int64
}

func buildEvaluateCmd() *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score an extraction against ground truth",
		Long: `Score an extraction against ground truth.

The expected and actual files hold either one JSON object (a single
section) or an array of objects (one per section, in order). Both files
must describe the same sections.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd, opts, envconfig.OsLookuper())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Evaluation config YAML")
	cmd.Flags().StringVar(&opts.class, "class", "", "Document class to evaluate")
	cmd.Flags().StringVar(&opts.expectedPath, "expected", "", "Ground truth JSON file")
	cmd.Flags().StringVar(&opts.actualPath, "actual", "", "Extracted JSON file")
	cmd.Flags().StringVar(&opts.documentID, "document-id", "", "Document identifier (default: random UUID)")
	cmd.Flags().StringVar(&opts.format, "format", "json", "Output format: json or table")
	cmd.Flags().StringVar(&opts.outputPath, "output", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVar(&opts.outputURI, "output-uri", "", "Location of the extraction output, recorded in the report")
	cmd.Flags().Int64Var(&opts.maxTokens, "max-judge-tokens", 0, "Override budget.max_tokens for judge calls (0 keeps the config value)")
	cmd.Flags().Int64Var(&opts.maxCalls, "max-judge-calls", 0, "Override budget.max_calls for judge calls (0 keeps the config value)")
	for _, name := range []string{"config", "class", "expected", "actual"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runEvaluate(cmd *cobra.Command, opts evaluateOptions, lookuper envconfig.Lookuper) error {
	ctx := cmd.Context()

	if opts.format != "json" && opts.format != "table" {
		return fmt.Errorf("unknown format %q (want json or table)", opts.format)
	}

	loader, err := application.NewConfigLoader()
	if err != nil {
		return err
	}
	loaded, err := loader.LoadFromFile(ctx, opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cls, ok := loaded.Class(opts.class)
	if !ok {
		return fmt.Errorf("class %q not found in %s (available: %v)", opts.class, opts.configPath, loaded.ClassNames())
	}

	// The loaded config is shared through the loader cache; overrides go on a copy.
	cfg := *loaded
	if opts.maxTokens > 0 {
		cfg.Budget.MaxTokens = opts.maxTokens
	}
	if opts.maxCalls > 0 {
		cfg.Budget.MaxCalls = opts.maxCalls
	}

	expected, err := readSections(opts.expectedPath)
	if err != nil {
		return fmt.Errorf("read expected: %w", err)
	}
	actual, err := readSections(opts.actualPath)
	if err != nil {
		return fmt.Errorf("read actual: %w", err)
	}
	if len(expected) != len(actual) {
		return fmt.Errorf("expected has %d sections but actual has %d", len(expected), len(actual))
	}

	env, err := loadJudgeEnv(ctx, lookuper)
	if err != nil {
		return err
	}
	metrics := middleware.NewPrometheusMetrics(prometheus.NewRegistry())
	stack, err := buildJudge(ctx, env, &cfg, cls, metrics)
	if err != nil {
		return err
	}

	var dispatcherOpts []compare.Option
	if stack.judge != nil {
		dispatcherOpts = append(dispatcherOpts, compare.WithJudge(stack.judge))
	}
	evaluator := application.NewEvaluator(cfg.Defaults.Settings(),
		application.WithComparer(compare.NewDispatcher(dispatcherOpts...)),
		application.WithMetrics(metrics),
	)

	doc := application.DocumentInput{
		DocumentID: opts.documentID,
		OutputURI:  opts.outputURI,
	}
	if doc.DocumentID == "" {
		doc.DocumentID = uuid.NewString()
	}
	for i := range expected {
		doc.Sections = append(doc.Sections, application.SectionInput{
			SectionID:     strconv.Itoa(i + 1),
			DocumentClass: cls.Name,
			Attributes:    cls.Attributes,
			Expected:      expected[i],
			Actual:        actual[i],
		})
	}

	result, err := evaluator.EvaluateDocument(ctx, doc)
	if err != nil {
		return err
	}
	if stack.budget != nil {
		tokens, calls := stack.budget.Usage()
		clog.FromContext(ctx).Infof("judge usage: %d calls, %d tokens", calls, tokens)
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.outputPath != "" {
		f, err := os.Create(filepath.Clean(opts.outputPath))
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if opts.format == "table" {
		return writeTable(out, result)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// readSections decodes a file holding one object or an array of objects.
// Numbers are kept as json.Number so no precision is lost before
// comparison.
func readSections(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	switch t := raw.(type) {
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		sections := make([]map[string]any, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: section %d is %T, want an object", path, i+1, item)
			}
			sections = append(sections, m)
		}
		return sections, nil
	default:
		return nil, fmt.Errorf("%s: want an object or an array of objects, got %T", path, raw)
	}
}

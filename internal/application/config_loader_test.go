package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/docgavel/internal/domain"
	"github.com/ahrav/docgavel/internal/testutils"
)

func newTestLoader(t *testing.T) *ConfigLoader {
	t.Helper()
	loader, err := NewConfigLoader()
	require.NoError(t, err)
	return loader
}

func TestConfigLoaderLoadsInvoiceConfig(t *testing.T) {
	loader := newTestLoader(t)

	cfg, err := loader.LoadFromReader(context.Background(), strings.NewReader(testutils.InvoiceConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, []string{testutils.InvoiceClass}, cfg.ClassNames())

	cls, ok := cfg.Class(testutils.InvoiceClass)
	require.True(t, ok)
	assert.Equal(t, testutils.InvoiceAttributes(), cls.Attributes)

	_, ok = cfg.Class("receipt")
	assert.False(t, ok)

	settings := cfg.Defaults.Settings()
	assert.Equal(t, domain.MethodExact, settings.Method)
	assert.Equal(t, 0.8, settings.Threshold)
	assert.Equal(t, domain.ListIndex, settings.ListStrategy)

	sem := cfg.SemanticConfig()
	assert.Equal(t, "test-model", sem.ModelID)
	assert.NotEmpty(t, sem.PromptTemplate)
	assert.NotZero(t, sem.MaxTokens)
}

func TestConfigLoaderFromFile(t *testing.T) {
	loader := newTestLoader(t)
	path := filepath.Join(t.TempDir(), "eval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testutils.InvoiceConfigYAML), 0o600))

	cfg, err := loader.LoadFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, cfg.Classes, 1)

	_, err = loader.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigLoaderValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown field",
			yaml: `version: "1.0.0"
classes:
  - name: invoice
    attributes:
      - name: a
        weight: 2
`,
			wantErr: "field weight not found",
		},
		{
			name: "bad version",
			yaml: `version: "v1"
classes:
  - name: invoice
    attributes: [{name: a}]
`,
			wantErr: "semver",
		},
		{
			name:    "no classes",
			yaml:    `version: "1.0.0"`,
			wantErr: "Classes",
		},
		{
			name: "unknown default method",
			yaml: `version: "1.0.0"
defaults: {method: COSINE}
classes:
  - name: invoice
    attributes: [{name: a}]
`,
			wantErr: "evalmethod",
		},
		{
			name: "unknown default comparator",
			yaml: `version: "1.0.0"
defaults: {comparator_type: JACCARD}
classes:
  - name: invoice
    attributes: [{name: a}]
`,
			wantErr: "comparator",
		},
		{
			name: "threshold out of range",
			yaml: `version: "1.0.0"
classes:
  - name: invoice
    attributes: [{name: a, threshold: 1.5}]
`,
			wantErr: "Threshold",
		},
		{
			name: "nested attribute without name",
			yaml: `version: "1.0.0"
classes:
  - name: invoice
    attributes:
      - name: vendor
        children: [{method: EXACT}]
`,
			wantErr: "Name",
		},
		{
			name: "duplicate class",
			yaml: `version: "1.0.0"
classes:
  - name: invoice
    attributes: [{name: a}]
  - name: invoice
    attributes: [{name: b}]
`,
			wantErr: `duplicate class "invoice"`,
		},
		{
			name: "duplicate sibling attribute",
			yaml: `version: "1.0.0"
classes:
  - name: invoice
    attributes:
      - name: vendor
        children: [{name: city}, {name: city}]
`,
			wantErr: `duplicate attribute "city" under invoice.vendor`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newTestLoader(t)
			_, err := loader.LoadFromReader(context.Background(), strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigLoaderSemanticErrorsAreValidationErrors(t *testing.T) {
	loader := newTestLoader(t)
	yaml := `version: "1.0.0"
classes:
  - name: invoice
    attributes: [{name: a}, {name: a}]
`
	_, err := loader.LoadFromReader(context.Background(), strings.NewReader(yaml))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))
}

func TestConfigLoaderAcceptsLenientAttributes(t *testing.T) {
	loader := newTestLoader(t)
	yaml := `version: "1.0.0"
classes:
  - name: invoice
    attributes:
      - name: line_items
        type: list
      - name: code
        method: COSINE
`
	cfg, err := loader.LoadFromReader(context.Background(), strings.NewReader(yaml))
	require.NoError(t, err)

	cls, _ := cfg.Class("invoice")
	require.Len(t, cls.Attributes, 2)
	assert.Empty(t, cls.Attributes[0].Items)
	assert.Equal(t, "COSINE", cls.Attributes[1].Method)
}

func TestConfigLoaderCache(t *testing.T) {
	loader := newTestLoader(t)
	ctx := context.Background()

	first, err := loader.LoadFromReader(ctx, strings.NewReader(testutils.InvoiceConfigYAML))
	require.NoError(t, err)

	reformatted := "# comment\n" + testutils.InvoiceConfigYAML
	second, err := loader.LoadFromReader(ctx, strings.NewReader(reformatted))
	require.NoError(t, err)
	assert.Same(t, first, second, "formatting-only changes should hit the cache")

	loader.ClearCache()
	third, err := loader.LoadFromReader(ctx, strings.NewReader(testutils.InvoiceConfigYAML))
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first, third)
}

func TestConfigLoaderConcurrentLoads(t *testing.T) {
	loader := newTestLoader(t)

	var wg sync.WaitGroup
	results := make([]*EvaluationConfig, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := loader.LoadFromReader(context.Background(), strings.NewReader(testutils.InvoiceConfigYAML))
			assert.NoError(t, err)
			results[i] = cfg
		}()
	}
	wg.Wait()

	for _, cfg := range results {
		require.NotNil(t, cfg)
		assert.Equal(t, "1.0.0", cfg.Version)
	}
}

func TestDefaultsConfigSettings(t *testing.T) {
	threshold := 0.6
	d := DefaultsConfig{Method: "fuzzy", Threshold: &threshold, Comparator: "numeric", ListStrategy: "set"}

	s := d.Settings()

	assert.Equal(t, domain.MethodFuzzy, s.Method)
	assert.Equal(t, 0.6, s.Threshold)
	assert.Equal(t, domain.ComparatorNumeric, s.Comparator)
	assert.Equal(t, domain.ListSet, s.ListStrategy)
	assert.Equal(t, domain.DefaultSettings(), DefaultsConfig{}.Settings())
}

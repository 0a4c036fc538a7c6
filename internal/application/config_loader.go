package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/docgavel/internal/domain"
)

// ConfigLoader provides YAML parsing, validation and caching for evaluation
// configurations.
// Use ConfigLoader to load configurations from files or readers while
// benefiting from SHA256-based caching and strict validation.
type ConfigLoader struct {
	// validator performs struct field validation with the custom tags
	// registered by registerCustomValidators.
	validator *validator.Validate
	// cache stores validated configurations indexed by the SHA256 hash of
	// their normalized YAML.
	// WARNING: Cached configurations MUST NOT be mutated.
	cache   map[string]*EvaluationConfig
	cacheMu sync.RWMutex
	// sf prevents duplicate validation when multiple goroutines load the
	// same configuration simultaneously.
	sf singleflight.Group
}

// NewConfigLoader creates a loader with an empty cache.
// NewConfigLoader returns an error if validator registration fails.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator: v,
		cache:     make(map[string]*EvaluationConfig),
	}, nil
}

// LoadFromFile loads and validates an evaluation configuration from a YAML
// file.
// WARNING: The returned configuration is a pointer to a cached instance.
// Callers MUST NOT mutate it.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*EvaluationConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.load(ctx, data)
}

// LoadFromReader loads and validates an evaluation configuration from r.
// It applies the same caching and validation as LoadFromFile.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*EvaluationConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(ctx, data)
}

// load parses data, then validates and caches it under the hash of its
// normalized form so that formatting-only differences share one entry.
func (cl *ConfigLoader) load(ctx context.Context, data []byte) (*EvaluationConfig, error) {
	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	hash, err := calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		// Check cache inside singleflight to handle the race between the
		// cache check and group execution.
		if cached, ok := cl.getCached(hash); ok {
			return cached, nil
		}

		if err := cl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		warnUnknownMethods(ctx, config)

		cl.store(hash, config)
		return config, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*EvaluationConfig), nil
}

// parseYAML uses strict decoding so that misspelled keys are rejected
// rather than silently ignored.
func (cl *ConfigLoader) parseYAML(data []byte) (*EvaluationConfig, error) {
	var config EvaluationConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

func (cl *ConfigLoader) validateConfig(config *EvaluationConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics enforces rules that struct tags cannot express: class
// names are unique, and attribute names are unique among siblings.
func validateSemantics(config *EvaluationConfig) error {
	verr := domain.NewValidationError("evaluation config")

	classes := make(map[string]struct{}, len(config.Classes))
	for _, cls := range config.Classes {
		if _, dup := classes[cls.Name]; dup {
			verr.AddError(fmt.Sprintf("duplicate class %q", cls.Name))
		}
		classes[cls.Name] = struct{}{}
		checkSiblings(verr, cls.Name, cls.Attributes)
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func checkSiblings(verr *domain.ValidationError, parent string, specs []domain.AttributeSpec) {
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if _, dup := seen[spec.Name]; dup {
			verr.AddError(fmt.Sprintf("duplicate attribute %q under %s", spec.Name, parent))
		}
		seen[spec.Name] = struct{}{}

		path := parent + "." + spec.Name
		checkSiblings(verr, path, spec.Children)
		checkSiblings(verr, path+"[]", spec.Items)
	}
}

// warnUnknownMethods logs attributes whose method tag is unrecognized.
// They are still accepted and evaluated with EXACT.
func warnUnknownMethods(ctx context.Context, config *EvaluationConfig) {
	settings := config.Defaults.Settings()
	var walk func(parent string, specs []domain.AttributeSpec)
	walk = func(parent string, specs []domain.AttributeSpec) {
		for _, spec := range specs {
			path := parent + "." + spec.Name
			if _, ok := spec.ResolveMethod(settings); !ok {
				clog.FromContext(ctx).Warnf("attribute %s: unknown method %q, EXACT will be used", path, spec.Method)
			}
			walk(path, spec.Children)
			walk(path+"[]", spec.Items)
		}
	}
	for _, cls := range config.Classes {
		walk(cls.Name, cls.Attributes)
	}
}

// calculateConfigHash hashes the re-encoded configuration rather than the
// raw bytes, so comments and whitespace do not defeat the cache.
func calculateConfigHash(config *EvaluationConfig) (string, error) {
	normalized, err := yaml.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

func (cl *ConfigLoader) getCached(hash string) (*EvaluationConfig, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	config, ok := cl.cache[hash]
	return config, ok
}

func (cl *ConfigLoader) store(hash string, config *EvaluationConfig) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = config
}

// ClearCache removes all cached configurations, forcing subsequent loads to
// validate from source.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*EvaluationConfig)
}

// registerCustomValidators registers the evalmethod, comparator and semver
// tags used by EvaluationConfig.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("evalmethod", validateMethod); err != nil {
		return fmt.Errorf("failed to register evalmethod validator: %w", err)
	}
	if err := v.RegisterValidation("comparator", validateComparator); err != nil {
		return fmt.Errorf("failed to register comparator validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z where X, Y and Z are non-negative integers.
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

func validateMethod(fl validator.FieldLevel) bool {
	_, ok := domain.ParseMethod(fl.Field().String())
	return ok
}

func validateComparator(fl validator.FieldLevel) bool {
	_, ok := domain.ParseComparatorType(fl.Field().String())
	return ok
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/time/rate"

	"github.com/ahrav/docgavel/infrastructure/compare"
	"github.com/ahrav/docgavel/infrastructure/llm"
	"github.com/ahrav/docgavel/infrastructure/middleware"
	"github.com/ahrav/docgavel/internal/application"
	"github.com/ahrav/docgavel/internal/domain"
)

// judgeEnv is the semantic judge transport, read from the environment.
type judgeEnv struct {
	Provider string        `env:"DOCEVAL_JUDGE_PROVIDER,default=anthropic"`
	Model    string        `env:"DOCEVAL_JUDGE_MODEL"`
	APIKey   string        `env:"DOCEVAL_JUDGE_API_KEY"`
	BaseURL  string        `env:"DOCEVAL_JUDGE_BASE_URL"`
	RPS      float64       `env:"DOCEVAL_JUDGE_RPS,default=2"`
	Timeout  time.Duration `env:"DOCEVAL_JUDGE_TIMEOUT,default=30s"`
	Retries  int           `env:"DOCEVAL_JUDGE_RETRIES,default=2"`
}

func loadJudgeEnv(ctx context.Context, lookuper envconfig.Lookuper) (judgeEnv, error) {
	var env judgeEnv
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: lookuper}); err != nil {
		return judgeEnv{}, fmt.Errorf("read judge environment: %w", err)
	}
	return env, nil
}

// judgeStack is the judge built for one run along with its budget, whose
// usage is reported at the end.
type judgeStack struct {
	judge  *compare.InvokerJudge
	budget *middleware.BudgetManager
}

// buildJudge wires provider, middleware, budget and judge together. It
// returns a zero stack when no class attribute needs a judge or no API key
// is configured.
func buildJudge(ctx context.Context, env judgeEnv, cfg *application.EvaluationConfig, cls application.ClassConfig, metrics *middleware.PrometheusMetrics) (judgeStack, error) {
	if !needsJudge(cfg.Defaults.Settings(), cls.Attributes) {
		return judgeStack{}, nil
	}
	if env.APIKey == "" {
		clog.FromContext(ctx).Warnf("class %q has SEMANTIC attributes but DOCEVAL_JUDGE_API_KEY is not set; they will be recorded as errors", cls.Name)
		return judgeStack{}, nil
	}

	sem := cfg.SemanticConfig()
	if env.Model != "" {
		sem.ModelID = env.Model
	}

	client, err := llm.NewClient(env.Provider, llm.ClientConfig{
		APIKey:  env.APIKey,
		Model:   sem.ModelID,
		BaseURL: env.BaseURL,
		Middleware: []llm.Middleware{
			llm.TracingMiddleware("doceval"),
			llm.MetricsMiddleware(metrics),
			llm.CircuitBreakerMiddlewareWithMetrics(5, 30*time.Second, metrics.CircuitBreaker(env.Provider)),
			llm.RetryMiddleware(env.Retries, 500*time.Millisecond, 10*time.Second),
			llm.RateLimitMiddleware(rate.Limit(env.RPS), 1),
			llm.TimeoutMiddleware(env.Timeout),
		},
	})
	if err != nil {
		return judgeStack{}, fmt.Errorf("create %s client: %w", env.Provider, err)
	}

	budget, err := middleware.NewBudgetManager(middleware.Budget{
		MaxTokens: cfg.Budget.MaxTokens,
		MaxCalls:  cfg.Budget.MaxCalls,
	}, client, metrics)
	if err != nil {
		return judgeStack{}, err
	}

	judge, err := compare.NewInvokerJudge(budget, sem)
	if err != nil {
		return judgeStack{}, err
	}
	return judgeStack{judge: judge, budget: budget}, nil
}

// needsJudge reports whether any attribute resolves to SEMANTIC.
func needsJudge(settings domain.Settings, specs []domain.AttributeSpec) bool {
	for _, spec := range specs {
		if m, _ := spec.ResolveMethod(settings); m == domain.MethodSemantic && len(spec.Children) == 0 && len(spec.Items) == 0 {
			return true
		}
		if needsJudge(settings, spec.Children) || needsJudge(settings, spec.Items) {
			return true
		}
	}
	return false
}

package compare

import (
	"context"
	"fmt"
	"math"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/docgavel/internal/domain"
	"github.com/ahrav/docgavel/internal/ports"
)

// Request is one leaf comparison.
type Request struct {
	Method     domain.Method
	Expected   any
	Actual     any
	Threshold  float64
	Comparator domain.ComparatorType

	// Context for SEMANTIC judgments.
	DocumentClass        string
	AttributeName        string
	AttributeDescription string
}

// Outcome is the result of one leaf comparison. Err is set when the
// comparison failed in a recoverable way; Matched is then false and Score 0.
type Outcome struct {
	Matched bool
	Score   float64
	Reason  string
	Err     error

	// Method is the method whose handler produced the outcome.
	Method domain.Method

	// TruePositives and FalsePositives are set by HUNGARIAN.
	TruePositives  int
	FalsePositives int
}

type handler func(ctx context.Context, req Request) Outcome

// Dispatcher routes a comparison to the handler for its method. The handler
// table is fixed at construction, so a Dispatcher is safe for concurrent use.
type Dispatcher struct {
	handlers map[domain.Method]handler
	judge    ports.Judge
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithJudge sets the judge used by SEMANTIC comparisons.
func WithJudge(j ports.Judge) Option {
	return func(d *Dispatcher) { d.judge = j }
}

// NewDispatcher returns a dispatcher with a handler for every method.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = map[domain.Method]handler{
		domain.MethodExact:        d.exact,
		domain.MethodNumericExact: d.numericExact,
		domain.MethodFuzzy:        d.fuzzy,
		domain.MethodBERT:         d.fuzzy,
		domain.MethodHungarian:    d.hungarian,
		domain.MethodSemantic:     d.semantic,
	}
	return d
}

// HasJudge reports whether SEMANTIC comparisons have a judge.
func (d *Dispatcher) HasJudge() bool { return d.judge != nil }

// Compare runs the comparison for req. A method without a handler falls back
// to EXACT with a warning. The returned error is non-nil only when no
// handler exists even after that fallback.
func (d *Dispatcher) Compare(ctx context.Context, req Request) (Outcome, error) {
	h, ok := d.handlers[req.Method]
	if !ok {
		clog.FromContext(ctx).Warnf("unknown comparison method %q for attribute %q, falling back to %s",
			req.Method, req.AttributeName, domain.MethodExact)
		req.Method = domain.MethodExact
		if h, ok = d.handlers[domain.MethodExact]; !ok {
			return Outcome{}, fmt.Errorf("%w: %s", domain.ErrNoHandler, domain.MethodExact)
		}
	}

	out := h(ctx, req)
	if out.Method == "" {
		out.Method = req.Method
	}
	out.Score = clamp(out.Score)
	if out.Err != nil {
		out.Matched = false
		out.Score = 0
	}
	return out, nil
}

func (d *Dispatcher) exact(_ context.Context, req Request) Outcome {
	expected, actual := domain.IsPresent(req.Expected), domain.IsPresent(req.Actual)
	switch {
	case !expected && !actual:
		return matchOutcome(true)
	case !expected || !actual:
		return matchOutcome(false)
	}
	return matchOutcome(NormalizeText(req.Expected) == NormalizeText(req.Actual))
}

func (d *Dispatcher) numericExact(ctx context.Context, req Request) Outcome {
	if !domain.IsPresent(req.Expected) || !domain.IsPresent(req.Actual) {
		return d.exact(ctx, req)
	}
	e, err := NormalizeNumeric(req.Expected)
	if err != nil {
		clog.FromContext(ctx).Debugf("attribute %q: %v, comparing as text", req.AttributeName, err)
		return d.exact(ctx, req)
	}
	a, err := NormalizeNumeric(req.Actual)
	if err != nil {
		clog.FromContext(ctx).Debugf("attribute %q: %v, comparing as text", req.AttributeName, err)
		return d.exact(ctx, req)
	}
	return matchOutcome(e == a)
}

func (d *Dispatcher) fuzzy(_ context.Context, req Request) Outcome {
	matched, score := CompareFuzzy(req.Expected, req.Actual, req.Threshold)
	return Outcome{Matched: matched, Score: score}
}

func (d *Dispatcher) hungarian(_ context.Context, req Request) Outcome {
	m := CompareHungarian(req.Expected, req.Actual, LeafComparatorFor(req.Comparator, req.Threshold))
	return Outcome{
		Matched:        m.Matched(),
		Score:          m.Score(),
		TruePositives:  m.TruePositives,
		FalsePositives: m.FalsePositives,
	}
}

func (d *Dispatcher) semantic(ctx context.Context, req Request) (out Outcome) {
	if !domain.IsPresent(req.Expected) && !domain.IsPresent(req.Actual) {
		return matchOutcome(true)
	}
	if d.judge == nil {
		return Outcome{Err: domain.ErrNoJudge, Reason: domain.ErrNoJudge.Error()}
	}

	defer func() {
		if r := recover(); r != nil {
			err := domain.NewAdapterError("judge", fmt.Errorf("panic: %v", r))
			out = Outcome{Err: err, Reason: err.Error()}
		}
	}()

	res, err := d.judge.Judge(ctx, ports.JudgeRequest{
		DocumentClass:        req.DocumentClass,
		AttributeName:        req.AttributeName,
		AttributeDescription: req.AttributeDescription,
		Expected:             req.Expected,
		Actual:               req.Actual,
		Threshold:            req.Threshold,
	})
	if err != nil {
		clog.FromContext(ctx).Warnf("semantic judge failed for attribute %q: %v", req.AttributeName, err)
		return Outcome{Err: err, Reason: err.Error()}
	}

	score := clamp(res.Score)
	return Outcome{
		Matched: res.Match && score >= req.Threshold,
		Score:   score,
		Reason:  res.Reason,
	}
}

func matchOutcome(matched bool) Outcome {
	if matched {
		return Outcome{Matched: true, Score: 1.0}
	}
	return Outcome{Score: 0.0}
}

func clamp(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

package application

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/docgavel/infrastructure/compare"
	"github.com/ahrav/docgavel/internal/domain"
	"github.com/ahrav/docgavel/internal/ports"
)

const tracerName = "github.com/ahrav/docgavel/internal/application"

// keySeparator joins template fields into the composite key of a list item
// under the set strategy.
const keySeparator = " | "

// Comparer performs one leaf comparison. compare.Dispatcher is the
// production implementation.
type Comparer interface {
	Compare(ctx context.Context, req compare.Request) (compare.Outcome, error)
}

// SectionInput is one section of a document: its class, the attribute tree
// to evaluate and the expected and actual values.
type SectionInput struct {
	SectionID     string
	DocumentClass string
	Attributes    []domain.AttributeSpec
	Expected      map[string]any
	Actual        map[string]any

	// Confidence maps leaf paths (e.g. line_items[0].amount) to the
	// extraction confidence reported for the actual value.
	Confidence map[string]float64
}

// DocumentInput groups the sections of one document.
type DocumentInput struct {
	DocumentID string
	Sections   []SectionInput
	OutputURI  string
}

// Evaluator walks attribute trees and scores expected against actual
// values. It holds no per-call state and is safe for concurrent use.
type Evaluator struct {
	settings domain.Settings
	comparer Comparer
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithComparer replaces the default dispatcher, which has no judge.
func WithComparer(c Comparer) EvaluatorOption {
	return func(e *Evaluator) { e.comparer = c }
}

// WithMetrics records per-attribute outcomes and latencies on m.
func WithMetrics(m ports.MetricsCollector) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

// WithTracer sets the tracer used for document and section spans.
func WithTracer(t trace.Tracer) EvaluatorOption {
	return func(e *Evaluator) { e.tracer = t }
}

// NewEvaluator creates an evaluator applying settings to every attribute
// that does not configure its own method, threshold, comparator or list
// strategy.
func NewEvaluator(settings domain.Settings, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{settings: settings}
	for _, opt := range opts {
		opt(e)
	}
	if e.comparer == nil {
		e.comparer = compare.NewDispatcher()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Settings returns the defaults the evaluator was built with.
func (e *Evaluator) Settings() domain.Settings { return e.settings }

// EvaluateAttributes evaluates specs against the expected and actual trees.
// Attribute-level failures are recorded on the results; only ErrNilSpec
// and ErrNoHandler are returned.
func (e *Evaluator) EvaluateAttributes(ctx context.Context, documentClass string, specs []domain.AttributeSpec, expected, actual any) ([]domain.AttributeResult, error) {
	if specs == nil {
		return nil, domain.ErrNilSpec
	}
	w := walker{
		Evaluator:     e,
		documentClass: documentClass,
	}
	return w.evalGroupChildren(ctx, specs, "", domain.NodeOf(expected), domain.NodeOf(actual))
}

// EvaluateSection evaluates one section and computes its metrics.
func (e *Evaluator) EvaluateSection(ctx context.Context, in SectionInput) (res domain.SectionResult, err error) {
	ctx, span := e.tracer.Start(ctx, "Evaluator.EvaluateSection",
		trace.WithAttributes(
			attribute.String("section.id", in.SectionID),
			attribute.String("document.class", in.DocumentClass),
		))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	defer func() {
		e.recordLatency(ports.MetricEvaluateSection, time.Since(start), map[string]string{"document_class": in.DocumentClass})
	}()

	if in.Attributes == nil {
		return domain.SectionResult{}, domain.ErrNilSpec
	}

	w := walker{
		Evaluator:     e,
		documentClass: in.DocumentClass,
		confidence:    in.Confidence,
	}
	results, err := w.evalGroupChildren(ctx, in.Attributes, "", domain.NodeOf(in.Expected), domain.NodeOf(in.Actual))
	if err != nil {
		return domain.SectionResult{}, fmt.Errorf("section %s: %w", in.SectionID, err)
	}

	res = domain.SectionResult{
		SectionID:     in.SectionID,
		DocumentClass: in.DocumentClass,
		Attributes:    results,
		Metrics:       domain.SectionMetrics(results),
	}
	span.SetAttributes(
		attribute.Int("attributes.count", len(results)),
		attribute.Float64("metrics.f1", res.Metrics.F1Score),
	)
	return res, nil
}

// EvaluateDocument evaluates every section of a document in order and
// micro-averages their metrics.
func (e *Evaluator) EvaluateDocument(ctx context.Context, in DocumentInput) (res domain.DocumentResult, err error) {
	ctx, span := e.tracer.Start(ctx, "Evaluator.EvaluateDocument",
		trace.WithAttributes(
			attribute.String("document.id", in.DocumentID),
			attribute.Int("sections.count", len(in.Sections)),
		))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	ctx = clog.WithValues(ctx, "document_id", in.DocumentID)

	sections := make([]domain.SectionResult, 0, len(in.Sections))
	for _, s := range in.Sections {
		if err := ctx.Err(); err != nil {
			return domain.DocumentResult{}, err
		}
		sr, err := e.EvaluateSection(ctx, s)
		if err != nil {
			return domain.DocumentResult{}, fmt.Errorf("document %s: %w", in.DocumentID, err)
		}
		sections = append(sections, sr)
	}

	elapsed := time.Since(start)
	e.recordLatency(ports.MetricEvaluateDocument, elapsed, nil)

	res = domain.DocumentResult{
		DocumentID:    in.DocumentID,
		Sections:      sections,
		Metrics:       domain.DocumentMetrics(sections),
		ExecutionTime: elapsed,
		OutputURI:     in.OutputURI,
	}
	clog.FromContext(ctx).Debugf("evaluated %d sections in %s (f1=%.3f)", len(sections), elapsed, res.Metrics.F1Score)
	return res, nil
}

// EvaluateBatch evaluates independent documents with at most concurrency
// running at once. Results are in input order. A concurrency below one
// uses GOMAXPROCS.
func (e *Evaluator) EvaluateBatch(ctx context.Context, docs []DocumentInput, concurrency int) ([]domain.DocumentResult, error) {
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	results := make([]domain.DocumentResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			res, err := e.EvaluateDocument(gctx, doc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// walker carries the per-section context of one attribute walk.
type walker struct {
	*Evaluator
	documentClass string
	confidence    map[string]float64
}

func isFatal(err error) bool {
	return errors.Is(err, domain.ErrNilSpec) || errors.Is(err, domain.ErrNoHandler)
}

func (w walker) evalGroupChildren(ctx context.Context, specs []domain.AttributeSpec, parent string, expected, actual domain.Node) ([]domain.AttributeResult, error) {
	results := make([]domain.AttributeResult, 0, len(specs))
	for _, spec := range specs {
		r, err := w.evalAttribute(ctx, spec, spec.Name, joinPath(parent, spec.Name), field(expected, spec.Name), field(actual, spec.Name))
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// evalAttribute evaluates one attribute. A panic in this attribute is
// recorded on its result so that sibling attributes still run.
func (w walker) evalAttribute(ctx context.Context, spec domain.AttributeSpec, name, path string, expected, actual domain.Node) (res domain.AttributeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = w.errorResult(ctx, spec, name, path, expected, actual, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	switch spec.ResolvedType() {
	case domain.AttributeGroup:
		return w.evalGroup(ctx, spec, name, path, expected, actual)
	case domain.AttributeList:
		return w.evalList(ctx, spec, name, path, expected, actual)
	default:
		return w.evalLeaf(ctx, spec, name, path, expected.Raw(), actual.Raw())
	}
}

func (w walker) evalLeaf(ctx context.Context, spec domain.AttributeSpec, name, path string, expected, actual any) (domain.AttributeResult, error) {
	method, ok := spec.ResolveMethod(w.settings)
	if !ok {
		clog.FromContext(ctx).Warnf("attribute %s: unknown method %q, falling back to EXACT", path, spec.Method)
	}
	threshold := spec.ResolveThreshold(w.settings)

	req := compare.Request{
		Method:               method,
		Expected:             expected,
		Actual:               actual,
		Threshold:            threshold,
		DocumentClass:        w.documentClass,
		AttributeName:        name,
		AttributeDescription: spec.Description,
	}
	if method == domain.MethodHungarian {
		req.Comparator = spec.ResolveComparator(w.settings)
	}

	out, err := w.comparer.Compare(ctx, req)
	if err != nil {
		if isFatal(err) {
			return domain.AttributeResult{}, fmt.Errorf("attribute %s: %w", path, err)
		}
		out = compare.Outcome{Err: err}
	}

	res := domain.AttributeResult{
		Name:           name,
		Path:           path,
		Expected:       expected,
		Actual:         actual,
		Matched:        out.Matched,
		Score:          out.Score,
		Reason:         out.Reason,
		Method:         method,
		Threshold:      threshold,
		Comparator:     req.Comparator,
		Confidence:     w.confidenceFor(path),
		TruePositives:  out.TruePositives,
		FalsePositives: out.FalsePositives,
	}
	if out.Err != nil {
		res.Matched, res.Score = false, 0
		res.ErrorDetails = out.Err.Error()
		clog.FromContext(ctx).Warnf("attribute %s: %v", path, out.Err)
	}
	w.recordLeaf(res)
	return res, nil
}

func (w walker) evalGroup(ctx context.Context, spec domain.AttributeSpec, name, path string, expected, actual domain.Node) (domain.AttributeResult, error) {
	if len(spec.Children) == 0 {
		return w.evalLeaf(ctx, spec, name, path, expected.Raw(), actual.Raw())
	}
	if !groupLike(expected) || !groupLike(actual) {
		return w.errorResult(ctx, spec, name, path, expected, actual,
			domain.NewComparisonError(path, fmt.Errorf("%w: group attribute got %s and %s", domain.ErrTypeMismatch, shape(expected), shape(actual)))), nil
	}

	children, err := w.evalGroupChildren(ctx, spec.Children, path, expected, actual)
	if err != nil {
		return domain.AttributeResult{}, err
	}
	return w.composite(spec, name, path, expected, actual, children), nil
}

func (w walker) evalList(ctx context.Context, spec domain.AttributeSpec, name, path string, expected, actual domain.Node) (domain.AttributeResult, error) {
	if spec.ResolveListStrategy(w.settings) == domain.ListSet {
		return w.evalSet(ctx, spec, name, path, expected, actual)
	}
	if len(spec.Items) == 0 {
		return w.errorResult(ctx, spec, name, path, expected, actual,
			domain.NewComparisonError(path, domain.ErrMissingItemTemplate)), nil
	}

	exp, expOK := listOf(expected)
	act, actOK := listOf(actual)
	if !expOK || !actOK {
		return w.errorResult(ctx, spec, name, path, expected, actual,
			domain.NewComparisonError(path, fmt.Errorf("%w: list attribute got %s and %s", domain.ErrTypeMismatch, shape(expected), shape(actual)))), nil
	}

	n := max(exp.Len(), act.Len())
	children := make([]domain.AttributeResult, 0, n)
	for i := range n {
		itemName := fmt.Sprintf("%s[%d]", name, i)
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		r, err := w.evalItem(ctx, spec, itemName, itemPath, exp.At(i), act.At(i))
		if err != nil {
			return domain.AttributeResult{}, err
		}
		children = append(children, r)
	}

	if n == 0 {
		// Both lists are empty or absent: a single true-negative leaf.
		return w.evalLeaf(ctx, domain.AttributeSpec{Name: spec.Name, Description: spec.Description}, name, path, expected.Raw(), actual.Raw())
	}
	return w.composite(spec, name, path, expected, actual, children), nil
}

// evalItem compares one index-aligned item through the item template.
// Scalar items against a single-field template are compared directly.
func (w walker) evalItem(ctx context.Context, spec domain.AttributeSpec, name, path string, expected, actual domain.Node) (domain.AttributeResult, error) {
	if len(spec.Items) == 1 && (isLeaf(expected) || isLeaf(actual)) {
		tmpl := spec.Items[0]
		return w.evalAttribute(ctx, tmpl, name, path, expected, actual)
	}
	item := domain.AttributeSpec{
		Name:        name,
		Description: spec.Description,
		Type:        domain.AttributeGroup,
		Children:    spec.Items,
	}
	return w.evalAttribute(ctx, item, name, path, expected, actual)
}

// evalSet compares the whole list as one HUNGARIAN leaf over composite item
// keys.
func (w walker) evalSet(ctx context.Context, spec domain.AttributeSpec, name, path string, expected, actual domain.Node) (domain.AttributeResult, error) {
	threshold := spec.ResolveThreshold(w.settings)
	req := compare.Request{
		Method:        domain.MethodHungarian,
		Expected:      itemKeys(expected, spec.Items),
		Actual:        itemKeys(actual, spec.Items),
		Threshold:     threshold,
		Comparator:    spec.ResolveComparator(w.settings),
		DocumentClass: w.documentClass,
		AttributeName: name,
	}
	out, err := w.comparer.Compare(ctx, req)
	if err != nil {
		if isFatal(err) {
			return domain.AttributeResult{}, fmt.Errorf("attribute %s: %w", path, err)
		}
		out = compare.Outcome{Err: err}
	}

	res := domain.AttributeResult{
		Name:           name,
		Path:           path,
		Expected:       expected.Raw(),
		Actual:         actual.Raw(),
		Matched:        out.Matched,
		Score:          out.Score,
		Reason:         out.Reason,
		Method:         domain.MethodHungarian,
		Threshold:      threshold,
		Comparator:     req.Comparator,
		Confidence:     w.confidenceFor(path),
		TruePositives:  out.TruePositives,
		FalsePositives: out.FalsePositives,
	}
	if out.Err != nil {
		res.Matched, res.Score = false, 0
		res.ErrorDetails = out.Err.Error()
		clog.FromContext(ctx).Warnf("attribute %s: %v", path, out.Err)
	}
	w.recordLeaf(res)
	return res, nil
}

// composite builds the result of a group or list from its children. Its
// score is the mean child score and it matches only when every child does.
func (w walker) composite(spec domain.AttributeSpec, name, path string, expected, actual domain.Node, children []domain.AttributeResult) domain.AttributeResult {
	method, _ := spec.ResolveMethod(w.settings)
	matched := true
	var total float64
	for _, c := range children {
		matched = matched && c.Matched
		total += c.Score
	}
	score := 1.0
	if len(children) > 0 {
		score = total / float64(len(children))
	}
	return domain.AttributeResult{
		Name:      name,
		Path:      path,
		Expected:  expected.Raw(),
		Actual:    actual.Raw(),
		Matched:   matched,
		Score:     score,
		Method:    method,
		Threshold: spec.ResolveThreshold(w.settings),
		Children:  children,
	}
}

// errorResult records a structural failure as an unmatched leaf.
func (w walker) errorResult(ctx context.Context, spec domain.AttributeSpec, name, path string, expected, actual domain.Node, cause error) domain.AttributeResult {
	method, _ := spec.ResolveMethod(w.settings)
	clog.FromContext(ctx).Warnf("attribute %s: %v", path, cause)
	res := domain.AttributeResult{
		Name:         name,
		Path:         path,
		Expected:     expected.Raw(),
		Actual:       actual.Raw(),
		Method:       method,
		Threshold:    spec.ResolveThreshold(w.settings),
		ErrorDetails: cause.Error(),
		Confidence:   w.confidenceFor(path),
	}
	w.recordLeaf(res)
	return res
}

func (w walker) confidenceFor(path string) *float64 {
	c, ok := w.confidence[path]
	if !ok {
		return nil
	}
	return &c
}

func (e *Evaluator) recordLeaf(res domain.AttributeResult) {
	if e.metrics == nil {
		return
	}
	method := string(res.Method)
	e.metrics.RecordCounter(ports.MetricAttributesEvaluated, 1, map[string]string{
		"method":  method,
		"outcome": outcomeOf(domain.CountLeaf(res)),
	})
	e.metrics.RecordHistogram(ports.MetricAttributeScore, res.Score, map[string]string{"method": method})
	if res.ErrorDetails != "" {
		e.metrics.RecordCounter(ports.MetricAttributeErrors, 1, map[string]string{"method": method})
	}
}

func (e *Evaluator) recordLatency(op string, d time.Duration, labels map[string]string) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordLatency(op, d, labels)
}

// outcomeOf names the dominant confusion class of a leaf. HUNGARIAN leaves
// can carry both a false negative and false positives; the expected side
// wins.
func outcomeOf(c domain.Counts) string {
	switch {
	case c.TruePositives > 0:
		return "tp"
	case c.FalseNegatives > 0:
		return "fn"
	case c.FalsePositives > 0:
		return "fp"
	default:
		return "tn"
	}
}

// itemKeys derives the composite key of each list item. Values that are
// not lists are passed through for the matcher to coerce.
func itemKeys(n domain.Node, template []domain.AttributeSpec) any {
	l, ok := n.(domain.List)
	if !ok {
		return n.Raw()
	}
	keys := make([]string, 0, l.Len())
	for _, item := range l.Items {
		keys = append(keys, itemKey(item, template))
	}
	return keys
}

func itemKey(item domain.Node, template []domain.AttributeSpec) string {
	g, ok := item.(domain.Group)
	if !ok || len(template) == 0 {
		return compare.Stringify(item.Raw())
	}
	parts := make([]string, 0, len(template))
	for _, t := range template {
		parts = append(parts, compare.Stringify(g.Field(t.Name).Raw()))
	}
	return strings.Join(parts, keySeparator)
}

func field(n domain.Node, name string) domain.Node {
	if g, ok := n.(domain.Group); ok {
		return g.Field(name)
	}
	return domain.Absent{}
}

func listOf(n domain.Node) (domain.List, bool) {
	switch t := n.(type) {
	case domain.List:
		return t, true
	case domain.Absent:
		return domain.List{}, true
	default:
		return domain.List{}, false
	}
}

func groupLike(n domain.Node) bool {
	switch n.(type) {
	case domain.Group, domain.Absent:
		return true
	default:
		return false
	}
}

func isLeaf(n domain.Node) bool {
	_, ok := n.(domain.Leaf)
	return ok
}

func shape(n domain.Node) string {
	switch n.(type) {
	case domain.Absent:
		return "absent"
	case domain.Leaf:
		return "scalar"
	case domain.Group:
		return "object"
	case domain.List:
		return "list"
	default:
		return fmt.Sprintf("%T", n)
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

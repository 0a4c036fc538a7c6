package ports

import "context"

// JudgeRequest is the context handed to a semantic judge for one attribute.
// Missing values are nil.
type JudgeRequest struct {
	DocumentClass        string
	AttributeName        string
	AttributeDescription string
	Expected             any
	Actual               any
	Threshold            float64
}

// JudgeResult is a judge's decision. Score is expected to be in [0, 1];
// callers clamp it.
type JudgeResult struct {
	Match  bool
	Score  float64
	Reason string
}

// Judge decides whether an extracted value is semantically equivalent to
// the expected one. Implementations may call out to a language model; the
// evaluator treats any error as an attribute-level failure.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (JudgeResult, error)
}

// JudgeFunc adapts a plain function to the Judge interface.
type JudgeFunc func(ctx context.Context, req JudgeRequest) (JudgeResult, error)

// Judge calls f.
func (f JudgeFunc) Judge(ctx context.Context, req JudgeRequest) (JudgeResult, error) {
	return f(ctx, req)
}

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/docgavel/internal/ports"
)

// MockCoreLLM is a scripted CoreLLM used to exercise middleware and the
// client without network access.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration.
	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int
	// AlternateErrors fails every even-numbered call.
	AlternateErrors bool

	// Tracking.
	CallCount      int
	LastRequest    ports.InvokeRequest
	CallTimestamps []time.Time
}

// NewMockCoreLLM creates a mock that succeeds with "test response".
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements CoreLLM. Failures without a configured Error are
// reported as ports.ErrServiceUnavailable so they count as transient.
func (m *MockCoreLLM) DoRequest(ctx context.Context, req ports.InvokeRequest) (ports.InvokeResult, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastRequest = req
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ports.InvokeResult{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		return ports.InvokeResult{}, m.failure("simulated failure")
	}
	if m.AlternateErrors && call%2 == 0 {
		return ports.InvokeResult{}, m.failure("alternating failure")
	}
	if m.Error != nil {
		return ports.InvokeResult{}, m.Error
	}

	return ports.InvokeResult{Text: m.Response, TokensIn: m.TokensIn, TokensOut: m.TokensOut}, nil
}

func (m *MockCoreLLM) failure(msg string) error {
	if m.Error != nil {
		return m.Error
	}
	return fmt.Errorf("%s: %w", msg, ports.ErrServiceUnavailable)
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// GetCallCount returns the number of times DoRequest was called.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetLastRequest returns the most recent request.
func (m *MockCoreLLM) GetLastRequest() ports.InvokeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequest
}

// GetTimeBetweenCalls returns the time between two recorded calls, or nil
// when either index is out of range.
func (m *MockCoreLLM) GetTimeBetweenCalls(call1, call2 int) *time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call1 < 0 || call2 < 0 || call1 >= len(m.CallTimestamps) || call2 >= len(m.CallTimestamps) {
		return nil
	}
	d := m.CallTimestamps[call2].Sub(m.CallTimestamps[call1])
	return &d
}

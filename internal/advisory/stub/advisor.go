package stub

import (
	"context"
	"errors"
	"sync"

	"trade-signal-lab/internal/advisory"
)

// Advisor implements advisory.Advisor for testing. Responses are
// scripted and calls are recorded.
type Advisor struct {
	mu sync.Mutex

	Suggestion *advisory.Suggestion
	Err        error

	Reports []advisory.PerformanceReport
}

var _ advisory.Advisor = (*Advisor)(nil)

// NewAdvisor creates a stub advisor returning the given suggestion.
func NewAdvisor(suggestion *advisory.Suggestion) *Advisor {
	return &Advisor{Suggestion: suggestion}
}

// Suggest records the report and returns the scripted response.
func (a *Advisor) Suggest(_ context.Context, report advisory.PerformanceReport) (*advisory.Suggestion, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Reports = append(a.Reports, report)
	if a.Err != nil {
		return nil, a.Err
	}
	if a.Suggestion == nil {
		return nil, errors.New("no suggestion scripted")
	}
	return a.Suggestion, nil
}

package llm

import (
	"sync"
)

// estimated blended price per 1K tokens, used only for the accounting
// snapshot; real billing lives with the providers.
const costPer1KTokens = 0.002

// BackendUsage is the per-backend slice of a usage snapshot.
type BackendUsage struct {
	Calls            int64   `json:"calls"`
	Failures         int64   `json:"failures"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// UsageSnapshot is a read-only copy of the accounting state.
type UsageSnapshot struct {
	Backends      map[string]BackendUsage `json:"backends"`
	TotalTokens   int64                   `json:"total_tokens"`
	EstimatedCost float64                 `json:"estimated_cost"`
	FallbackCalls int64                   `json:"fallback_calls"`
}

// UsageTracker accumulates token counts and per-backend call counts.
// Process-wide state; all access goes through the mutex.
type UsageTracker struct {
	mu       sync.Mutex
	backends map[string]*BackendUsage
	fallback int64
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{backends: make(map[string]*BackendUsage)}
}

// RecordCall accounts one successful backend call.
func (t *UsageTracker) RecordCall(backend string, promptTokens, completionTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.get(backend)
	u.Calls++
	u.PromptTokens += int64(promptTokens)
	u.CompletionTokens += int64(completionTokens)
	u.EstimatedCost += float64(promptTokens+completionTokens) / 1000 * costPer1KTokens
}

// RecordFailure accounts one failed backend call.
func (t *UsageTracker) RecordFailure(backend string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.get(backend).Failures++
}

// RecordFallback accounts one generate call served by a non-primary backend.
func (t *UsageTracker) RecordFallback() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fallback++
}

func (t *UsageTracker) get(backend string) *BackendUsage {
	u, ok := t.backends[backend]
	if !ok {
		u = &BackendUsage{}
		t.backends[backend] = u
	}
	return u
}

// Snapshot returns a copy of the current accounting state.
func (t *UsageTracker) Snapshot() UsageSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := UsageSnapshot{
		Backends:      make(map[string]BackendUsage, len(t.backends)),
		FallbackCalls: t.fallback,
	}
	for name, u := range t.backends {
		snap.Backends[name] = *u
		snap.TotalTokens += u.PromptTokens + u.CompletionTokens
		snap.EstimatedCost += u.EstimatedCost
	}
	return snap
}

// Reset clears all accounting state.
func (t *UsageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backends = make(map[string]*BackendUsage)
	t.fallback = 0
}

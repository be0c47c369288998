package llm

import (
	"context"
	"sync"
	"time"

	"sermon-search-api/pkg/metrics"
)

// SlidingWindow is the process-wide self-throttle shared by every caller
// of the generation client. It bounds requests and tokens per window; a
// caller over the limit blocks until the window frees capacity instead of
// failing. All mutation happens under one mutex, so cancelling a blocked
// caller never corrupts the counters.
type SlidingWindow struct {
	mu      sync.Mutex
	events  []windowEvent
	nextSeq uint64

	maxRequests int
	maxTokens   int
	window      time.Duration

	now func() time.Time
}

type windowEvent struct {
	seq    uint64
	at     time.Time
	tokens int
}

// Reservation identifies one admitted request so the caller that made
// it can correct its token count once actual usage is known, without
// racing other callers' entries.
type Reservation struct {
	w   *SlidingWindow
	seq uint64
}

// Adjust replaces the reservation's estimated tokens with actual usage.
// A reservation that already slid out of the window is a no-op.
func (r *Reservation) Adjust(actualTokens int) {
	if r == nil {
		return
	}
	if actualTokens < 0 {
		actualTokens = 0
	}
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for i := len(r.w.events) - 1; i >= 0; i-- {
		if r.w.events[i].seq == r.seq {
			r.w.events[i].tokens = actualTokens
			return
		}
	}
}

// NewSlidingWindow creates a limiter. Non-positive limits disable that
// dimension.
func NewSlidingWindow(maxRequests, maxTokens int, window time.Duration) *SlidingWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{
		maxRequests: maxRequests,
		maxTokens:   maxTokens,
		window:      window,
		now:         time.Now,
	}
}

// Acquire blocks until the window admits one request of the estimated
// token size, then records it and returns its reservation. Returns
// early only on context cancellation.
func (w *SlidingWindow) Acquire(ctx context.Context, estimatedTokens int) (*Reservation, error) {
	start := time.Now()
	for {
		res, wait, ok := w.tryAcquire(estimatedTokens)
		if ok {
			if blocked := time.Since(start); blocked > 0 {
				metrics.LLMThrottleWait.Observe(blocked.Seconds())
			}
			return res, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire admits the call if capacity exists, otherwise returns how
// long to wait before the oldest event leaves the window.
func (w *SlidingWindow) tryAcquire(estimatedTokens int) (*Reservation, time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)

	usedTokens := 0
	for _, e := range w.events {
		usedTokens += e.tokens
	}

	overRequests := w.maxRequests > 0 && len(w.events)+1 > w.maxRequests
	overTokens := w.maxTokens > 0 && usedTokens+estimatedTokens > w.maxTokens
	if (overRequests || overTokens) && len(w.events) > 0 {
		wait := w.events[0].at.Add(w.window).Sub(now)
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		return nil, wait, false
	}

	w.nextSeq++
	w.events = append(w.events, windowEvent{seq: w.nextSeq, at: now, tokens: estimatedTokens})
	return &Reservation{w: w, seq: w.nextSeq}, 0, true
}

func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.events) && !w.events[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = w.events[i:]
	}
}

// InFlight returns the current request and token counts inside the window.
func (w *SlidingWindow) InFlight() (requests, tokens int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(w.now())
	for _, e := range w.events {
		tokens += e.tokens
	}
	return len(w.events), tokens
}

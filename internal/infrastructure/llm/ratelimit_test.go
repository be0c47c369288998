package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAcquire(t *testing.T, w *SlidingWindow, tokens int) *Reservation {
	t.Helper()
	res, err := w.Acquire(context.Background(), tokens)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestSlidingWindowAdmitsUnderLimit(t *testing.T) {
	w := NewSlidingWindow(5, 1000, time.Minute)

	start := time.Now()
	for i := 0; i < 5; i++ {
		mustAcquire(t, w, 100)
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	requests, tokens := w.InFlight()
	assert.Equal(t, 5, requests)
	assert.Equal(t, 500, tokens)
}

func TestSlidingWindowBlocksUntilCapacityFrees(t *testing.T) {
	w := NewSlidingWindow(2, 0, 100*time.Millisecond)

	mustAcquire(t, w, 1)
	mustAcquire(t, w, 1)

	start := time.Now()
	mustAcquire(t, w, 1)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSlidingWindowBlocksOnTokenBudget(t *testing.T) {
	w := NewSlidingWindow(0, 100, 100*time.Millisecond)

	mustAcquire(t, w, 90)

	start := time.Now()
	mustAcquire(t, w, 20)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSlidingWindowCancellation(t *testing.T) {
	w := NewSlidingWindow(1, 0, time.Minute)
	mustAcquire(t, w, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := w.Acquire(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, res)

	// Cancellation must not leave a phantom reservation behind.
	requests, _ := w.InFlight()
	assert.Equal(t, 1, requests)
}

func TestSlidingWindowAdjustCorrectsReservation(t *testing.T) {
	w := NewSlidingWindow(0, 1000, time.Minute)

	res := mustAcquire(t, w, 500)
	res.Adjust(120)

	_, tokens := w.InFlight()
	assert.Equal(t, 120, tokens)
}

func TestSlidingWindowAdjustTargetsOwnReservation(t *testing.T) {
	w := NewSlidingWindow(0, 1000, time.Minute)

	first := mustAcquire(t, w, 300)
	second := mustAcquire(t, w, 200)

	// Correcting the older reservation must not rewrite the newer one.
	first.Adjust(50)

	_, tokens := w.InFlight()
	assert.Equal(t, 250, tokens)

	second.Adjust(10)
	_, tokens = w.InFlight()
	assert.Equal(t, 60, tokens)
}

func TestSlidingWindowAdjustAfterPruneIsNoOp(t *testing.T) {
	w := NewSlidingWindow(0, 1000, time.Minute)
	now := time.Now()
	w.now = func() time.Time { return now }

	res := mustAcquire(t, w, 300)

	now = now.Add(2 * time.Minute)
	mustAcquire(t, w, 100)
	res.Adjust(50)

	_, tokens := w.InFlight()
	assert.Equal(t, 100, tokens)
}

func TestSlidingWindowConcurrentAcquire(t *testing.T) {
	w := NewSlidingWindow(100, 0, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Acquire(context.Background(), 1)
		}()
	}
	wg.Wait()

	requests, _ := w.InFlight()
	assert.Equal(t, 50, requests)
}

func TestSlidingWindowConcurrentAdjust(t *testing.T) {
	w := NewSlidingWindow(0, 10000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := w.Acquire(context.Background(), 100)
			assert.NoError(t, err)
			res.Adjust(10)
		}()
	}
	wg.Wait()

	// Every caller corrected exactly its own entry.
	requests, tokens := w.InFlight()
	assert.Equal(t, 20, requests)
	assert.Equal(t, 200, tokens)
}

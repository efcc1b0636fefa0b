package usage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetention_RunsImmediatelyAndOnTick(t *testing.T) {
	var calls atomic.Int32
	r := startRetention(3, 10*time.Millisecond, func(context.Context, time.Time) (int64, error) {
		calls.Add(1)
		return 1, nil
	})

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	r.halt()
	r.halt()

	stopped := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), stopped+1)
}

func TestRetention_DisabledNeverPrunes(t *testing.T) {
	called := false
	r := startRetention(0, time.Millisecond, func(context.Context, time.Time) (int64, error) {
		called = true
		return 0, nil
	})
	r.run(time.Now())
	r.halt()
	assert.False(t, called)
}

func TestRetention_Cutoff(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	var got time.Time
	r := &retention{days: 30, prune: func(_ context.Context, cutoff time.Time) (int64, error) {
		got = cutoff
		return 0, errors.New("ignored")
	}}
	r.run(now)

	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), got)
}

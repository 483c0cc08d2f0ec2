package healing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/pulse/internal/domain"
	"github.com/pulsefit/pulse/internal/infra/clock"
)

var t0 = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestBreaker(clk domain.Clock) *Breaker {
	return NewBreaker("test", BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     10 * time.Second,
		HalfOpenMax:      2,
	}, clk)
}

// ─── Breaker ────────────────────────────────────────────────────────────────

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "half_open", HalfOpen.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{}, clock.NewManual(t0))
	assert.Equal(t, DefaultBreakerConfig(), b.cfg)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := newTestBreaker(clock.NewManual(t0))
	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
	assert.Equal(t, 1, b.Trips())
}

func TestBreaker_SuccessClearsFailures(t *testing.T) {
	b := newTestBreaker(clock.NewManual(t0))
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State(), "failures must be consecutive")
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	clk := clock.NewManual(t0)
	b := newTestBreaker(clk)
	for range 3 {
		b.RecordFailure()
	}
	require.Equal(t, Open, b.State())

	clk.Advance(10 * time.Second)
	assert.Equal(t, HalfOpen, b.State())
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, HalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := clock.NewManual(t0)
	b := newTestBreaker(clk)
	for range 3 {
		b.RecordFailure()
	}
	clk.Advance(11 * time.Second)
	require.Equal(t, HalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.Equal(t, 2, b.Trips())
}

func TestBreaker_Reset(t *testing.T) {
	b := newTestBreaker(clock.NewManual(t0))
	for range 3 {
		b.RecordFailure()
	}
	b.Reset()
	assert.Equal(t, Closed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_Concurrent(t *testing.T) {
	b := newTestBreaker(clock.NewManual(t0))
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				b.RecordFailure()
			} else {
				b.RecordSuccess()
			}
			_ = b.Allow()
		}()
	}
	wg.Wait()
	_ = b.State()
}

// ─── GuardedStore ───────────────────────────────────────────────────────────

var errDown = errors.New("backend down")

type flakyBackend struct {
	mu    sync.Mutex
	data  map[string][]byte
	down  bool
	calls int
}

func newFlaky() *flakyBackend { return &flakyBackend{data: map[string][]byte{}} }

func (f *flakyBackend) setDown(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = v
}

func (f *flakyBackend) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return nil, errDown
	}
	v, ok := f.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (f *flakyBackend) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return errDown
	}
	f.data[key] = value
	return nil
}

func (f *flakyBackend) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return errDown
	}
	delete(f.data, key)
	return nil
}

func (f *flakyBackend) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errDown
	}
	return nil
}

func (f *flakyBackend) Close() error { return nil }

func TestGuardedStore_PassThrough(t *testing.T) {
	ctx := context.Background()
	g := Guard(newFlaky(), newTestBreaker(clock.NewManual(t0)))

	_, err := g.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, g.Set(ctx, "k", []byte("v")))
	v, err := g.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
	require.NoError(t, g.Remove(ctx, "k"))
	assert.Equal(t, Closed, g.Breaker().State(), "not-found is not a failure")
}

func TestGuardedStore_FailsFastWhenOpen(t *testing.T) {
	ctx := context.Background()
	backend := newFlaky()
	clk := clock.NewManual(t0)
	g := Guard(backend, newTestBreaker(clk))

	backend.setDown(true)
	for range 3 {
		assert.ErrorIs(t, g.Set(ctx, "k", []byte("v")), errDown)
	}
	require.Equal(t, Open, g.Breaker().State())

	calls := backend.calls
	err := g.Set(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, calls, backend.calls, "open breaker must not reach the backend")
}

func TestGuardedStore_PingClosesAfterRecovery(t *testing.T) {
	ctx := context.Background()
	backend := newFlaky()
	clk := clock.NewManual(t0)
	g := Guard(backend, NewBreaker("store", BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second, HalfOpenMax: 1}, clk))

	backend.setDown(true)
	_ = g.Set(ctx, "k", nil)
	require.Equal(t, Open, g.Breaker().State())

	backend.setDown(false)
	assert.ErrorIs(t, g.Ping(ctx), ErrCircuitOpen, "still open before the timeout")

	clk.Advance(time.Second)
	require.NoError(t, g.Ping(ctx))
	assert.Equal(t, Closed, g.Breaker().State())
	assert.NoError(t, g.Set(ctx, "k", []byte("v")))
}

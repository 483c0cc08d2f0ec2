package healing

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pulsefit/pulse/internal/domain"
)

// Backend is a store the daemon can ping and close.
type Backend interface {
	domain.Store
	domain.Pinger
	io.Closer
}

// GuardedStore wraps a Backend with a Breaker. While the breaker is open,
// reads and writes fail immediately with domain.ErrStoreUnavailable.
type GuardedStore struct {
	Backend
	breaker *Breaker
}

// Guard wraps backend with breaker.
func Guard(backend Backend, breaker *Breaker) *GuardedStore {
	return &GuardedStore{Backend: backend, breaker: breaker}
}

// Breaker returns the guarding breaker.
func (g *GuardedStore) Breaker() *Breaker { return g.breaker }

// Get reads key. A missing key counts as a healthy call.
func (g *GuardedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := g.allow(); err != nil {
		return nil, err
	}
	b, err := g.Backend.Get(ctx, key)
	g.record(err)
	return b, err
}

// Set writes key.
func (g *GuardedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := g.allow(); err != nil {
		return err
	}
	err := g.Backend.Set(ctx, key, value)
	g.record(err)
	return err
}

// Remove deletes key.
func (g *GuardedStore) Remove(ctx context.Context, key string) error {
	if err := g.allow(); err != nil {
		return err
	}
	err := g.Backend.Remove(ctx, key)
	g.record(err)
	return err
}

// Ping checks the backend directly and feeds the result to the breaker,
// so health checks can close it again once the backend recovers.
func (g *GuardedStore) Ping(ctx context.Context) error {
	err := g.Backend.Ping(ctx)
	if g.breaker.State() != Open {
		g.record(err)
	}
	if err == nil && g.breaker.State() == Open {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, ErrCircuitOpen)
	}
	return err
}

func (g *GuardedStore) allow() error {
	if err := g.breaker.Allow(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (g *GuardedStore) record(err error) {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		g.breaker.RecordSuccess()
		return
	}
	g.breaker.RecordFailure()
}

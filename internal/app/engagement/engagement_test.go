package engagement_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/pulsefit/pulse/internal/app/engagement"
	"github.com/pulsefit/pulse/internal/domain"
	"github.com/pulsefit/pulse/internal/infra/clock"
)

// day0 is a fixed mid-morning reference time.
var day0 = time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

func dayN(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

func intPtr(v int) *int { return &v }

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

// memStore is an in-memory domain.Store with injectable failures.
type memStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	sets     int
	failSets int // fail this many upcoming Set calls; <0 fails forever
	failGet  bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

var errDiskFull = errors.New("disk full")

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errDiskFull
	}
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.failSets != 0 {
		if m.failSets > 0 {
			m.failSets--
		}
		return errDiskFull
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func newTracker(t *testing.T, store domain.Store, clk domain.Clock) *engagement.Tracker {
	t.Helper()
	tr := engagement.NewTracker(engagement.TrackerOptions{
		UserKey: "tester",
		Store:   store,
		Clock:   clk,
		Rand:    seeded(),
	})
	tr.Load(context.Background())
	return tr
}

func newAchievements(t *testing.T) (*engagement.AchievementEngine, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(day0)
	return engagement.NewAchievementEngine(clk, nil), clk
}

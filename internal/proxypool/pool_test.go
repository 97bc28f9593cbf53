package proxypool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fincrawl/guba-harvester/internal/harvest"
)

type fakeProvider struct {
	name       string
	candidates []string
	err        error
	calls      atomic.Int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Fetch(context.Context, int) ([]string, error) {
	p.calls.Add(1)
	return p.candidates, p.err
}

type fakeVerifier struct {
	score  int
	reject map[string]bool
}

func (v *fakeVerifier) Verify(_ context.Context, endpoint string) (int, bool) {
	if v.reject[endpoint] {
		return 0, false
	}
	return v.score, true
}

func newTestPool(t *testing.T, cfg Config, providers []Provider, verifier Verifier) (*Pool, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return New(cfg, store, providers, verifier, nil), store
}

func TestUpdateScore_ClampAndEvict(t *testing.T) {
	t.Parallel()

	pool, store := newTestPool(t, Config{MinThreshold: 1}, nil, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "http://1.1.1.1:80", 98))
	pool.UpdateScore("http://1.1.1.1:80", true)
	scores, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, scores["http://1.1.1.1:80"])

	// Seven failures from 100 cross the floor: 100 → 30 after seven
	// -10 steps, and the next one evicts.
	for i := 0; i < 8; i++ {
		pool.UpdateScore("http://1.1.1.1:80", false)
		scores, err = store.GetAll(ctx)
		require.NoError(t, err)
		for _, score := range scores {
			require.GreaterOrEqual(t, score, 0)
			require.LessOrEqual(t, score, 100)
			require.GreaterOrEqual(t, score, scoreFloor)
		}
	}
	require.NotContains(t, scores, "http://1.1.1.1:80")
}

func TestUpdateScore_UnknownEndpointIsNoop(t *testing.T) {
	t.Parallel()

	pool, store := newTestPool(t, Config{}, nil, nil)
	pool.UpdateScore("http://9.9.9.9:80", false)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReleaseBad_RemovesUnconditionally(t *testing.T) {
	t.Parallel()

	pool, store := newTestPool(t, Config{}, nil, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "http://1.1.1.1:80", 100))

	pool.ReleaseBad("http://1.1.1.1:80")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAcquire_NeverReturnsBelowFloor(t *testing.T) {
	t.Parallel()

	pool, store := newTestPool(t, Config{MinThreshold: 1}, nil, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "http://1.1.1.1:80", 90))
	require.NoError(t, store.Set(ctx, "http://2.2.2.2:80", 45))

	// Drive the weaker endpoint below the floor; it must vanish.
	pool.UpdateScore("http://2.2.2.2:80", false)
	pool.UpdateScore("http://2.2.2.2:80", false)

	for i := 0; i < 20; i++ {
		endpoint, err := pool.Acquire(ctx)
		require.NoError(t, err)
		require.Equal(t, "http://1.1.1.1:80", endpoint)
	}
}

func TestAcquire_PrefersTopHalfWhenPoolIsLarge(t *testing.T) {
	t.Parallel()

	pool, store := newTestPool(t, Config{MinThreshold: 1}, nil, nil)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("http://10.0.0.%d:80", i), 90+i))
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("http://10.0.1.%d:80", i), 40+i))
	}

	for i := 0; i < 50; i++ {
		endpoint, err := pool.Acquire(ctx)
		require.NoError(t, err)
		require.Contains(t, endpoint, "http://10.0.0.", "low-score half must not be selected")
	}
}

func TestAcquire_EmptyPoolAfterFailedRefill(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{name: "empty"}
	pool, _ := newTestPool(t, Config{MinThreshold: 2}, []Provider{provider}, &fakeVerifier{score: 80})

	_, err := pool.Acquire(context.Background())
	require.ErrorIs(t, err, harvest.ErrPoolExhausted)
	require.EqualValues(t, 1, provider.calls.Load())
}

func TestAcquire_TriggersRefillBelowThreshold(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		name:       "src",
		candidates: []string{"1.1.1.1:80", "2.2.2.2:80", "3.3.3.3:80"},
	}
	pool, store := newTestPool(t, Config{MinThreshold: 2, TargetCount: 3}, []Provider{provider}, &fakeVerifier{score: 75})

	endpoint, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, endpoint)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 2)
}

func TestRefill_SingleFlightUnderConcurrency(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		name: "src",
		candidates: []string{
			"1.1.1.1:80", "2.2.2.2:80", "3.3.3.3:80", "4.4.4.4:80", "5.5.5.5:80",
		},
	}
	pool, _ := newTestPool(t, Config{MinThreshold: 3, TargetCount: 5}, []Provider{provider}, &fakeVerifier{score: 70})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pool.Acquire(context.Background())
		}()
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("acquirers deadlocked on refill gate")
	}

	// The gate plus re-check must collapse 16 concurrent acquirers
	// into one provider sweep.
	require.EqualValues(t, 1, provider.calls.Load())
}

func TestRefill_SkipsRejectedAndDuplicateCandidates(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		name:       "src",
		candidates: []string{"1.1.1.1:80", "1.1.1.1:80", "2.2.2.2:80"},
	}
	verifier := &fakeVerifier{score: 80, reject: map[string]bool{"http://2.2.2.2:80": true}}
	pool, store := newTestPool(t, Config{MinThreshold: 5, TargetCount: 5}, []Provider{provider}, verifier)

	require.NoError(t, pool.Refill(context.Background()))

	scores, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int{"http://1.1.1.1:80": 80}, scores)
}

func TestLatencyScore(t *testing.T) {
	t.Parallel()

	require.Equal(t, 100, LatencyScore(0))
	require.Equal(t, 90, LatencyScore(500*time.Millisecond))
	require.Equal(t, 80, LatencyScore(time.Second))
	require.Equal(t, 50, LatencyScore(3*time.Second))
	require.Equal(t, 50, LatencyScore(10*time.Second))
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://1.2.3.4:8080", NormalizeEndpoint("1.2.3.4:8080"))
	require.Equal(t, "http://1.2.3.4:8080", NormalizeEndpoint(" 1.2.3.4：8080 "))
	require.Equal(t, "http://1.2.3.4:8080", NormalizeEndpoint("http://1.2.3.4:8080"))
}

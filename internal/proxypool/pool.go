package proxypool

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/harvest"
	"github.com/fincrawl/guba-harvester/internal/metrics"
)

// scoreFloor is the eviction threshold: any record scored below it is
// removed from the pool immediately.
const scoreFloor = 30

// Config sizes one pool.
type Config struct {
	// MinThreshold triggers a synchronous refill when the pool drains
	// below it.
	MinThreshold int
	// TargetCount is how far a refill tries to fill the pool.
	TargetCount int
	// MaxCount halts candidate admission; the pool never grows past it.
	MaxCount int
	// VerifyWorkers bounds concurrent candidate verification.
	VerifyWorkers int
}

func (c *Config) applyDefaults() {
	if c.MinThreshold <= 0 {
		c.MinThreshold = 5
	}
	if c.TargetCount <= 0 {
		c.TargetCount = 20
	}
	if c.MaxCount <= 0 {
		c.MaxCount = 100
	}
	if c.VerifyWorkers <= 0 {
		c.VerifyWorkers = 30
	}
}

// Pool implements harvest.ProxyPool over a Store, a set of candidate
// Providers and a Verifier. All pool state lives in the Store; the Pool
// itself holds no endpoint data, so several components of one process
// share a Pool safely and several processes can share a Redis Store.
type Pool struct {
	cfg       Config
	store     Store
	providers []Provider
	verifier  Verifier
	logger    *zap.Logger

	// refillMu is the single gate for the refill decision. The store is
	// synchronized on its own; this mutex only prevents a thundering
	// herd of concurrent refills when many fetchers hit an empty pool.
	refillMu sync.Mutex
}

// New builds a Pool. Providers are tried in order on refill.
func New(cfg Config, store Store, providers []Provider, verifier Verifier, logger *zap.Logger) *Pool {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:       cfg,
		store:     store,
		providers: providers,
		verifier:  verifier,
		logger:    logger.Named("proxypool"),
	}
}

// Acquire implements harvest.ProxyPool. When the pool has drained below
// its threshold the caller performs a refill first; concurrent callers
// queue on the refill gate and re-check the count once inside, so only
// one of them actually refills.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	count, err := p.store.Count(ctx)
	if err != nil {
		return "", err
	}
	if count < p.cfg.MinThreshold {
		p.logger.Warn("pool below threshold, refilling",
			zap.Int("count", count),
			zap.Int("min_threshold", p.cfg.MinThreshold),
		)
		if err := p.refillGated(ctx); err != nil {
			p.logger.Warn("refill failed", zap.Error(err))
		}
	}

	scores, err := p.store.GetAll(ctx)
	if err != nil {
		return "", err
	}
	endpoint, ok := pick(scores)
	if !ok {
		return "", harvest.ErrPoolExhausted
	}
	return endpoint, nil
}

// ReleaseBad implements harvest.ProxyPool: unconditional removal.
func (p *Pool) ReleaseBad(endpoint string) {
	ctx := context.Background()
	if err := p.store.Delete(ctx, endpoint); err != nil {
		p.logger.Warn("release failed", zap.String("endpoint", endpoint), zap.Error(err))
		return
	}
	metrics.ProxyEvicted("hard_failure")
	p.observeSize(ctx)
}

// UpdateScore implements harvest.ProxyPool: +5 on success capped at
// 100, -10 on failure floored at 0; a result below the floor evicts.
func (p *Pool) UpdateScore(endpoint string, success bool) {
	ctx := context.Background()
	delta := -10
	if success {
		delta = 5
	}
	score, ok, err := p.store.Adjust(ctx, endpoint, delta)
	if err != nil {
		p.logger.Warn("score update failed", zap.String("endpoint", endpoint), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if score < scoreFloor {
		if err := p.store.Delete(ctx, endpoint); err != nil {
			p.logger.Warn("evict failed", zap.String("endpoint", endpoint), zap.Error(err))
			return
		}
		metrics.ProxyEvicted("low_score")
		p.logger.Info("evicted low-score proxy",
			zap.String("endpoint", endpoint),
			zap.Int("score", score),
		)
		p.observeSize(ctx)
	}
}

// Len implements harvest.ProxyPool.
func (p *Pool) Len() int {
	n, err := p.store.Count(context.Background())
	if err != nil {
		return 0
	}
	return n
}

// Refill pulls candidates from every provider, verifies them
// concurrently against the target site and admits the survivors until
// the target (or the hard max) is reached. Zero candidates from every
// provider is reported, not fatal: the pool stays as it is.
func (p *Pool) Refill(ctx context.Context) error {
	p.refillMu.Lock()
	defer p.refillMu.Unlock()

	count, err := p.store.Count(ctx)
	if err != nil {
		return err
	}
	if count >= p.cfg.TargetCount {
		return nil
	}
	return p.refillLocked(ctx, count)
}

func (p *Pool) refillGated(ctx context.Context) error {
	p.refillMu.Lock()
	defer p.refillMu.Unlock()

	// Re-check under the gate: a caller that queued behind an active
	// refill usually finds the pool full again.
	count, err := p.store.Count(ctx)
	if err != nil {
		return err
	}
	if count >= p.cfg.MinThreshold {
		return nil
	}
	return p.refillLocked(ctx, count)
}

func (p *Pool) refillLocked(ctx context.Context, current int) error {
	metrics.PoolRefill()

	candidates := p.collectCandidates(ctx)
	if len(candidates) == 0 {
		p.logger.Warn("refill produced no candidates")
		return nil
	}

	existing, err := p.store.GetAll(ctx)
	if err != nil {
		return err
	}
	fresh := candidates[:0]
	for _, candidate := range candidates {
		if _, dup := existing[candidate]; !dup {
			fresh = append(fresh, candidate)
		}
	}
	p.logger.Info("verifying refill candidates",
		zap.Int("current", current),
		zap.Int("target", p.cfg.TargetCount),
		zap.Int("candidates", len(fresh)),
	)

	verifyCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type verified struct {
		endpoint string
		score    int
	}
	jobs := make(chan string)
	results := make(chan verified)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.VerifyWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				score, ok := p.verifier.Verify(verifyCtx, endpoint)
				if !ok {
					continue
				}
				select {
				case results <- verified{endpoint: endpoint, score: score}:
				case <-verifyCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, endpoint := range fresh {
			select {
			case jobs <- endpoint:
			case <-verifyCtx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	added := 0
	for v := range results {
		if err := p.store.Set(ctx, v.endpoint, v.score); err != nil {
			p.logger.Warn("store candidate failed", zap.String("endpoint", v.endpoint), zap.Error(err))
			continue
		}
		added++
		count, err := p.store.Count(ctx)
		if err == nil && (count >= p.cfg.TargetCount || count >= p.cfg.MaxCount) {
			cancel()
			break
		}
	}
	// Drain so the workers can finish after an early stop.
	for range results {
	}

	p.observeSize(ctx)
	p.logger.Info("refill finished", zap.Int("added", added), zap.Int("pool_size", p.Len()))
	return nil
}

func (p *Pool) collectCandidates(ctx context.Context) []string {
	var (
		mu  sync.Mutex
		all []string
		wg  sync.WaitGroup
	)
	seen := make(map[string]struct{})
	for _, provider := range p.providers {
		wg.Add(1)
		go func(src Provider) {
			defer wg.Done()
			raw, err := src.Fetch(ctx, p.cfg.MaxCount)
			if err != nil {
				p.logger.Warn("provider failed", zap.String("provider", src.Name()), zap.Error(err))
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, candidate := range raw {
				endpoint := NormalizeEndpoint(candidate)
				if _, dup := seen[endpoint]; dup {
					continue
				}
				seen[endpoint] = struct{}{}
				all = append(all, endpoint)
			}
			p.logger.Debug("provider returned candidates",
				zap.String("provider", src.Name()),
				zap.Int("count", len(raw)),
			)
		}(provider)
	}
	wg.Wait()
	return all
}

// Snapshot returns all endpoints sorted by descending score, for the
// ops endpoint and the pool CLI.
func (p *Pool) Snapshot(ctx context.Context) ([]harvest.ProxyRecord, error) {
	scores, err := p.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]harvest.ProxyRecord, 0, len(scores))
	for endpoint, score := range scores {
		records = append(records, harvest.ProxyRecord{Endpoint: endpoint, Score: score})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Score > records[j].Score })
	return records, nil
}

func (p *Pool) observeSize(ctx context.Context) {
	if n, err := p.store.Count(ctx); err == nil {
		metrics.SetPoolSize(n)
	}
}

// pick selects an endpoint weighted toward reliability: uniform over
// the top half by score when more than 10 endpoints are pooled, else
// uniform over all of them.
func pick(scores map[string]int) (string, bool) {
	if len(scores) == 0 {
		return "", false
	}
	ranked := make([]string, 0, len(scores))
	for endpoint := range scores {
		ranked = append(ranked, endpoint)
	}
	sort.Slice(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })

	if len(ranked) > 10 {
		half := len(ranked) / 2
		if half < 1 {
			half = 1
		}
		ranked = ranked[:half]
	}
	return ranked[rand.Intn(len(ranked))], true
}

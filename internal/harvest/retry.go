package harvest

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Classifier decides whether an error is worth another attempt.
type Classifier func(err error) bool

// BackoffSchedule describes an exponential backoff with clamping.
// Delay for attempt n (0-based) is Base*2^n clamped to [Min, Max],
// plus up to Jitter of random noise.
type BackoffSchedule struct {
	Attempts int
	Base     time.Duration
	Min      time.Duration
	Max      time.Duration
	Jitter   time.Duration
}

// PageBackoff is the per-page retry schedule used by the orchestrator.
func PageBackoff() BackoffSchedule {
	return BackoffSchedule{
		Attempts: 5,
		Base:     time.Second,
		Min:      2 * time.Second,
		Max:      4 * time.Second,
	}
}

// ProbeBackoff is the short randomized schedule used by the page-count
// probe.
func ProbeBackoff() BackoffSchedule {
	return BackoffSchedule{
		Attempts: 5,
		Base:     time.Second,
		Min:      time.Second,
		Max:      3 * time.Second,
		Jitter:   2 * time.Second,
	}
}

// Delay returns the wait before attempt+1.
func (s BackoffSchedule) Delay(attempt int) time.Duration {
	d := float64(s.Base) * math.Pow(2, float64(attempt))
	if min := float64(s.Min); d < min {
		d = min
	}
	if max := float64(s.Max); s.Max > 0 && d > max {
		d = max
	}
	return time.Duration(d) + randomJitter(s.Jitter)
}

// Retry runs fn until it succeeds, the classifier rejects its error, or
// the schedule's attempts are spent. The last error is returned; context
// cancellation cuts the wait short.
func Retry(ctx context.Context, s BackoffSchedule, classify Classifier, fn func(ctx context.Context) error) error {
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if classify != nil && !classify(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Delay(attempt)):
		}
	}
	return lastErr
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

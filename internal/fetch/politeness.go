package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostGate spaces out repeat requests to the same remote host. Concurrent
// hits on one host are the primary trigger for anti-abuse blocking, so the
// gate is a correctness requirement, not an optimization.
//
// State is in-memory and reset each run: politeness is a courtesy within a
// run, not a cross-run guarantee.
type HostGate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
	jitter   time.Duration
}

// NewHostGate creates a gate enforcing at least interval between requests
// to one host, plus up to jitter of random extra delay to avoid
// synchronized bursts.
func NewHostGate(interval, jitter time.Duration) *HostGate {
	return &HostGate{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
		jitter:   jitter,
	}
}

// Wait blocks until the host's turn comes up. A host with no prior entry
// passes immediately. Never fails except on context cancellation.
func (g *HostGate) Wait(ctx context.Context, host string) error {
	if host == "" {
		return nil
	}

	g.mu.Lock()
	limiter, seen := g.limiters[host]
	if !seen {
		limiter = rate.NewLimiter(rate.Every(g.interval), 1)
		g.limiters[host] = limiter
	}
	g.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	if seen && g.jitter > 0 {
		select {
		case <-time.After(time.Duration(rand.Int63n(int64(g.jitter)))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

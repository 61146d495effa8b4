package ingest

import (
	"context"
	"sync"
	"time"
)

// DeliveryGuard remembers provider event ids across deliveries.
type DeliveryGuard interface {
	// Claim reports true the first time key is seen.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key after a delivery failed before persistence.
	Release(ctx context.Context, key string) error
}

// MemoryGuard is a process-local DeliveryGuard with a fixed TTL.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryGuard{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, at := range g.seen {
		if now.Sub(at) >= g.ttl {
			delete(g.seen, k)
		}
	}
	if _, exists := g.seen[key]; exists {
		return false, nil
	}
	g.seen[key] = now
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.seen, key)
	g.mu.Unlock()
	return nil
}

package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/resilience"
)

// BreakerStore guards a Store with a circuit breaker. Misses are not
// failures; while the circuit is open every call fails fast.
type BreakerStore struct {
	store Store
	cb    *resilience.CircuitBreaker
}

func NewBreakerStore(store Store, cb *resilience.CircuitBreaker) *BreakerStore {
	return &BreakerStore{store: store, cb: cb}
}

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.cb.ExecuteIgnoring(func() error {
		var err error
		data, err = b.store.Get(ctx, key)
		return err
	}, pkgredis.IsMiss)
	return data, err
}

func (b *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.cb.Execute(func() error {
		return b.store.Set(ctx, key, value, ttl)
	})
}

func (b *BreakerStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := b.cb.Execute(func() error {
		var err error
		n, err = b.store.FlushByPattern(ctx, pattern)
		return err
	})
	return n, err
}

// State reports the breaker state, for health checks.
func (b *BreakerStore) State() resilience.State {
	return b.cb.State()
}

package cache

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/redis"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func plan(q string) *parser.QueryPlan {
	return parser.Parse(q, pipeline.Default())
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemStore(), time.Minute, metrics.New(nil))
	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return &executor.SearchResult{Query: "array", TotalHits: 3}, nil
	}
	ctx := context.Background()

	res, hit, err := c.GetOrCompute(ctx, "fp1", plan("array"), 10, compute)
	if err != nil || hit || res.TotalHits != 3 {
		t.Fatalf("first call = %+v, hit=%v, err=%v", res, hit, err)
	}
	res, hit, err = c.GetOrCompute(ctx, "fp1", plan("  array "), 10, compute)
	if err != nil || !hit || res.TotalHits != 3 {
		t.Fatalf("second call = %+v, hit=%v, err=%v", res, hit, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if _, hit, _ = c.GetOrCompute(ctx, "fp2", plan("array"), 10, compute); hit {
		t.Error("hit across fingerprints")
	}
	if _, hit, _ = c.GetOrCompute(ctx, "fp1", plan("array"), 5, compute); hit {
		t.Error("hit across limits")
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 3 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "fp", plan("x"), 1, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestGetOrComputeSingleflight(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return &executor.SearchResult{TotalHits: 1}, nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(context.Background(), "fp", plan("slice"), 10, compute)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	// late arrivals hit the cache, the rest share the flight
	if n := calls.Load(); n != 1 {
		t.Errorf("compute called %d times, want 1", n)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, Key("fp", plan("a"), 1), &executor.SearchResult{})
	c.Set(ctx, Key("fp", plan("b"), 1), &executor.SearchResult{})
	store.Set(ctx, "other:key", []byte("x"), 0)

	n, err := c.Invalidate(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Invalidate() = %d, %v", n, err)
	}
	if _, err := store.Get(ctx, "other:key"); err != nil {
		t.Error("unrelated key removed")
	}
}

func TestKey(t *testing.T) {
	k := Key("abc", plan("array AND slice"), 10)
	if !strings.HasPrefix(k, "search:abc:") {
		t.Errorf("Key() = %q", k)
	}
	if k == Key("abc", plan("array OR slice"), 10) {
		t.Error("boolean mode not part of the key")
	}
}

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/resilience"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func writeBook(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"SUMMARY.md": "# Summary\n\n- [Arrays](arrays.md)\n- [Slices](slices.md)\n",
		"arrays.md":  "# Arrays\n\nAn array is a fixed-size sequence.\n",
		"slices.md":  "# Slices\n\nA slice is a view into an array.\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newRebuilder(t *testing.T, pub Publisher, m *metrics.Metrics) *Rebuilder {
	t.Helper()
	cfg := config.Default()
	cfg.Book.Title = "Reference"
	cfg.Indexer.OutputFormats = []string{config.FormatJSON, config.FormatCBOR}
	return NewRebuilder(cfg, Options{
		Publisher: pub,
		Metrics:   m,
		Retry:     resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond},
	})
}

func TestRebuild(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(nil)
	r := newRebuilder(t, pub, m)
	out := t.TempDir()

	done, err := r.Rebuild(context.Background(), RebuildRequest{BookDir: writeBook(t), OutputDir: out, RequestedBy: "ci"})
	if err != nil {
		t.Fatalf("Rebuild() error: %v", err)
	}
	if done.Docs != 2 || done.Terms == 0 || done.Fingerprint == "" || done.BuildID == "" {
		t.Errorf("announcement = %+v", done)
	}
	for _, name := range []string{"searchindex.json", "searchindex.cbor"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	si, err := segment.Open(filepath.Join(out, "searchindex.json"))
	if err != nil {
		t.Fatal(err)
	}
	if fp, _ := segment.Fingerprint(si); fp != done.Fingerprint {
		t.Errorf("written fingerprint %s, announced %s", fp, done.Fingerprint)
	}
	if len(pub.events) != 1 || pub.events[0].Key != out {
		t.Fatalf("published = %+v", pub.events)
	}
	if got := testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("succeeded")); got != 1 {
		t.Errorf("builds succeeded = %v", got)
	}
	if got := testutil.ToFloat64(m.IndexDocuments); got != 2 {
		t.Errorf("index_documents = %v", got)
	}
}

func TestRebuildMissingBook(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(nil)
	r := newRebuilder(t, pub, m)
	_, err := r.Rebuild(context.Background(), RebuildRequest{BookDir: filepath.Join(t.TempDir(), "nope"), OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(pub.events) != 0 {
		t.Error("failed build was announced")
	}
	if got := testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("builds failed = %v", got)
	}
}

func TestRebuildPublishRetries(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	r := newRebuilder(t, pub, nil)
	_, err := r.Rebuild(context.Background(), RebuildRequest{BookDir: writeBook(t), OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if len(pub.events) != 2 {
		t.Errorf("publish attempts = %d, want 2", len(pub.events))
	}
}

func TestHandleRebuild(t *testing.T) {
	pub := &fakePublisher{}
	h := HandleRebuild(newRebuilder(t, pub, nil))
	if err := h(context.Background(), nil, []byte("not json")); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("bad message error = %v, want ErrInvalidInput", err)
	}
	value, _ := json.Marshal(RebuildRequest{BookDir: writeBook(t), OutputDir: t.TempDir()})
	if err := h(context.Background(), []byte("k"), value); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(pub.events) != 1 {
		t.Errorf("published %d events", len(pub.events))
	}
}

type reloaderFunc func(ctx context.Context, path string) error

func (f reloaderFunc) Reload(ctx context.Context, path string) error { return f(ctx, path) }

func TestHandleIndexComplete(t *testing.T) {
	var got string
	h := HandleIndexComplete(reloaderFunc(func(_ context.Context, path string) error {
		got = path
		return nil
	}))
	value, _ := json.Marshal(IndexComplete{BuildID: "b1", OutputDir: "/srv/book"})
	if err := h(context.Background(), nil, value); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "/srv/book" {
		t.Errorf("reloaded %q", got)
	}

	failing := HandleIndexComplete(reloaderFunc(func(context.Context, string) error {
		return errors.New("corrupt")
	}))
	if err := failing(context.Background(), nil, value); err == nil {
		t.Error("reload failure should be returned so the message is retried")
	}
}

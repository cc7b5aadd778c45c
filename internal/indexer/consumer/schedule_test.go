package consumer

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerNext(t *testing.T) {
	s, err := NewScheduler("0 */15 * * * *")
	if err != nil {
		t.Fatalf("NewScheduler() error: %v", err)
	}
	from := time.Date(2026, 3, 1, 10, 7, 30, 0, time.UTC)
	want := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	if got := s.Next(from); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestSchedulerInvalid(t *testing.T) {
	if _, err := NewScheduler("whenever"); err == nil {
		t.Error("expected parse error")
	}
}

func TestSchedulerRun(t *testing.T) {
	s, err := NewScheduler("* * * * * * *")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ticks := make(chan struct{}, 1)
	go s.Run(ctx, func(context.Context) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	select {
	case <-ticks:
	case <-ctx.Done():
		t.Fatal("no tick within 3s")
	}
}

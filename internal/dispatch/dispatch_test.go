package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestJobsRunInSubmissionOrder(t *testing.T) {
	q := New(zerolog.Nop(), 4)
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var results []<-chan error
	for i := 0; i < 20; i++ {
		results = append(results, q.Submit(context.Background(), "append", func(context.Context) error {
			// Earlier jobs sleep longer; serial execution still keeps order.
			time.Sleep(time.Duration(20-i) * 100 * time.Microsecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	for _, r := range results {
		if err := <-r; err != nil {
			t.Fatalf("job failed: %v", err)
		}
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestJobsNeverOverlap(t *testing.T) {
	q := New(zerolog.Nop(), 8)
	defer q.Close()

	var running, maxRunning int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Do(context.Background(), "probe", func(context.Context) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxRunning != 1 {
		t.Fatalf("max concurrent jobs = %d, want 1", maxRunning)
	}
}

func TestDoReturnsJobError(t *testing.T) {
	q := New(zerolog.Nop(), 1)
	defer q.Close()

	boom := errors.New("boom")
	err := q.Do(context.Background(), "fail", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestCancelledJobIsSkipped(t *testing.T) {
	q := New(zerolog.Nop(), 1)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := q.Do(ctx, "skip", func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Fatal("cancelled job must not run")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	q := New(zerolog.Nop(), 1)
	q.Close()
	q.Close()

	err := q.Do(context.Background(), "late", func(context.Context) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

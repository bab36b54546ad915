package performance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestWorkerPool_RunVisitsEveryIndex(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Stop()

	out := make([]int, 500)
	if err := pool.Run(context.Background(), len(out), func(i int) {
		out[i] = i * i
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*i)
		}
	}

	stats := pool.Stats()
	if stats.TasksTotal != 500 || stats.TasksDone != 500 {
		t.Errorf("stats = %+v, want 500 submitted and done", stats)
	}
	if !stats.Running || stats.Workers != 4 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWorkerPool_RunZero(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Stop()

	called := false
	if err := pool.Run(context.Background(), 0, func(int) { called = true }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("fn called for empty run")
	}
}

func TestWorkerPool_RunCancelled(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	err := pool.Run(ctx, 10000, func(i int) {
		if calls.Add(1) == 10 {
			cancel()
		}
	})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls.Load() >= 10000 {
		t.Errorf("all %d tasks ran after cancel", calls.Load())
	}
}

func TestWorkerPool_SubmitWhenStopped(t *testing.T) {
	pool := NewWorkerPool(1)
	if pool.Submit(context.Background(), func() {}) {
		t.Error("Submit succeeded on a pool that was never started")
	}

	pool.Start()
	pool.Stop()
	if pool.Submit(context.Background(), func() {}) {
		t.Error("Submit succeeded on a stopped pool")
	}
}

func TestNewWorkerPool_DefaultsToNumCPU(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool.Stats().Workers <= 0 {
		t.Errorf("workers = %d", pool.Stats().Workers)
	}
}

func TestRateLimiter_Burst(t *testing.T) {
	limiter := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if limiter.Allow() {
		t.Error("request allowed after burst exhausted")
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestRateLimiter_WaitForRefill(t *testing.T) {
	limiter := NewRateLimiter(100, 1)
	limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("Wait returned after %v, expected to wait for a token", elapsed)
	}
}

// TestProperty_RunMatchesSequential verifies pooled evaluation equals a plain loop.
// Property: for any n and worker count, Run fills slot i with fn(i) exactly once.
func TestProperty_RunMatchesSequential(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("pooled results equal sequential results", prop.ForAll(
		func(n, workers int) bool {
			pool := NewWorkerPool(workers)
			defer pool.Stop()

			hits := make([]int32, n)
			if err := pool.Run(context.Background(), n, func(i int) {
				atomic.AddInt32(&hits[i], 1)
			}); err != nil {
				return false
			}
			for _, h := range hits {
				if h != 1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 300),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

func BenchmarkWorkerPool_Run(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	out := make([]float64, 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pool.Run(context.Background(), len(out), func(j int) {
			out[j] = float64(j) * 1.5
		})
	}
}

func BenchmarkRateLimiter(b *testing.B) {
	limiter := NewRateLimiter(10000, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow()
	}
}

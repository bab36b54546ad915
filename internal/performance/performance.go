// Package performance provides the bounded worker pool used by the adjustment
// search and the token bucket that paces broker market-data calls.
package performance

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool runs tasks on a fixed set of goroutines fed from a bounded
// queue. A stopped pool cannot be restarted.
type WorkerPool struct {
	size  int
	queue chan func()

	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
	running atomic.Bool

	submitted atomic.Uint64
	completed atomic.Uint64
}

// NewWorkerPool creates a pool of the given size, or runtime.NumCPU()
// workers when size is not positive.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &WorkerPool{
		size:  size,
		queue: make(chan func(), size*4),
		done:  make(chan struct{}),
	}
}

// Start launches the workers once.
func (p *WorkerPool) Start() {
	p.once.Do(func() {
		p.running.Store(true)
		p.wg.Add(p.size)
		for i := 0; i < p.size; i++ {
			go p.loop()
		}
	})
}

func (p *WorkerPool) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case task := <-p.queue:
			task()
			p.completed.Add(1)
		}
	}
}

// Submit queues task, blocking while the queue is full. It reports false
// when the pool is not running or ctx ends first.
func (p *WorkerPool) Submit(ctx context.Context, task func()) bool {
	if !p.running.Load() {
		return false
	}
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	case <-ctx.Done():
	case <-p.done:
	}
	return false
}

// Run calls fn(i) for each i in [0, n) and waits for the calls to finish.
// fn should write into slot i of a caller-owned slice so the result order
// does not depend on scheduling. Once ctx is done no further calls start
// and Run returns ctx.Err().
func (p *WorkerPool) Run(ctx context.Context, n int, fn func(i int)) error {
	p.Start()

	var pending sync.WaitGroup
	for i := 0; i < n && ctx.Err() == nil; i++ {
		i := i
		pending.Add(1)
		ok := p.Submit(ctx, func() {
			defer pending.Done()
			if ctx.Err() == nil {
				fn(i)
			}
		})
		if !ok {
			pending.Done()
			break
		}
	}
	pending.Wait()
	return ctx.Err()
}

// Stop signals the workers to exit and waits for them.
func (p *WorkerPool) Stop() {
	if p.running.CompareAndSwap(true, false) {
		close(p.done)
		p.wg.Wait()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:    p.size,
		Running:    p.running.Load(),
		TasksTotal: p.submitted.Load(),
		TasksDone:  p.completed.Load(),
		QueueLen:   len(p.queue),
	}
}

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Workers    int    `json:"workers"`
	Running    bool   `json:"running"`
	TasksTotal uint64 `json:"tasks_total"`
	TasksDone  uint64 `json:"tasks_done"`
	QueueLen   int    `json:"queue_len"`
}

// RateLimiter is a token bucket refilled at rate tokens per second up to
// burst tokens.
type RateLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter that starts with a full bucket.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Allow takes a token if one is available.
func (r *RateLimiter) Allow() bool {
	ok, _ := r.take(time.Now())
	return ok
}

// Wait blocks until a token is taken or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, delay := r.take(time.Now())
		if ok {
			return nil
		}
		if delay <= 0 {
			<-ctx.Done()
			return ctx.Err()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take refills the bucket up to now and consumes a token. When none is
// available it returns the time until the next one, or 0 if the bucket
// never refills.
func (r *RateLimiter) take(now time.Time) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens += now.Sub(r.last).Seconds() * r.rate
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
	r.last = now

	if r.tokens >= 1 {
		r.tokens--
		return true, 0
	}
	if r.rate <= 0 {
		return false, 0
	}
	return false, time.Duration((1 - r.tokens) / r.rate * float64(time.Second))
}

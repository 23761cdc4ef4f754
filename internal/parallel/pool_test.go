package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		workers int
		want    int
	}{
		{4, 4},
		{1, 1},
		{0, runtime.GOMAXPROCS(0)},
		{-5, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		pool := NewWorkerPool(tt.workers)
		if got := pool.Workers(); got != tt.want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", tt.workers, got, tt.want)
		}
		if !pool.IsRunning() {
			t.Errorf("NewWorkerPool(%d) not running", tt.workers)
		}
		pool.Close()
	}
}

// =============================================================================
// ExecuteAll Tests
// =============================================================================

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(work)

	if got := counter.Load(); got != 100 {
		t.Errorf("counter = %d, want 100", got)
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	pool.ExecuteAll(nil)
	pool.ExecuteAll([]func(){})
}

func TestWorkerPool_ExecuteAllAfterClose(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Close()

	var counter atomic.Int64
	pool.ExecuteAll([]func(){
		func() { counter.Add(1) },
		func() { counter.Add(1) },
	})
	if got := counter.Load(); got != 2 {
		t.Errorf("counter = %d after Close, want 2 (inline execution)", got)
	}
}

// =============================================================================
// For Tests
// =============================================================================

func TestWorkerPool_ForCoversRange(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		n       int
	}{
		{"empty", 4, 0},
		{"single row", 4, 1},
		{"fewer rows than bands", 4, 5},
		{"many rows", 4, 513},
		{"single worker", 1, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.workers)
			defer pool.Close()

			hits := make([]atomic.Int32, tt.n)
			pool.For(tt.n, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					hits[i].Add(1)
				}
			})
			for i := range hits {
				if got := hits[i].Load(); got != 1 {
					t.Errorf("row %d visited %d times, want 1", i, got)
				}
			}
		})
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("Pool should not be running after Close")
	}
}

func TestWorkerPool_Concurrent(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	const callers, tasks = 10, 50

	var wg sync.WaitGroup
	wg.Add(callers)
	for range callers {
		go func() {
			defer wg.Done()
			work := make([]func(), tasks)
			for i := range work {
				work[i] = func() { counter.Add(1) }
			}
			pool.ExecuteAll(work)
		}()
	}
	wg.Wait()

	if got := counter.Load(); got != callers*tasks {
		t.Errorf("counter = %d, want %d", got, callers*tasks)
	}
}

func TestWorkerPool_NoGoroutineLeak(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	for range 5 {
		pool := NewWorkerPool(4)
		pool.For(100, func(int, int) {})
		pool.Close()
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	// Allow for some variance (test framework goroutines, etc.)
	if final := runtime.NumGoroutine(); final > baseline+2 {
		t.Errorf("goroutine count: baseline=%d, final=%d (leak detected)", baseline, final)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkWorkerPool_For(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	// One row per face row of a 512 cube level.
	rows := make([]float32, 512*6)
	for b.Loop() {
		pool.For(len(rows), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				rows[i] += 1
			}
		})
	}
}

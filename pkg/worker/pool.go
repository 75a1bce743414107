package worker

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// ErrPoolDraining is returned when work is submitted after Drain
var ErrPoolDraining = fmt.Errorf("worker pool is draining")

// DispatchTaskError wraps a failure raised by a background task. It is
// logged by the pool and never reaches the submitting caller.
type DispatchTaskError struct {
	Err error
}

func (e *DispatchTaskError) Error() string {
	return fmt.Sprintf("background task failed: %v", e.Err)
}

func (e *DispatchTaskError) Unwrap() error {
	return e.Err
}

// Config holds pool configuration
type Config struct {
	// Workers is the number of worker goroutines; defaults to
	// 2×GOMAXPROCS
	Workers int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{Workers: 2 * runtime.GOMAXPROCS(0)}
}

// Pool is a fixed-size background execution service. It is constructed
// once by the application's composition root and shared by reference;
// its lifecycle ends with Drain. Submission queues without blocking the
// caller.
type Pool struct {
	logger *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func() error
	draining bool

	wg        sync.WaitGroup
	drainOnce sync.Once
}

// NewPool creates and starts a pool
func NewPool(cfg *Config, logger *slog.Logger) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2 * runtime.GOMAXPROCS(0)
	}

	p := &Pool{logger: logger.With("component", "worker")}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.logger.Info("worker pool started", "workers", workers)
	return p
}

// Run submits a fire-and-forget task. A non-nil error returned by the
// task is logged and never propagated. Returns ErrPoolDraining after
// Drain has started.
func (p *Pool) Run(task func() error) error {
	return p.submit(task)
}

// Supply submits a value-producing task and returns its future. A task
// failure is logged and the future resolves to the zero value with
// ok=false; a panicking task resolves the same way before the panic is
// handed to the worker's recovery.
func Supply[T any](p *Pool, task func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	err := p.submit(func() error {
		defer func() {
			if r := recover(); r != nil {
				f.resolve(*new(T), false)
				panic(r)
			}
		}()
		value, err := task()
		if err != nil {
			f.resolve(*new(T), false)
			return err
		}
		f.resolve(value, true)
		return nil
	})
	if err != nil {
		f.resolve(*new(T), false)
	}
	return f
}

// Drain stops accepting new work and blocks until every queued and
// in-flight task has completed. Idempotent; later calls return after
// the first drain has finished.
func (p *Pool) Drain() {
	p.drainOnce.Do(func() {
		p.logger.Info("worker pool drain started")
		p.mu.Lock()
		p.draining = true
		p.mu.Unlock()
		p.cond.Broadcast()
	})
	p.wg.Wait()
	p.logger.Info("worker pool drain complete")
}

func (p *Pool) submit(task func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draining {
		return ErrPoolDraining
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.draining {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.runTask(task)
	}
}

// runTask isolates one task execution so a panic cannot take the
// worker down
func (p *Pool) runTask(task func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("background task panicked", "panic", r)
		}
	}()
	if err := task(); err != nil {
		p.logger.Error("background task failed", "error", &DispatchTaskError{Err: err})
	}
}

// Future is the pending result of a Supply call
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	ok    bool
}

// Wait blocks until the task completes. ok is false when the task
// failed or the pool rejected the submission.
func (f *Future[T]) Wait() (T, bool) {
	<-f.done
	return f.value, f.ok
}

func (f *Future[T]) resolve(value T, ok bool) {
	f.once.Do(func() {
		f.value = value
		f.ok = ok
		close(f.done)
	})
}

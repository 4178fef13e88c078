// Package worker runs fire-and-forget tasks on a fixed set of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

// Task is a unit of work. Run receives a context bounded by the pool timeout.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Reporter receives every task failure, including panics, timeouts and drops.
type Reporter interface {
	Report(ctx context.Context, task string, err error)
}

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type Pool struct {
	cfg      Config
	queue    chan Task
	reporter Reporter
	log      zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	inFlight atomic.Int32
}

func New(cfg Config, reporter Reporter, log zerolog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if reporter == nil {
		reporter = LogReporter{Log: log}
	}
	return &Pool{
		cfg:      cfg,
		queue:    make(chan Task, cfg.QueueSize),
		reporter: reporter,
		log:      log.With().Str("component", "worker").Logger(),
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.log.Debug().Int("workers", p.cfg.Workers).Int("queue", p.cfg.QueueSize).Msg("worker pool started")
}

// Submit enqueues t without blocking. A full queue drops the task and reports it.
func (p *Pool) Submit(ctx context.Context, t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- t:
		return nil
	default:
		err := errors.Wrapf(ErrQueueFull, "drop %s", t.Name)
		p.reporter.Report(ctx, t.Name, err)
		return err
	}
}

// Stop refuses new work, lets the workers drain the queue and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debug().Msg("worker pool stopped")
}

func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			p.inFlight.Add(1)
			p.exec(ctx, t)
			p.inFlight.Add(-1)
		}
	}
}

func (p *Pool) exec(ctx context.Context, t Task) {
	runCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	// Buffered so a task abandoned after its deadline can still finish and exit.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error().Str("task", t.Name).Interface("panic", r).Str("stack", string(debug.Stack())).Msg("task panicked")
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- t.Run(runCtx)
	}()

	var err error
	select {
	case err = <-done:
		if err == nil && runCtx.Err() == context.DeadlineExceeded {
			err = runCtx.Err()
		}
	case <-runCtx.Done():
		// The task ignored its context. Free the worker and leave it behind.
		err = runCtx.Err()
		p.log.Warn().Str("task", t.Name).Dur("after", time.Since(start)).Msg("task abandoned")
	}

	if err != nil {
		p.reporter.Report(ctx, t.Name, errors.Wrapf(err, "task %s", t.Name))
		return
	}
	p.log.Debug().Str("task", t.Name).Dur("took", time.Since(start)).Msg("task done")
}

// LogReporter writes failures to the log.
type LogReporter struct {
	Log zerolog.Logger
}

func (r LogReporter) Report(_ context.Context, task string, err error) {
	r.Log.Error().Err(err).Str("task", task).Msg("task failed")
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, task string, err error)

func (f ReporterFunc) Report(ctx context.Context, task string, err error) {
	f(ctx, task, err)
}

package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DispatcherConfig controls the concurrency characteristics of the refetch workers.
type DispatcherConfig struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// Job is a unit of refetch work. The context carries the per-job timeout.
type Job func(ctx context.Context)

// Dispatcher runs refetch jobs on a fixed pool of background workers.
type Dispatcher struct {
	logger  *slog.Logger
	timeout time.Duration

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// ErrDispatcherClosed is returned by Enqueue after Shutdown.
var ErrDispatcherClosed = errors.New("refetch dispatcher closed")

// NewDispatcher starts the worker pool.
func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		logger:  logger,
		timeout: cfg.JobTimeout,
		jobs:    make(chan Job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue schedules job, blocking while the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	case d.jobs <- job:
		return nil
	}
}

// Shutdown stops accepting jobs and waits for running ones to finish.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(d.cancel)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.jobs:
			d.run(job)
		}
	}
}

func (d *Dispatcher) run(job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("refetch job panicked", "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	job(ctx)
}

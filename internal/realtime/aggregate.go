package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dateloop/backend/internal/logging"
)

// ErrAggregateClosed is returned by Refresh once the aggregate has been closed.
var ErrAggregateClosed = errors.New("aggregate closed")

// FetchFunc loads a complete aggregate view from the backend.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// DeliverFunc receives a freshly fetched aggregate together with its sequence number.
type DeliverFunc[T any] func(seq uint64, value T)

// Aggregate refetches a view whole on every refresh request. Each request is
// numbered; a result is delivered only if no newer result has been delivered
// already, and a request is skipped outright when a newer one is queued behind it.
type Aggregate[T any] struct {
	name       string
	fetch      FetchFunc[T]
	deliver    DeliverFunc[T]
	dispatcher *Dispatcher
	logger     *slog.Logger

	// done is cancelled by Close and stops queued and running refetches.
	done   context.Context
	cancel context.CancelFunc

	issued atomic.Uint64

	mu      sync.Mutex
	applied uint64
	closed  bool
}

// NewAggregate binds a fetch and a deliver function to the dispatcher's workers.
func NewAggregate[T any](name string, dispatcher *Dispatcher, fetch FetchFunc[T], deliver DeliverFunc[T], logger *slog.Logger) *Aggregate[T] {
	if logger == nil {
		logger = slog.Default()
	}
	done, cancel := context.WithCancel(context.Background())
	return &Aggregate[T]{
		name:       name,
		fetch:      fetch,
		deliver:    deliver,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("aggregate", name)),
		done:       done,
		cancel:     cancel,
	}
}

// ContinueFrom makes numbering resume after seq, so a replacement for a closed
// aggregate never reuses a sequence number its predecessor handed out. It must
// be called before the first Refresh.
func (a *Aggregate[T]) ContinueFrom(seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.issued.Store(seq)
	a.applied = seq
}

// Refresh issues a new refetch request and returns its sequence number.
// The refetch is abandoned if ctx is cancelled before it delivers.
func (a *Aggregate[T]) Refresh(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return 0, ErrAggregateClosed
	}
	seq := a.issued.Add(1)
	a.mu.Unlock()

	err := a.dispatcher.Enqueue(ctx, func(jobCtx context.Context) {
		if ctx.Err() != nil || a.done.Err() != nil {
			a.logger.Debug("refetch abandoned", "seq", seq)
			return
		}
		jobCtx, cancel := context.WithCancel(jobCtx)
		defer cancel()
		stopOwner := context.AfterFunc(ctx, cancel)
		defer stopOwner()
		stopClose := context.AfterFunc(a.done, cancel)
		defer stopClose()

		a.run(jobCtx, seq)
	})
	return seq, err
}

// Close stops the aggregate. Nothing is delivered after Close returns, and
// the returned value is the last sequence number it issued.
func (a *Aggregate[T]) Close() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.cancel()
	return a.issued.Load()
}

// Applied returns the sequence number of the most recently delivered result.
func (a *Aggregate[T]) Applied() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied
}

func (a *Aggregate[T]) run(ctx context.Context, seq uint64) {
	if seq < a.issued.Load() {
		a.logger.Debug("refetch superseded", "seq", seq)
		return
	}

	ctx = logging.WithLogger(ctx, a.logger)
	ctx, span := logging.StartSpan(ctx, "realtime.refetch")
	defer span.End()

	value, err := a.fetch(ctx)
	if err != nil {
		span.Fail(fmt.Errorf("refetch %s seq %d, keeping previous snapshot: %w", a.name, seq, err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		logging.FromContext(ctx).Debug("dropping refetch for closed aggregate", "seq", seq)
		return
	}
	if seq <= a.applied {
		logging.FromContext(ctx).Debug("discarding stale refetch", "seq", seq, "applied", a.applied)
		return
	}
	a.applied = seq
	a.deliver(seq, value)
}

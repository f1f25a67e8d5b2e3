package activity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder defaults.
const (
	defaultBufferSize  = 1024
	defaultSinkTimeout = 5 * time.Second
)

// ErrRecorderClosed is returned by Flush after Close.
var ErrRecorderClosed = errors.New("activity: recorder closed")

// Sink receives recorded events.
type Sink interface {
	Name() string
	Record(ctx context.Context, e Event) error
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Logger receives sink failures and dropped events. Nil uses slog.Default().
	Logger *slog.Logger

	// BufferSize is the number of events queued before Record drops.
	// Zero uses the default.
	BufferSize int

	// SinkTimeout bounds each sink call. Zero uses the default.
	SinkTimeout time.Duration
}

// envelope is one queued item: an event, or a flush marker when flushed
// is non-nil.
type envelope struct {
	ctx     context.Context
	event   Event
	flushed chan struct{}
}

// Recorder queues events and delivers them to every sink, in order, on a
// single background worker. Record never blocks the caller: when the queue
// is full the event is dropped and counted.
//
// Thread Safety:
//   - Record, Flush and Close are safe for concurrent use.
type Recorder struct {
	sinks   []Sink
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration

	queue chan envelope
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewRecorder creates a recorder and starts its worker. Nil sinks are
// dropped. Call Close to drain the queue.
func NewRecorder(cfg RecorderConfig, sinks ...Sink) *Recorder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}

	r := &Recorder{
		logger:  cfg.Logger,
		now:     time.Now,
		timeout: cfg.SinkTimeout,
		queue:   make(chan envelope, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}

	go r.run()
	return r
}

// Record stamps e and queues it for delivery. Context values are kept but
// cancellation is not, so a finished request does not abort delivery.
// Safe on a nil Recorder.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil {
		return
	}
	if e.At.IsZero() {
		e.At = r.now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(e, "recorder closed")
		return
	}

	select {
	case r.queue <- envelope{ctx: context.WithoutCancel(ctx), event: e}:
	default:
		r.drop(e, "queue full")
	}
}

func (r *Recorder) drop(e Event, reason string) {
	r.dropped.Add(1)
	r.logger.Warn("activity event dropped",
		"reason", reason,
		"action", e.Action,
		"outcome", e.Outcome,
	)
}

// Flush blocks until every event queued before the call has been
// delivered, or ctx is done.
func (r *Recorder) Flush(ctx context.Context) error {
	if r == nil {
		return nil
	}
	marker := envelope{flushed: make(chan struct{})}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrRecorderClosed
	}
	select {
	case r.queue <- marker:
		r.mu.RUnlock()
	case <-ctx.Done():
		r.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for the worker to deliver what is
// queued, or for ctx to be done. Calling Close more than once is safe.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many events were discarded without delivery.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Sinks returns the names of the configured sinks.
func (r *Recorder) Sinks() []string {
	names := make([]string, 0, len(r.sinks))
	for _, s := range r.sinks {
		names = append(names, s.Name())
	}
	return names
}

func (r *Recorder) run() {
	defer close(r.done)
	for env := range r.queue {
		if env.flushed != nil {
			close(env.flushed)
			continue
		}
		r.deliver(env.ctx, env.event)
	}
}

func (r *Recorder) deliver(parent context.Context, e Event) {
	for _, s := range r.sinks {
		ctx, cancel := context.WithTimeout(parent, r.timeout)
		err := s.Record(ctx, e)
		cancel()
		if err != nil {
			r.logger.Warn("activity sink failed",
				"sink", s.Name(),
				"action", e.Action,
				"outcome", e.Outcome,
				"error", err,
			)
		}
	}
}

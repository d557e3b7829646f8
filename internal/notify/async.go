package notify

import (
	"context"
	"log/slog"
	"time"
)

// Sink delivers a batch of events somewhere outside the process.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, events []Event) error
}

// AsyncPublisher buffers events in memory and flushes them to a sink from a
// background loop. Publish never blocks on the sink; a full buffer evicts the
// oldest event.
type AsyncPublisher struct {
	sink      Sink
	buffer    *RingBuffer
	breaker   *CircuitBreaker
	logger    *slog.Logger
	metrics   *Metrics
	interval  time.Duration
	batchSize int
	flushNow  chan struct{}
}

type AsyncOption func(*AsyncPublisher)

func WithBufferSize(n int) AsyncOption {
	return func(p *AsyncPublisher) { p.buffer = NewRingBuffer(n) }
}

func WithFlushInterval(d time.Duration) AsyncOption {
	return func(p *AsyncPublisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithBatchSize(n int) AsyncOption {
	return func(p *AsyncPublisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithBreaker(cb *CircuitBreaker) AsyncOption {
	return func(p *AsyncPublisher) { p.breaker = cb }
}

func WithLogger(logger *slog.Logger) AsyncOption {
	return func(p *AsyncPublisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) AsyncOption {
	return func(p *AsyncPublisher) { p.metrics = m }
}

func NewAsyncPublisher(sink Sink, opts ...AsyncOption) *AsyncPublisher {
	p := &AsyncPublisher{
		sink:      sink,
		logger:    slog.Default(),
		interval:  250 * time.Millisecond,
		batchSize: 64,
		flushNow:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer == nil {
		p.buffer = NewRingBuffer(defaultBufferCapacity)
	}
	if p.breaker == nil {
		p.breaker = NewCircuitBreaker(5, 30*time.Second)
	}
	return p
}

// Publish enqueues ev. A full batch wakes the flush loop early.
func (p *AsyncPublisher) Publish(_ context.Context, ev Event) {
	if p.buffer.Enqueue(ev) {
		p.metrics.IncDropped("overflow", 1)
	}
	depth := p.buffer.Len()
	p.metrics.SetBufferDepth(depth)
	if depth >= p.batchSize {
		select {
		case p.flushNow <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of buffered events.
func (p *AsyncPublisher) Pending() int {
	return p.buffer.Len()
}

// Run flushes until ctx is cancelled, then drains what is left with a
// bounded grace period.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			p.drain(drainCtx)
			cancel()
			return nil
		case <-ticker.C:
			p.flush(ctx)
		case <-p.flushNow:
			p.flush(ctx)
		}
	}
}

// Flush delivers everything currently buffered. It is used on shutdown and
// in tests.
func (p *AsyncPublisher) Flush(ctx context.Context) {
	p.drain(ctx)
}

func (p *AsyncPublisher) drain(ctx context.Context) {
	for p.buffer.Len() > 0 && ctx.Err() == nil {
		if !p.flush(ctx) {
			return
		}
	}
}

// flush sends one batch and reports whether it made progress.
func (p *AsyncPublisher) flush(ctx context.Context) bool {
	if p.buffer.Len() == 0 {
		return false
	}
	if !p.breaker.Allow() {
		return false
	}

	batch := p.buffer.DequeueBatch(p.batchSize)
	p.metrics.SetBufferDepth(p.buffer.Len())

	if err := p.sink.Deliver(ctx, batch); err != nil {
		p.metrics.IncFailure(p.sink.Name())
		p.metrics.IncDropped("delivery_failed", len(batch))
		opened := p.breaker.RecordFailure()
		p.metrics.SetCircuitOpen(p.breaker.IsOpen())
		p.logger.WarnContext(ctx, "notification delivery failed, batch dropped",
			"sink", p.sink.Name(),
			"events", len(batch),
			"circuit_opened", opened,
			"error", err,
		)
		return false
	}

	p.breaker.RecordSuccess()
	p.metrics.SetCircuitOpen(false)
	p.metrics.IncPublished(p.sink.Name(), len(batch))
	return true
}

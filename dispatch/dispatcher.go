// Package dispatch decouples publish side effects from the message-delivery
// context. Intake and the liveness tracker enqueue PublishRequests; a single
// drain goroutine performs the publishes in FIFO order. Publishing directly
// from a delivery callback can re-enter the transport's delivery path, so all
// side effects go through this queue.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ftcid/AutomatedHomeV2/errors"
	"github.com/ftcid/AutomatedHomeV2/metric"
)

// DefaultQueueSize bounds the request queue. The queue only fills when the
// transport stalls; intake is never allowed to block on it.
const DefaultQueueSize = 1024

// PublishRequest is one queued publish side effect.
type PublishRequest struct {
	Topic   string
	Payload string
}

// Publisher is the external publish operation the dispatcher drains into.
type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
}

// Config holds Dispatcher configuration.
type Config struct {
	// QueueSize is the request queue capacity.
	QueueSize int
	// Retry governs transient publish failures. Zero value disables retry.
	Retry errors.RetryConfig
}

// Dispatcher is a FIFO publish queue with a single consumer. Enqueue is
// non-blocking and safe for concurrent producers; global FIFO order is
// preserved regardless of which producer enqueued a request.
type Dispatcher struct {
	publisher Publisher
	queue     chan PublishRequest
	retry     errors.RetryConfig

	logger  *slog.Logger
	metrics *dispatcherMetrics

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
}

// NewDispatcher creates a Dispatcher draining into publisher.
func NewDispatcher(publisher Publisher, cfg Config, registry *metric.MetricsRegistry) *Dispatcher {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	d := &Dispatcher{
		publisher: publisher,
		queue:     make(chan PublishRequest, size),
		retry:     cfg.Retry,
		logger:    slog.Default().With("component", "dispatcher"),
	}
	d.metrics = newDispatcherMetrics(registry, d)

	return d
}

// Enqueue appends a request to the queue without blocking. When the queue is
// saturated the request is dropped and counted; blocking here would stall the
// delivery callback that triggered the evaluation.
func (d *Dispatcher) Enqueue(req PublishRequest) bool {
	select {
	case d.queue <- req:
		if d.metrics != nil {
			d.metrics.enqueuedTotal.Inc()
		}
		return true
	default:
		d.logger.Error("Dispatch queue full, dropping request", "topic", req.Topic)
		if d.metrics != nil {
			d.metrics.droppedTotal.Inc()
		}
		return false
	}
}

// Pending returns the number of queued requests.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Start launches the drain loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.shutdown != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Dispatcher", "Start", "check state")
	}

	d.shutdown = make(chan struct{})
	d.done = make(chan struct{})

	go d.drain(ctx, d.shutdown, d.done)

	d.logger.Info("Dispatcher started", "queue_size", cap(d.queue))
	return nil
}

// Stop halts the drain loop. An in-flight publish completes; queued requests
// past it are abandoned, mirroring the no-delivery-confirmation contract.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if d.shutdown == nil {
		d.mu.Unlock()
		return nil
	}
	close(d.shutdown)
	drainDone := d.done
	d.shutdown = nil
	d.done = nil
	d.mu.Unlock()

	select {
	case <-drainDone:
	case <-time.After(timeout):
		d.logger.Warn("Dispatcher shutdown timeout", "timeout", timeout)
	}

	d.logger.Info("Dispatcher stopped", "abandoned", len(d.queue))
	return nil
}

func (d *Dispatcher) drain(ctx context.Context, shutdown, done chan struct{}) {
	defer close(done)

	for {
		select {
		case req := <-d.queue:
			d.publish(ctx, req)
		case <-shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

// publish performs one publish with bounded retry on transient failures.
// Retrying in place before taking the next item is what preserves FIFO order
// across failures.
func (d *Dispatcher) publish(ctx context.Context, req PublishRequest) {
	var err error
	for attempt := 0; ; attempt++ {
		err = d.publisher.Publish(ctx, req.Topic, req.Payload)
		if err == nil {
			if d.metrics != nil {
				d.metrics.publishedTotal.Inc()
			}
			if attempt > 0 {
				d.logger.Info("Publish succeeded after retry", "topic", req.Topic, "attempt", attempt)
			}
			return
		}

		if !d.retry.ShouldRetry(err, attempt) {
			break
		}

		delay := d.retry.BackoffDelay(attempt)
		d.logger.Warn("Publish failed, retrying",
			"topic", req.Topic, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	d.logger.Error("Publish failed, dropping request", "topic", req.Topic, "error", err)
	if d.metrics != nil {
		d.metrics.failuresTotal.Inc()
	}
}

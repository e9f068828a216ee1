package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ftcid/AutomatedHomeV2/errors"
	"github.com/ftcid/AutomatedHomeV2/metric"
)

// DefaultQueueSize bounds the entry queue.
const DefaultQueueSize = 512

// Config holds Writer configuration.
type Config struct {
	// QueueSize is the entry queue capacity.
	QueueSize int
	// Retry governs transient store failures. Zero value uses the default.
	Retry errors.RetryConfig
}

// Writer queues entries and stores them through a Sink from a single
// goroutine. Record never blocks; when the queue is full the entry is
// dropped and counted.
type Writer struct {
	sink  Sink
	queue chan Entry
	retry errors.RetryConfig
	now   func() time.Time

	logger  *slog.Logger
	metrics *writerMetrics

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
}

// NewWriter creates a Writer storing through sink.
func NewWriter(sink Sink, cfg Config, registry *metric.MetricsRegistry) *Writer {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = errors.DefaultRetryConfig()
	}

	w := &Writer{
		sink:   sink,
		queue:  make(chan Entry, size),
		retry:  retry,
		now:    time.Now,
		logger: slog.Default().With("component", "persist-writer"),
	}
	w.metrics = newWriterMetrics(registry, w)
	return w
}

// Record queues a state change for storage. Non-blocking.
func (w *Writer) Record(topic, value string) {
	entry := Entry{Topic: topic, Value: value, At: w.now()}

	select {
	case w.queue <- entry:
		if w.metrics != nil {
			w.metrics.recordedTotal.Inc()
		}
	default:
		w.logger.Warn("Persistence queue full, dropping entry", "topic", topic)
		if w.metrics != nil {
			w.metrics.droppedTotal.Inc()
		}
	}
}

// Pending returns the number of queued entries.
func (w *Writer) Pending() int {
	return len(w.queue)
}

// Start launches the store goroutine.
func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.shutdown != nil {
		return errors.ErrAlreadyStarted
	}
	w.shutdown = make(chan struct{})
	w.done = make(chan struct{})

	go w.drain(ctx, w.shutdown, w.done)

	w.logger.Info("Persistence writer started", "queue_size", cap(w.queue))
	return nil
}

// Stop stops the store goroutine. Entries still queued are abandoned.
func (w *Writer) Stop(timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.shutdown == nil {
		return errors.ErrNotStarted
	}
	close(w.shutdown)

	select {
	case <-w.done:
	case <-time.After(timeout):
		w.logger.Warn("Timed out waiting for persistence writer to stop")
	}

	w.shutdown = nil
	w.done = nil
	return nil
}

func (w *Writer) drain(ctx context.Context, shutdown, done chan struct{}) {
	defer close(done)

	for {
		select {
		case entry := <-w.queue:
			w.store(ctx, entry)
		case <-shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

// store writes one entry, retrying transient backend failures in place so
// the per-topic write order is preserved.
func (w *Writer) store(ctx context.Context, entry Entry) {
	var err error
	for attempt := 0; ; attempt++ {
		err = w.sink.Store(ctx, entry)
		if err == nil {
			if w.metrics != nil {
				w.metrics.storedTotal.Inc()
			}
			return
		}

		if !w.retry.ShouldRetry(err, attempt) {
			break
		}

		delay := w.retry.BackoffDelay(attempt)
		w.logger.Warn("Store failed, retrying",
			"topic", entry.Topic, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	w.logger.Error("Failed to store entry, dropping", "topic", entry.Topic, "error", err)
	if w.metrics != nil {
		w.metrics.failuresTotal.Inc()
	}
}

// Package clock publishes the wall-clock date and time onto the bus at the
// top of every minute, so time-of-day conditions can be written as ordinary
// rules over /global/datetime topics.
package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ftcid/AutomatedHomeV2/dispatch"
	"github.com/ftcid/AutomatedHomeV2/errors"
)

// Topics carrying the published date and time.
const (
	DateTopic = "/global/datetime/date"
	TimeTopic = "/global/datetime/time"

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Enqueuer is the dispatcher capability the publisher sends through.
type Enqueuer interface {
	Enqueue(req dispatch.PublishRequest) bool
}

// Publisher emits the current date and time each minute, aligned to the
// minute boundary.
type Publisher struct {
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
}

// NewPublisher creates a Publisher sending through enqueuer.
func NewPublisher(enqueuer Enqueuer) *Publisher {
	return &Publisher{
		enqueuer: enqueuer,
		logger:   slog.Default().With("component", "clock"),
		now:      time.Now,
	}
}

// Start launches the publish loop.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown != nil {
		return errors.ErrAlreadyStarted
	}
	p.shutdown = make(chan struct{})
	p.done = make(chan struct{})

	go p.run(ctx, p.shutdown, p.done)

	p.logger.Info("Clock publisher started")
	return nil
}

// Stop stops the publish loop.
func (p *Publisher) Stop(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown == nil {
		return errors.ErrNotStarted
	}
	close(p.shutdown)

	select {
	case <-p.done:
	case <-time.After(timeout):
		p.logger.Warn("Timed out waiting for clock publisher to stop")
	}

	p.shutdown = nil
	p.done = nil
	return nil
}

func (p *Publisher) run(ctx context.Context, shutdown, done chan struct{}) {
	defer close(done)

	for {
		timer := time.NewTimer(untilNextMinute(p.now()))
		select {
		case <-timer.C:
			p.publish()
		case <-shutdown:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// publish enqueues the current date and time.
func (p *Publisher) publish() {
	now := p.now()
	p.enqueuer.Enqueue(dispatch.PublishRequest{Topic: DateTopic, Payload: now.Format(dateLayout)})
	p.enqueuer.Enqueue(dispatch.PublishRequest{Topic: TimeTopic, Payload: now.Format(timeLayout)})
}

// untilNextMinute returns the wait to the next minute boundary.
func untilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ftcid/AutomatedHomeV2/component"
	"github.com/ftcid/AutomatedHomeV2/dispatch"
	"github.com/ftcid/AutomatedHomeV2/errors"
	"github.com/ftcid/AutomatedHomeV2/expression"
	"github.com/ftcid/AutomatedHomeV2/metric"
	"github.com/ftcid/AutomatedHomeV2/state"
)

// DefaultReservedPrefix names the topic namespace the hub itself publishes
// into. Reserved topics flow through state and rules like any other topic
// but are excluded from persistence and liveness tracking.
const DefaultReservedPrefix = "/global/"

// Enqueuer is the dispatcher capability intake publishes actions through.
type Enqueuer interface {
	Enqueue(req dispatch.PublishRequest) bool
}

// Persister records accepted state changes in durable storage.
type Persister interface {
	Record(topic, value string)
}

// Toucher receives activity notifications for liveness tracking.
type Toucher interface {
	Touch(topic string)
}

// Subscriber delivers every bus message to a handler. Satisfied by
// *natsclient.NATSClient.
type Subscriber interface {
	SubscribeAll(ctx context.Context, handler func(ctx context.Context, topic string, payload []byte)) error
}

// StateObserver is notified after a state change has been fully processed.
// Observers run on the intake goroutine and must not block.
type StateObserver func(topic, value string)

// Config holds Engine configuration.
type Config struct {
	// ReservedPrefix is the hub-owned topic namespace. Defaults to
	// DefaultReservedPrefix.
	ReservedPrefix string
}

// Engine wires the intake pipeline together: store update, rule evaluation,
// action dispatch, persistence and liveness. Messages are processed one at a
// time; the intake mutex is the serialization point.
type Engine struct {
	store          *state.Store
	evaluator      *Evaluator
	enqueuer       Enqueuer
	subscriber     Subscriber
	reservedPrefix string

	persister Persister
	tracker   Toucher

	logger  *slog.Logger
	metrics *engineMetrics

	intakeMu sync.Mutex

	observerMu sync.RWMutex
	observers  []StateObserver

	mu         sync.Mutex
	started    bool
	startedAt  time.Time
	lastError  string
	errorCount int
}

// NewEngine creates an Engine. The subscriber may be nil when messages are
// fed through HandleMessage directly.
func NewEngine(store *state.Store, source RuleSource, matcher expression.Matcher, enqueuer Enqueuer, subscriber Subscriber, cfg Config, registry *metric.MetricsRegistry) *Engine {
	if cfg.ReservedPrefix == "" {
		cfg.ReservedPrefix = DefaultReservedPrefix
	}

	metrics := newEngineMetrics(registry)
	return &Engine{
		store:          store,
		evaluator:      NewEvaluator(source, matcher, metrics.evaluatorMetricsOf()),
		enqueuer:       enqueuer,
		subscriber:     subscriber,
		reservedPrefix: cfg.ReservedPrefix,
		logger:         slog.Default().With("component", "engine"),
		metrics:        metrics,
	}
}

// SetPersister installs the persistence sink for non-reserved state changes.
func (e *Engine) SetPersister(p Persister) {
	e.persister = p
}

// SetTracker installs the liveness tracker for non-reserved state changes.
func (e *Engine) SetTracker(t Toucher) {
	e.tracker = t
}

// OnStateChange registers an observer called after each accepted state
// change. Used by the gateway to feed live state over websockets.
func (e *Engine) OnStateChange(fn StateObserver) {
	e.observerMu.Lock()
	defer e.observerMu.Unlock()
	e.observers = append(e.observers, fn)
}

// Start subscribes the engine to the bus.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	e.started = true
	e.startedAt = time.Now()
	e.mu.Unlock()

	if e.subscriber != nil {
		if err := e.subscriber.SubscribeAll(ctx, e.HandleMessage); err != nil {
			e.mu.Lock()
			e.started = false
			e.mu.Unlock()
			return errors.Wrap(err, "engine", "Start", "subscribe failed")
		}
	}

	e.logger.Info("Engine started", "reserved_prefix", e.reservedPrefix)
	return nil
}

// Stop marks the engine stopped. The bus subscription is torn down with the
// client connection.
func (e *Engine) Stop(timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return errors.ErrNotStarted
	}
	e.started = false
	e.logger.Info("Engine stopped")
	return nil
}

// Health reports engine health.
func (e *Engine) Health() component.HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := component.HealthStatus{
		Healthy:    e.started,
		LastCheck:  time.Now(),
		LastError:  e.lastError,
		ErrorCount: e.errorCount,
	}
	if e.started {
		status.Uptime = time.Since(e.startedAt)
	}
	return status
}

// HandleMessage runs the full intake pipeline for one bus message. Malformed
// topics are discarded; values identical to the stored state short-circuit
// before evaluation.
func (e *Engine) HandleMessage(ctx context.Context, topic string, payload []byte) {
	if !strings.HasPrefix(topic, state.Separator) {
		e.logger.Warn("Discarding message with malformed topic", "topic", topic)
		e.recordError("malformed topic: " + topic)
		if e.metrics != nil {
			e.metrics.discardedTotal.Inc()
		}
		return
	}

	if e.metrics != nil {
		e.metrics.messagesTotal.Inc()
	}

	e.intakeMu.Lock()
	defer e.intakeMu.Unlock()

	value := string(payload)
	if !e.store.Set(topic, value) {
		if e.metrics != nil {
			e.metrics.unchangedTotal.Inc()
		}
		return
	}

	start := time.Now()
	actions := e.evaluator.Evaluate(e.store.Snapshot(), topic)
	if e.metrics != nil {
		e.metrics.evalDuration.Observe(time.Since(start).Seconds())
	}

	for _, action := range actions {
		rendered, err := renderParams(action.Params)
		if err != nil {
			e.logger.Error("Failed to render action params",
				"topic", action.Topic, "error", err)
			e.recordError(err.Error())
			continue
		}
		e.enqueuer.Enqueue(dispatch.PublishRequest{Topic: action.Topic, Payload: rendered})
		if e.metrics != nil {
			e.metrics.actionsTotal.Inc()
		}
	}

	if !strings.HasPrefix(topic, e.reservedPrefix) {
		if e.persister != nil {
			e.persister.Record(topic, value)
		}
		if e.tracker != nil {
			e.tracker.Touch(topic)
		}
	}

	e.notifyObservers(topic, value)
}

func (e *Engine) notifyObservers(topic, value string) {
	e.observerMu.RLock()
	observers := e.observers
	e.observerMu.RUnlock()

	for _, fn := range observers {
		fn(topic, value)
	}
}

func (e *Engine) recordError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.errorCount++
	e.mu.Unlock()
}

// renderParams turns an action's params into the wire payload. Strings go
// out verbatim so a plain "on" stays "on"; everything else is serialized as
// JSON.
func renderParams(params any) (string, error) {
	switch v := params.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", errors.WrapInvalid(err, "engine", "renderParams", "serialize failed")
		}
		return string(data), nil
	}
}

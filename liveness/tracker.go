// Package liveness derives per-device last-seen timestamps from state
// updates and republishes the aggregate record on a fixed ping topic.
package liveness

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ftcid/AutomatedHomeV2/dispatch"
)

const (
	// DefaultPingTopic carries the serialized liveness record.
	DefaultPingTopic = "/global/ping/devices"
	// DefaultReservedPrefix names the namespace excluded from tracking.
	DefaultReservedPrefix = "/global/"

	// timestampLayout is the last-seen timestamp format.
	timestampLayout = "2006-01-02 15:04:05"
)

// Enqueuer is the dispatcher capability the tracker publishes through.
type Enqueuer interface {
	Enqueue(req dispatch.PublishRequest) bool
}

// Config holds Tracker configuration.
type Config struct {
	PingTopic      string
	ReservedPrefix string
}

// Tracker maintains the aggregate device-path→last-seen record. The record
// is rewritten in full on every update; its size is bounded by device count,
// not update rate.
type Tracker struct {
	pingTopic      string
	reservedPrefix string
	enqueuer       Enqueuer
	logger         *slog.Logger
	now            func() time.Time

	mu     sync.Mutex
	record map[string]string
}

// NewTracker creates a Tracker publishing through enqueuer.
func NewTracker(enqueuer Enqueuer, cfg Config) *Tracker {
	if cfg.PingTopic == "" {
		cfg.PingTopic = DefaultPingTopic
	}
	if cfg.ReservedPrefix == "" {
		cfg.ReservedPrefix = DefaultReservedPrefix
	}

	return &Tracker{
		pingTopic:      cfg.PingTopic,
		reservedPrefix: cfg.ReservedPrefix,
		enqueuer:       enqueuer,
		logger:         slog.Default().With("component", "liveness-tracker"),
		now:            time.Now,
	}
}

// Touch records activity on a topic and enqueues a republish of the whole
// aggregate record. Reserved-namespace topics are ignored.
func (t *Tracker) Touch(topic string) {
	if strings.HasPrefix(topic, t.reservedPrefix) {
		return
	}

	device := DevicePath(topic)
	if device == "" {
		return
	}

	t.mu.Lock()
	if t.record == nil {
		t.record = make(map[string]string)
	}
	t.record[device] = t.now().Format(timestampLayout)
	payload, err := json.Marshal(t.record)
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("Failed to serialize liveness record", "error", err)
		return
	}

	t.enqueuer.Enqueue(dispatch.PublishRequest{
		Topic:   t.pingTopic,
		Payload: string(payload),
	})
}

// Record returns a copy of the current aggregate record.
func (t *Tracker) Record() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]string, len(t.record))
	for k, v := range t.record {
		out[k] = v
	}
	return out
}

// DevicePath strips the final segment from a topic, turning an attribute
// topic like /kitchen/lamp/power into the device path /kitchen/lamp.
func DevicePath(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx <= 0 {
		return ""
	}
	return topic[:idx]
}

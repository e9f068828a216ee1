// Package persist records accepted state changes in durable storage. Intake
// hands entries to a Writer, which queues them and stores them from its own
// goroutine so a slow backend never stalls message processing.
package persist

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Entry is one recorded state change.
type Entry struct {
	Topic string    `json:"topic"`
	Value string    `json:"value"`
	At    time.Time `json:"at"`
}

// Sink stores entries in a backend.
type Sink interface {
	Store(ctx context.Context, entry Entry) error
}

// NoopSink discards entries. Used when persistence is disabled; the write
// path stays identical either way.
type NoopSink struct {
	logger *slog.Logger
}

// NewNoopSink creates a NoopSink.
func NewNoopSink() *NoopSink {
	return &NoopSink{logger: slog.Default().With("component", "persist-noop")}
}

// Store logs the entry at debug level and drops it.
func (s *NoopSink) Store(_ context.Context, entry Entry) error {
	s.logger.Debug("Discarding entry", "topic", entry.Topic, "value", entry.Value)
	return nil
}

// EncodeKey converts a topic path into a KV bucket key: the leading
// separator is dropped and the remaining separators become dots, so
// /kitchen/lamp/power is stored under kitchen.lamp.power.
func EncodeKey(topic string) string {
	return strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", ".")
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(key string) string {
	return "/" + strings.ReplaceAll(key, ".", "/")
}

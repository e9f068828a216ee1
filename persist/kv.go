package persist

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ftcid/AutomatedHomeV2/errors"
)

// DefaultBucket is the KV bucket holding persisted state.
const DefaultBucket = "automatedhome-state"

// KVSink stores entries in a JetStream key-value bucket, one key per topic.
// The bucket's revision history is the change timeline for a topic.
type KVSink struct {
	kv jetstream.KeyValue
}

// NewKVSink creates a KVSink writing to kv.
func NewKVSink(kv jetstream.KeyValue) *KVSink {
	return &KVSink{kv: kv}
}

// kvRecord is the stored representation of an entry.
type kvRecord struct {
	Value string    `json:"value"`
	At    time.Time `json:"at"`
}

// Store writes the entry under its encoded topic key.
func (s *KVSink) Store(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(kvRecord{Value: entry.Value, At: entry.At})
	if err != nil {
		return errors.WrapInvalid(err, "persist", "Store", "serialize entry")
	}

	if _, err := s.kv.Put(ctx, EncodeKey(entry.Topic), data); err != nil {
		return errors.WrapTransient(err, "persist", "Store", "put "+entry.Topic)
	}
	return nil
}

// Load returns the latest stored value for a topic.
func (s *KVSink) Load(ctx context.Context, topic string) (Entry, error) {
	kve, err := s.kv.Get(ctx, EncodeKey(topic))
	if stderrors.Is(err, jetstream.ErrKeyNotFound) {
		return Entry{}, errors.ErrKeyNotFound
	}
	if err != nil {
		return Entry{}, errors.WrapTransient(err, "persist", "Load", "get "+topic)
	}

	var rec kvRecord
	if err := json.Unmarshal(kve.Value(), &rec); err != nil {
		return Entry{}, errors.WrapInvalid(err, "persist", "Load", "decode "+topic)
	}
	return Entry{Topic: topic, Value: rec.Value, At: rec.At}, nil
}

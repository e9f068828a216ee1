package persist

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftcid/AutomatedHomeV2/errors"
)

type captureSink struct {
	mu      sync.Mutex
	entries []Entry
	block   chan struct{}
}

func (s *captureSink) Store(_ context.Context, entry Entry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *captureSink) stored() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		topic string
		key   string
	}{
		{"/kitchen/lamp/power", "kitchen.lamp.power"},
		{"/a/b/c", "a.b.c"},
		{"/single", "single"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.key, EncodeKey(tt.topic))
		assert.Equal(t, tt.topic, DecodeKey(tt.key))
	}
}

func TestNoopSink_Discards(t *testing.T) {
	sink := NewNoopSink()
	err := sink.Store(context.Background(), Entry{Topic: "/a/b/c", Value: "5"})
	assert.NoError(t, err)
}

func TestWriter_RecordsInOrder(t *testing.T) {
	sink := &captureSink{}
	w := NewWriter(sink, Config{}, nil)
	fixed := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(time.Second)

	w.Record("/a/b/c", "1")
	w.Record("/a/b/c", "2")
	w.Record("/x/y/z", "3")

	waitFor(t, func() bool { return len(sink.stored()) == 3 })

	entries := sink.stored()
	assert.Equal(t, Entry{Topic: "/a/b/c", Value: "1", At: fixed}, entries[0])
	assert.Equal(t, Entry{Topic: "/a/b/c", Value: "2", At: fixed}, entries[1])
	assert.Equal(t, Entry{Topic: "/x/y/z", Value: "3", At: fixed}, entries[2])
}

func TestWriter_DropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	sink := &captureSink{block: block}
	w := NewWriter(sink, Config{QueueSize: 2}, nil)

	require.NoError(t, w.Start(context.Background()))
	defer func() {
		close(block)
		w.Stop(time.Second)
	}()

	// One entry is in the blocked Store call, two fill the queue. The rest
	// must drop without blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			w.Record("/a/b/c", "v")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}
	assert.LessOrEqual(t, w.Pending(), 2)
}

type flakySink struct {
	captureSink
	failures int
}

func (s *flakySink) Store(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	remaining := s.failures
	if remaining > 0 {
		s.failures--
	}
	s.mu.Unlock()

	if remaining > 0 {
		return errors.WrapTransient(stderrors.New("backend unavailable"), "persist", "Store", "put")
	}
	return s.captureSink.Store(ctx, entry)
}

func TestWriter_RetriesTransientFailures(t *testing.T) {
	sink := &flakySink{failures: 2}
	w := NewWriter(sink, Config{
		Retry: errors.RetryConfig{
			MaxRetries:    3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      10 * time.Millisecond,
			BackoffFactor: 2.0,
		},
	}, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(time.Second)

	w.Record("/a/b/c", "5")

	waitFor(t, func() bool { return len(sink.stored()) == 1 })
	assert.Equal(t, "/a/b/c", sink.stored()[0].Topic)
}

func TestWriter_Lifecycle(t *testing.T) {
	w := NewWriter(&captureSink{}, Config{}, nil)

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	require.NoError(t, w.Stop(time.Second))
	assert.Error(t, w.Stop(time.Second))
}

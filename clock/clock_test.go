package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftcid/AutomatedHomeV2/dispatch"
)

type captureEnqueuer struct {
	requests []dispatch.PublishRequest
}

func (c *captureEnqueuer) Enqueue(req dispatch.PublishRequest) bool {
	c.requests = append(c.requests, req)
	return true
}

func TestPublish_FormatsDateAndTime(t *testing.T) {
	enq := &captureEnqueuer{}
	p := NewPublisher(enq)
	p.now = func() time.Time {
		return time.Date(2026, 8, 30, 23, 5, 0, 0, time.UTC)
	}

	p.publish()

	require.Len(t, enq.requests, 2)
	assert.Equal(t, DateTopic, enq.requests[0].Topic)
	assert.Equal(t, "2026-08-30", enq.requests[0].Payload)
	assert.Equal(t, TimeTopic, enq.requests[1].Topic)
	assert.Equal(t, "23:05:00", enq.requests[1].Payload)
}

func TestUntilNextMinute(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Duration
	}{
		{time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), time.Minute},
		{time.Date(2026, 8, 30, 10, 0, 59, 0, time.UTC), time.Second},
		{time.Date(2026, 8, 30, 10, 0, 30, 500e6, time.UTC), 29*time.Second + 500*time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, untilNextMinute(tt.now))
	}
}

func TestPublisher_Lifecycle(t *testing.T) {
	p := NewPublisher(&captureEnqueuer{})

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))

	require.NoError(t, p.Stop(time.Second))
	assert.Error(t, p.Stop(time.Second))
}

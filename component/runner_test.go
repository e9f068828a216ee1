package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name   string
	failOn string // "start" or "stop"
	events *[]string
}

func (f *fakeComponent) Start(context.Context) error {
	*f.events = append(*f.events, "start:"+f.name)
	if f.failOn == "start" {
		return errors.New("start failed")
	}
	return nil
}

func (f *fakeComponent) Stop(time.Duration) error {
	*f.events = append(*f.events, "stop:"+f.name)
	if f.failOn == "stop" {
		return errors.New("stop failed")
	}
	return nil
}

func TestRunner_StartAndStopOrder(t *testing.T) {
	var events []string
	r := NewRunner()
	r.Add("a", &fakeComponent{name: "a", events: &events})
	r.Add("b", &fakeComponent{name: "b", events: &events})
	r.Add("c", &fakeComponent{name: "c", events: &events})

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop(time.Second))

	assert.Equal(t, []string{
		"start:a", "start:b", "start:c",
		"stop:c", "stop:b", "stop:a",
	}, events)
}

func TestRunner_StartFailureUnwindsStartedComponents(t *testing.T) {
	var events []string
	r := NewRunner()
	r.Add("a", &fakeComponent{name: "a", events: &events})
	r.Add("b", &fakeComponent{name: "b", failOn: "start", events: &events})
	r.Add("c", &fakeComponent{name: "c", events: &events})

	err := r.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b")

	// a was unwound; c never started.
	assert.Equal(t, []string{"start:a", "start:b", "stop:a"}, events)
	assert.Equal(t, StateFailed, r.States()["b"])
	assert.Equal(t, StateStopped, r.States()["a"])
	assert.Equal(t, StateCreated, r.States()["c"])
}

func TestRunner_StopContinuesPastFailures(t *testing.T) {
	var events []string
	r := NewRunner()
	r.Add("a", &fakeComponent{name: "a", events: &events})
	r.Add("b", &fakeComponent{name: "b", failOn: "stop", events: &events})

	require.NoError(t, r.Start(context.Background()))

	err := r.Stop(time.Second)
	require.Error(t, err)
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, events)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

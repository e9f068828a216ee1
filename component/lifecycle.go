// Package component defines the lifecycle contract shared by the hub's
// long-running pieces and a runner that starts and stops them in order.
package component

import (
	"context"
	"time"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateCreated indicates the component was created but not started
	StateCreated State = iota
	// StateStarted indicates the component is running
	StateStarted
	// StateStopped indicates the component was stopped
	StateStopped
	// StateFailed indicates the component failed during a lifecycle operation
	StateFailed
)

// String returns a string representation of the component state
func (cs State) String() string {
	switch cs {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle is the unified component contract:
//   - Start(ctx context.Context) error    // start with context passed through
//   - Stop(timeout time.Duration) error   // graceful shutdown with timeout
//
// Components never store the context; they receive it in Start and hand it
// to their background goroutines.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// HealthStatus reports a component's operational state
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	LastError  string        `json:"last_error,omitempty"`
	ErrorCount int           `json:"error_count"`
	Uptime     time.Duration `json:"uptime"`
}

// HealthReporter is implemented by components that expose health status
type HealthReporter interface {
	Health() HealthStatus
}

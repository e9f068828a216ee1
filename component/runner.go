package component

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// managed pairs a component with its name and lifecycle state.
type managed struct {
	name      string
	component Lifecycle
	state     State
}

// Runner starts a set of components in registration order and stops them in
// reverse, so producers shut down before the consumers they feed.
type Runner struct {
	components []*managed
	logger     *slog.Logger
}

// NewRunner creates an empty Runner.
func NewRunner() *Runner {
	return &Runner{logger: slog.Default().With("component", "runner")}
}

// Add registers a named component. Registration order is start order.
func (r *Runner) Add(name string, c Lifecycle) {
	r.components = append(r.components, &managed{name: name, component: c, state: StateCreated})
}

// Start starts all components in order. On failure the already-started
// components are stopped in reverse before the error is returned.
func (r *Runner) Start(ctx context.Context) error {
	for i, mc := range r.components {
		r.logger.Info("Starting component", "name", mc.name)
		if err := mc.component.Start(ctx); err != nil {
			mc.state = StateFailed
			r.stopFrom(i-1, 5*time.Second)
			return fmt.Errorf("start %s: %w", mc.name, err)
		}
		mc.state = StateStarted
	}
	return nil
}

// Stop stops all components in reverse order. All components are attempted;
// the first error is returned.
func (r *Runner) Stop(timeout time.Duration) error {
	return r.stopFrom(len(r.components)-1, timeout)
}

func (r *Runner) stopFrom(index int, timeout time.Duration) error {
	var firstErr error
	for i := index; i >= 0; i-- {
		mc := r.components[i]
		if mc.state != StateStarted {
			continue
		}
		r.logger.Info("Stopping component", "name", mc.name)
		if err := mc.component.Stop(timeout); err != nil {
			mc.state = StateFailed
			r.logger.Error("Component stop failed", "name", mc.name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", mc.name, err)
			}
			continue
		}
		mc.state = StateStopped
	}
	return firstErr
}

// States returns the current lifecycle state per component name.
func (r *Runner) States() map[string]State {
	states := make(map[string]State, len(r.components))
	for _, mc := range r.components {
		states[mc.name] = mc.state
	}
	return states
}

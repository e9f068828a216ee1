package rules

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ftcid/AutomatedHomeV2/errors"
	"github.com/ftcid/AutomatedHomeV2/metric"
)

// DefaultPollInterval matches the rule source's original reload cadence.
const DefaultPollInterval = 60 * time.Second

// Config holds Repository configuration.
type Config struct {
	// Path is the rule document location.
	Path string
	// PollInterval is how often the source fingerprint is checked.
	PollInterval time.Duration
}

// Repository owns the active RuleSet and republishes a fresh immutable
// snapshot whenever the source document changes. Readers take the current
// set through an atomic pointer and never block on the reload loop.
type Repository struct {
	path     string
	interval time.Duration

	current atomic.Pointer[RuleSet]

	logger  *slog.Logger
	metrics *repositoryMetrics

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
}

// NewRepository creates a Repository. Metrics are optional; pass a nil
// registry to disable them.
func NewRepository(cfg Config, registry *metric.MetricsRegistry) *Repository {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	r := &Repository{
		path:     cfg.Path,
		interval: interval,
		logger:   slog.Default().With("component", "rule-repository"),
		metrics:  newRepositoryMetrics(registry),
	}
	r.current.Store(EmptyRuleSet())

	return r
}

// Current returns the active RuleSet. It is never nil: before the first
// successful load it is the empty set, and after that it is always the last
// fully-parsed document.
func (r *Repository) Current() *RuleSet {
	return r.current.Load()
}

// Initialize performs the first load. An unreadable or unparsable source is
// not fatal: the repository stays on the empty set and the poll loop keeps
// retrying. This mirrors the intake contract of never failing the caller.
func (r *Repository) Initialize() error {
	rs, err := LoadFile(r.path)
	if err != nil {
		r.logger.Error("Initial rule load failed, starting with empty rule set",
			"path", r.path, "error", err)
		r.recordReload(false)
		return nil
	}

	r.install(rs)
	r.logger.Info("Rule repository initialized", "path", r.path, "rule_count", rs.Len())
	return nil
}

// Start launches the reload loop.
func (r *Repository) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Repository", "Start", "check state")
	}

	r.shutdown = make(chan struct{})
	r.done = make(chan struct{})

	go r.run(ctx, r.shutdown, r.done)

	r.logger.Info("Rule repository started", "poll_interval", r.interval)
	return nil
}

// Stop halts the reload loop. The active RuleSet remains readable.
func (r *Repository) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if r.shutdown == nil {
		r.mu.Unlock()
		return nil
	}
	close(r.shutdown)
	shutdownDone := r.done
	r.shutdown = nil
	r.done = nil
	r.mu.Unlock()

	select {
	case <-shutdownDone:
	case <-time.After(timeout):
		r.logger.Warn("Rule repository shutdown timeout", "timeout", timeout)
	}

	r.logger.Info("Rule repository stopped")
	return nil
}

func (r *Repository) run(ctx context.Context, shutdown, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.checkReload()
		case <-shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

// checkReload compares the source fingerprint against the active set and
// re-parses the document in full when it differs. A parse failure leaves the
// previous RuleSet in effect.
func (r *Repository) checkReload() {
	info, err := os.Stat(r.path)
	if err != nil {
		r.logger.Error("Rule document unreadable", "path", r.path, "error", err)
		r.recordReload(false)
		return
	}

	active := r.Current()
	if info.ModTime().Equal(active.Fingerprint) {
		return
	}

	rs, err := LoadFile(r.path)
	if err != nil {
		r.logger.Error("Rule document reload failed, keeping previous rule set",
			"path", r.path, "rule_count", active.Len(), "error", err)
		r.recordReload(false)
		return
	}

	r.install(rs)
	r.logger.Info("Rule document reloaded", "path", r.path, "rule_count", rs.Len())
}

func (r *Repository) install(rs *RuleSet) {
	r.current.Store(rs)
	r.recordReload(true)
	if r.metrics != nil {
		r.metrics.activeRules.Set(float64(rs.Len()))
	}
}

func (r *Repository) recordReload(success bool) {
	if r.metrics == nil {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	r.metrics.reloadsTotal.WithLabelValues(result).Inc()
}

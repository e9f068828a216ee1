// Package main implements the entry point for the AutomatedHome hub, a
// rule-driven dispatch engine for home automation: device state arrives on
// the bus, rules are evaluated against the accumulated state, and matching
// rules publish actions back onto the bus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ftcid/AutomatedHomeV2/clock"
	"github.com/ftcid/AutomatedHomeV2/component"
	"github.com/ftcid/AutomatedHomeV2/config"
	"github.com/ftcid/AutomatedHomeV2/dispatch"
	"github.com/ftcid/AutomatedHomeV2/engine"
	"github.com/ftcid/AutomatedHomeV2/errors"
	"github.com/ftcid/AutomatedHomeV2/expression"
	"github.com/ftcid/AutomatedHomeV2/gateway"
	"github.com/ftcid/AutomatedHomeV2/liveness"
	"github.com/ftcid/AutomatedHomeV2/metric"
	"github.com/ftcid/AutomatedHomeV2/natsclient"
	"github.com/ftcid/AutomatedHomeV2/persist"
	"github.com/ftcid/AutomatedHomeV2/rules"
	"github.com/ftcid/AutomatedHomeV2/state"
)

// Build information constants
const (
	Version = "2.0.0"
	appName = "automatedhome"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting AutomatedHome hub",
		"version", Version,
		"nats_url", cfg.NATS.URL,
		"rules_path", cfg.Rules.Path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	natsClient, err := connectBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer natsClient.Close(context.Background())

	registry := metric.NewMetricsRegistry()

	runner, eng, gw, err := buildComponents(ctx, cfg, natsClient, registry)
	if err != nil {
		return err
	}

	gw.SetHealthSource(func() map[string]component.HealthStatus {
		return map[string]component.HealthStatus{
			"engine": eng.Health(),
		}
	})

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	waitForShutdown()

	slog.Info("Shutting down", "timeout", cliCfg.ShutdownTimeout)
	cancel()
	return runner.Stop(cliCfg.ShutdownTimeout)
}

// loadConfig reads the config file (or defaults) and applies CLI overrides.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cliCfg.ConfigPath == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cliCfg.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	return cfg, nil
}

// connectBus creates the NATS client and establishes the connection.
func connectBus(ctx context.Context, cfg *config.Config) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(slog.Default()),
		natsclient.WithClientName(cfg.NATS.ClientName),
		natsclient.WithConnectTimeout(cfg.NATS.ConnectTimeout),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.NATS.ConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return client, nil
}

// buildComponents wires the full pipeline and registers everything with the
// runner in dependency order: the dispatcher and persistence writer come up
// before the engine that feeds them, the gateway last.
func buildComponents(
	ctx context.Context,
	cfg *config.Config,
	natsClient *natsclient.Client,
	registry *metric.MetricsRegistry,
) (*component.Runner, *engine.Engine, *gateway.Server, error) {
	store := state.NewStore()

	dispatcher := dispatch.NewDispatcher(natsClient, dispatch.Config{
		QueueSize: cfg.Dispatch.QueueSize,
		Retry: errors.RetryConfig{
			MaxRetries:    cfg.Dispatch.MaxRetries,
			InitialDelay:  cfg.Dispatch.InitialDelay,
			MaxDelay:      cfg.Dispatch.MaxDelay,
			BackoffFactor: 2.0,
		},
	}, registry)

	repo := rules.NewRepository(rules.Config{
		Path:         cfg.Rules.Path,
		PollInterval: cfg.Rules.PollInterval,
	}, registry)
	if err := repo.Initialize(); err != nil {
		return nil, nil, nil, fmt.Errorf("initialize rules: %w", err)
	}

	eng := engine.NewEngine(store, repo, expression.NewMatcher(), dispatcher, natsClient,
		engine.Config{ReservedPrefix: cfg.Liveness.ReservedPrefix}, registry)

	tracker := liveness.NewTracker(dispatcher, liveness.Config{
		PingTopic:      cfg.Liveness.PingTopic,
		ReservedPrefix: cfg.Liveness.ReservedPrefix,
	})
	eng.SetTracker(tracker)

	writer, err := buildPersistence(ctx, cfg, natsClient, registry)
	if err != nil {
		return nil, nil, nil, err
	}
	eng.SetPersister(writer)

	gw := gateway.NewServer(store, gateway.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, registry)
	eng.OnStateChange(gw.OnStateChange)

	runner := component.NewRunner()
	runner.Add("dispatcher", dispatcher)
	runner.Add("persistence", writer)
	runner.Add("rules", repo)
	runner.Add("engine", eng)
	if cfg.Clock.Enabled {
		runner.Add("clock", clock.NewPublisher(dispatcher))
	}
	runner.Add("gateway", gw)

	return runner, eng, gw, nil
}

// buildPersistence selects the persistence sink from config and wraps it in
// the queued writer.
func buildPersistence(
	ctx context.Context,
	cfg *config.Config,
	natsClient *natsclient.Client,
	registry *metric.MetricsRegistry,
) (*persist.Writer, error) {
	var sink persist.Sink
	switch cfg.Persist.Mode {
	case config.PersistModeKV:
		bucket, err := natsClient.EnsureKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket: cfg.Persist.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("open KV bucket: %w", err)
		}
		sink = persist.NewKVSink(bucket)
	default:
		sink = persist.NewNoopSink()
	}

	return persist.NewWriter(sink, persist.Config{
		QueueSize: cfg.Persist.QueueSize,
		Retry: errors.RetryConfig{
			MaxRetries:    cfg.Dispatch.MaxRetries,
			InitialDelay:  cfg.Dispatch.InitialDelay,
			MaxDelay:      cfg.Dispatch.MaxDelay,
			BackoffFactor: 2.0,
		},
	}, registry), nil
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Received signal", "signal", sig.String())
}

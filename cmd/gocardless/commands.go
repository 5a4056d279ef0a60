package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-gocardless/internal/pipeline"
	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/sources/gocardless"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/ajitpratap0/nebula-gocardless/pkg/logger"
	"github.com/ajitpratap0/nebula-gocardless/pkg/observability"
	"github.com/ajitpratap0/nebula-gocardless/pkg/state"
)

const envPrefix = "GOCARDLESS"

// checkResult is printed by the check command.
type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func newSpecCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "spec [connector]",
		Short: "Print the connector configuration spec",
		Long: `Print the configuration spec of a registered connector, gocardless by
default, or of every registered connector with --all.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if len(args) > 0 {
					return errors.New(errors.ErrorTypeValidation, "--all takes no connector name")
				}
				return printJSON(cmd.OutOrStdout(), registry.ListConnectorInfo())
			}

			name := gocardless.ConnectorName
			if len(args) == 1 {
				name = args[0]
			}
			info, err := registry.GetConnectorInfo(name)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Print the spec of every registered connector")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the credentials can reach the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd.Context(), configPath, func(ctx context.Context, _ *config.SyncConfig, src core.Source) error {
				if err := src.Check(ctx); err != nil {
					_ = printJSON(cmd.OutOrStdout(), checkResult{Status: "FAILED", Message: err.Error()})
					return err
				}
				return printJSON(cmd.OutOrStdout(), checkResult{Status: "SUCCEEDED"})
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newDiscoverCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the stream catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd.Context(), configPath, func(ctx context.Context, _ *config.SyncConfig, src core.Source) error {
				catalog, err := src.Discover(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), catalog)
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newReadCmd() *cobra.Command {
	var configPath, streams string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Sync streams into the configured destination",
		Long: `Read every selected stream, write its records to the destination and
checkpoint the stream's cursor to the state store once the stream completes.

Example:
  gocardless read --config sync.yaml --streams payments,payment_events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withSource(ctx, configPath, func(ctx context.Context, cfg *config.SyncConfig, src core.Source) error {
				return runSync(ctx, cfg, src, splitList(streams))
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&streams, "streams", "", "Comma-separated streams to read (default: all configured)")
	return cmd
}

func addConfigFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "config", "c", "", "Path to the sync configuration YAML file (required)")
	_ = cmd.MarkFlagRequired("config")
}

func runSync(ctx context.Context, cfg *config.SyncConfig, src core.Source, streams []string) error {
	dest, err := registry.CreateDestination(cfg.Destination.Type, &cfg.Destination)
	if err != nil {
		return err
	}
	if err := dest.Initialize(ctx, &cfg.Destination); err != nil {
		return err
	}
	defer func() { _ = dest.Close(context.Background()) }()

	store, err := state.New(ctx, cfg.State)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runner := pipeline.NewRunner(src, dest, store, &pipeline.Config{
		SourceName:   cfg.Source.Name,
		StateBackend: cfg.State.Backend,
		Streams:      streams,
		BufferSize:   cfg.Source.Performance.BufferSize,
	})
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Get().Info("read finished",
		zap.String("sync_id", result.SyncID),
		zap.Int("streams", len(result.Streams)),
		zap.Int64("records", result.Records()),
		zap.Duration("duration", result.Duration))
	return nil
}

// withSource loads the config, sets up logging and tracing, and hands fn an
// initialized source that is closed afterwards.
func withSource(ctx context.Context, configPath string, fn func(context.Context, *config.SyncConfig, core.Source) error) error {
	cfg, err := loadConfig(configPath, newEnv())
	if err != nil {
		return err
	}

	shutdown, err := setupObservability(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()
	defer func() { _ = logger.Sync() }()

	src, err := registry.CreateSource(cfg.Source.Type, &cfg.Source)
	if err != nil {
		return err
	}
	if err := src.Initialize(ctx, &cfg.Source); err != nil {
		return err
	}
	defer func() { _ = src.Close(context.Background()) }()

	return fn(ctx, cfg, src)
}

// newEnv reads GOCARDLESS_* overrides from the environment.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the sync document and applies environment overrides.
func loadConfig(path string, env *viper.Viper) (*config.SyncConfig, error) {
	cfg, err := config.LoadSyncConfig(path)
	if err != nil {
		return nil, err
	}

	if level := env.GetString("log_level"); level != "" {
		cfg.Source.Observability.LogLevel = level
	}
	if backend := env.GetString("state.backend"); backend != "" {
		cfg.State.Backend = backend
	}
	if p := env.GetString("state.path"); p != "" {
		cfg.State.Path = p
	}
	if dsn := env.GetString("state.dsn"); dsn != "" {
		cfg.State.DSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupObservability(cfg *config.SyncConfig) (func(context.Context) error, error) {
	if err := logger.Init(logger.Config{
		Level:    cfg.Source.Observability.LogLevel,
		Encoding: "json",
	}); err != nil {
		return nil, err
	}

	if !cfg.Source.Observability.EnableTracing {
		return func(context.Context) error { return nil }, nil
	}
	tracing := observability.DefaultTracingConfig(version)
	tracing.SamplingRate = cfg.Source.Observability.TracingSampleRate
	return observability.InitTracing(tracing)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

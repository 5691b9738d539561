package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rulekit/rulekit/pkg/config"
	"github.com/rulekit/rulekit/pkg/engine"
	"github.com/rulekit/rulekit/pkg/provider"
	"github.com/rulekit/rulekit/pkg/registry"
	"github.com/rulekit/rulekit/pkg/stores"
	"github.com/rulekit/rulekit/pkg/telemetry"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the rule engine",
		Long: `Start the rule engine and serve rules until interrupted.

The daemon wires together:
  - the sqlite store with the managed rule provider
  - the file provider watching the configured rules directory
  - the rule registry with template resolution
  - the engine with per-rule serialized trigger dispatch
  - the prometheus metrics endpoint, when enabled`,
		Example: `  # Run with defaults (./rulekit.db, ./rules)
  rulekit run

  # Run with a config file
  rulekit run --config /etc/rulekit/rulekit.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}

	return cmd
}

func runDaemon(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	// Store and managed provider
	var (
		disabled engine.DisabledStore
		managed  *provider.ManagedProvider
	)
	if cfg.Store.Path != "" {
		store, err := stores.NewSQLiteStore(cfg.StoreOptions())
		if err != nil {
			return err
		}
		if err := store.Init(ctx); err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		disabled = stores.NewRuleDisabler(store)

		managed, err = provider.NewManagedProvider(provider.ManagedOptions{
			Store:     store,
			Telemetry: tel,
		})
		if err != nil {
			return err
		}
		if err := managed.Load(ctx); err != nil {
			return err
		}
	}

	reg := registry.New(registry.Options{Telemetry: tel})
	eng := engine.New(engine.Options{
		Dispatch:  cfg.DispatchConfig(),
		Disabled:  disabled,
		Telemetry: tel,
	})
	defer eng.Shutdown()

	// Subscribe before attaching providers so the engine sees every rule.
	reg.Subscribe(eng)

	if managed != nil {
		if err := reg.AttachProvider(managed); err != nil {
			return err
		}
	}

	// File provider
	if cfg.Rules.Directory != "" {
		files, err := provider.NewFileProvider(provider.FileOptions{
			Directory: cfg.Rules.Directory,
			Watch:     cfg.Rules.Watch,
			Telemetry: tel,
		})
		if err != nil {
			return err
		}
		if err := reg.AttachProvider(files); err != nil {
			return err
		}
		if err := files.Start(ctx); err != nil {
			return err
		}
		defer files.Close()
	}

	if cfg.Metrics.Enabled {
		if err := tel.StartMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		log.Info().Str("address", cfg.Metrics.ListenAddress).Msg("Metrics endpoint started")
	}

	log.Info().
		Int("rules", len(reg.All())).
		Str("dispatch", cfg.Engine.DispatchMode).
		Msg("Rule engine running")

	<-ctx.Done()
	log.Info().Msg("Shutting down rule engine")
	return nil
}

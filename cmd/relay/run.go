package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"arclight-hq/relay/pkg/cli"
	"arclight-hq/relay/pkg/config"
	"arclight-hq/relay/pkg/credential"
	"arclight-hq/relay/pkg/egress"
	"arclight-hq/relay/pkg/gateway"
	"arclight-hq/relay/pkg/providers"
	"arclight-hq/relay/pkg/scheduler"
	"arclight-hq/relay/pkg/store"
	"arclight-hq/relay/pkg/syncer"
	"arclight-hq/relay/pkg/telemetry/health"
	"arclight-hq/relay/pkg/telemetry/logging"
	"arclight-hq/relay/pkg/telemetry/metrics"
	"arclight-hq/relay/pkg/telemetry/tracing"
)

// writeBehindTimeout bounds one background credential write.
const writeBehindTimeout = 10 * time.Second

// gaugeInterval is the cadence of the pool-size gauge updates.
const gaugeInterval = 30 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay gateway",
	Long: `Start the relay gateway with the specified configuration.

The gateway listens on the configured address and forwards LLM API
requests to the flagged provider, injecting pooled credentials and
routing egress directly or through the SOCKS5 proxy pool.

Examples:
  # Start with defaults and environment overrides
  relay run

  # Start with a config file
  relay run --config /etc/relay/relay.yaml

  # Override listen address
  relay run --listen 0.0.0.0:9527

  # Validate config without starting the gateway
  relay run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, haveFile, err := loadConfig(cmd)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, levelVar, err := logging.New(logging.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		RedactSecrets: cfg.Logging.RedactSecrets,
	})
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx := cli.SetupSignalHandler()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to open store: %w", err))
	}
	defer st.Close()
	slog.Info("store opened", "path", cfg.Store.Path)

	collector := metrics.NewCollector()

	registry := providers.NewRegistry(providers.RegistryConfig{
		CooldownWindow: cfg.Gateway.CooldownWindow,
		OnUpdate:       writeBehind(st, logger),
		Logger:         logger,
	})

	sched := scheduler.New(scheduler.Config{
		Registry: registry,
		Store:    st,
		Logger:   logger,
	})
	if err := sched.Start(); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to start reset scheduler: %w", err))
	}
	defer sched.Stop()

	fetcher := egress.NewListClient(egress.ListClientConfig{
		BaseURL:  cfg.Egress.ListURL,
		Token:    cfg.Egress.Token,
		PageSize: cfg.Egress.PageSize,
	})
	egressPool := egress.NewPool(egress.PoolConfig{
		Fetcher:  fetcher,
		Store:    st,
		Debounce: cfg.Egress.RefreshDebounce,
		Logger:   logger,
	})
	if err := egressPool.Load(ctx); err != nil {
		// The gateway still serves direct routes without egress
		// endpoints; proxied requests will retry the fetch.
		slog.Warn("failed to prime egress pool", "error", err)
	}
	fmt.Printf("✓ Egress pool primed (%d endpoints)\n", egressPool.Len())

	engine := syncer.New(syncer.Config{
		Registry:      registry,
		Store:         st,
		Interval:      cfg.Sync.Interval,
		ForceInterval: cfg.Sync.ForceInterval,
		Logger:        logger,
	})
	if err := engine.Materialize(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to materialize credentials: %w", err))
	}
	go engine.Run(ctx)

	total := 0
	for _, p := range registry.All() {
		total += p.Pool().Len()
	}
	fmt.Printf("✓ Credentials materialized (%d keys across %d providers)\n", total, len(registry.Names()))

	pipeline := gateway.NewPipeline(gateway.PipelineConfig{
		Registry: registry,
		Egress:   egressPool,
		Resets:   sched,
		Metrics:  collector,
		ShowChat: cfg.Gateway.ShowChat,
		Logger:   logger,
	})
	admin := gateway.NewAdmin(engine, pipeline, logger)

	healthHandler := health.NewHandler(st.Ping)
	healthHandler.AddAdvisory("egress_pool", func(context.Context) error {
		if egressPool.Len() == 0 {
			return fmt.Errorf("no egress endpoints loaded")
		}
		return nil
	})

	go updateGauges(ctx, registry, egressPool, collector)

	if haveFile {
		watcher, err := config.NewWatcher(cfgFile, logger)
		if err != nil {
			slog.Warn("failed to create config watcher", "error", err)
		} else {
			go func() {
				_ = watcher.Watch(ctx, func(next *config.Config) {
					if lvl, err := logging.ParseLevel(next.Logging.Level); err == nil {
						levelVar.Set(lvl)
						slog.Info("log level updated", "level", next.Logging.Level)
					}
					pipeline.SetShowChat(next.Gateway.ShowChat)
				})
			}()
			defer watcher.Stop()
		}
	}

	srv := gateway.NewServer(gateway.ServerConfig{
		Config:     cfg.Server,
		AuthSecret: cfg.Gateway.AuthSecret,
		Pipeline:   pipeline,
		Admin:      admin,
		Health:     healthHandler,
		Metrics:    collector.Handler(),
		Tracer:     tracer,
		Logger:     logger,
	})

	fmt.Printf("✓ Gateway listening on %s\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// loadConfig loads from the config file when it exists, falling back
// to defaults plus environment overrides when the default path is
// absent. An explicitly flagged file that is missing is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		if os.IsNotExist(err) && !cmd.Flags().Changed("config") {
			cfg, err := config.LoadDefaults()
			return cfg, false, err
		}
		return nil, false, err
	}
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	return cfg, true, err
}

// writeBehind returns the per-outcome credential persistence hook.
// Each mutated record is written on its own, off the request path.
func writeBehind(st *store.Store, logger *slog.Logger) func(credential.Record) {
	return func(rec credential.Record) {
		ctx, cancel := context.WithTimeout(context.Background(), writeBehindTimeout)
		defer cancel()
		if _, err := st.UpdateAuth(ctx, []credential.Record{rec}); err != nil {
			logger.Error("credential write-behind failed",
				"provider", rec.Provider,
				"id", rec.ID,
				"error", err,
			)
		}
	}
}

// updateGauges keeps the credential and egress pool gauges current.
func updateGauges(ctx context.Context, registry *providers.Registry, pool *egress.Pool, collector *metrics.Collector) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range registry.All() {
				var valid, invalid, cooldown int
				for _, rec := range p.Pool().Snapshot() {
					switch {
					case !rec.Valid:
						invalid++
					case rec.Cooldown:
						cooldown++
					default:
						valid++
					}
				}
				collector.SetCredentialCounts(p.Name(), valid, invalid, cooldown)
			}
			collector.SetProxyPoolSize(pool.Len())
		}
	}
}

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/altay/deepresearch/internal/config"
	"github.com/altay/deepresearch/internal/logger"
	"github.com/altay/deepresearch/internal/metrics"
	"github.com/altay/deepresearch/pkg/gateway"
	"github.com/altay/deepresearch/pkg/model"
	"github.com/altay/deepresearch/pkg/research"
	"github.com/altay/deepresearch/pkg/tools"
	"github.com/altay/deepresearch/pkg/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the research server",
	Long: `Start the research server: load configuration, register tools,
load workflow documents, and serve the stream endpoints until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetZerolog()

	m := metrics.Default()

	// Tool-result cache, seeded with curated facts.
	var cache *tools.Cache
	if cfg.Cache.Enabled {
		cache, err = tools.OpenCache(tools.CacheOptions{
			Path:    cfg.Cache.Path,
			TTL:     time.Duration(cfg.Cache.ExpiryHours * float64(time.Hour)),
			Metrics: m,
			Logger:  log,
		})
		if err != nil {
			return fmt.Errorf("failed to open tool cache: %w", err)
		}
		defer cache.Close()

		if err := tools.SeedCuratedFacts(cache); err != nil {
			log.Warn().Err(err).Msg("Failed to seed curated facts")
		}
		if err := cache.StartSweeper("@hourly"); err != nil {
			return fmt.Errorf("failed to start cache sweeper: %w", err)
		}
	}

	registry, fetcher, err := buildToolRegistry(cfg, cache)
	if err != nil {
		return err
	}
	if fetcher != nil {
		defer fetcher.Close()
	}

	workflows, err := workflow.NewRegistry(cfg.WorkflowsDir, log)
	if err != nil {
		return fmt.Errorf("failed to load workflow documents: %w", err)
	}
	defer workflows.Close()
	if err := workflows.Watch(); err != nil {
		log.Warn().Err(err).Msg("Workflow hot-reload unavailable")
	}

	manager := research.NewManager(research.ManagerConfig{
		Workflows:   workflows,
		Factory:     runnerFactory(cfg, registry, m, log),
		MaxSessions: cfg.Server.MaxConcurrentSessions,
		Metrics:     m,
		Logger:      log,
	})
	defer manager.Close()
	if err := manager.StartSweeper("@every 10m"); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		SharedSecret: cfg.Server.SharedSecret,
		Manager:      manager,
		Metrics:      m,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Strs("workflows", workflows.Names()).
		Strs("tools", registry.Names()).
		Msg("Research server running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	return server.Stop()
}

// buildToolRegistry registers the search and browse tools per config
func buildToolRegistry(cfg *config.Config, cache *tools.Cache) (*tools.Registry, *tools.RodFetcher, error) {
	registry := tools.NewRegistry()

	search := tools.NewSearchTool(tools.SearchToolOptions{
		Provider: tools.NewSerperProvider(tools.SerperOptions{
			APIKey:     cfg.Search.APIKey,
			MaxResults: cfg.Search.MaxResults,
		}),
		Cache:        cache,
		MaxResults:   cfg.Search.MaxResults,
		DomainFilter: cfg.Search.DomainFilter,
	})
	if err := registry.Register(search); err != nil {
		return nil, nil, fmt.Errorf("failed to register search tool: %w", err)
	}

	var fetcher *tools.RodFetcher
	if cfg.Browse.Enabled {
		fetcher = tools.NewRodFetcher()
		browse := tools.NewBrowseTool(tools.BrowseToolOptions{
			Fetcher:  fetcher,
			Cache:    cache,
			MaxChars: cfg.Browse.MaxPageChars,
		})
		if err := registry.Register(browse); err != nil {
			return nil, nil, fmt.Errorf("failed to register browse tool: %w", err)
		}
	}

	return registry, fetcher, nil
}

// runnerFactory builds per-session runners. The model client comes from the
// highest-priority provider profile matching the resolved workflow; when the
// workflow names no provider the first profile wins.
func runnerFactory(cfg *config.Config, registry *tools.Registry, m *metrics.Metrics, log zerolog.Logger) research.RunnerFactory {
	profiles := make([]config.ProviderProfile, len(cfg.Providers))
	copy(profiles, cfg.Providers)
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	factory := model.DefaultFactory{}

	return func(wf workflow.Config) (*research.Runner, error) {
		profile := profiles[0]
		if wf.Provider != "" {
			found := false
			for _, p := range profiles {
				if p.Provider == wf.Provider || p.ID == wf.Provider {
					profile = p
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("no credentials for provider %q", wf.Provider)
			}
		}

		client, err := factory.NewClient(profile.Provider, profile.APIKey)
		if err != nil {
			return nil, err
		}
		if wf.Model == "" {
			wf.Model = profile.Model
		}

		dispatcher := tools.NewDispatcher(tools.DispatcherConfig{
			Registry:    registry,
			Concurrency: wf.ToolConcurrency,
			Timeout:     wf.ToolTimeout,
			Metrics:     m,
			Logger:      log,
		})

		return research.NewRunner(research.RunnerConfig{
			Client:     client,
			Dispatcher: dispatcher,
			Parser:     model.NewMarkupParser(registry.Names()),
			Config:     wf,
			Metrics:    m,
			Logger:     log,
		}), nil
	}
}

// package main provides the entry point for the pdvd-depscan microservice, which tracks the pinned
// dependencies of projects and keeps their OSV vulnerability state current through a shared cache.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ortelius/pdvd-depscan/database"
	"github.com/ortelius/pdvd-depscan/events"
	"github.com/ortelius/pdvd-depscan/internal/config"
	"github.com/ortelius/pdvd-depscan/internal/metrics"
	"github.com/ortelius/pdvd-depscan/internal/services"
	"github.com/ortelius/pdvd-depscan/osv"
	"github.com/ortelius/pdvd-depscan/scheduler"
	"github.com/ortelius/pdvd-depscan/store"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

var (
	envFile string
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:           "pdvd-depscan",
	Short:         "Dependency vulnerability tracking backed by OSV",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default $CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, scanCmd)
}

// runtime holds the wired components shared by every command
type runtime struct {
	cfg          config.Config
	logger       *zap.Logger
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	cache        *vulncache.Cache
	orchestrator *vulncache.Orchestrator
	store        store.Store
	service      *services.ProjectService
	scanner      *scheduler.Scanner
	publisher    events.Publisher
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(envFile, cfgFile)
	if err != nil {
		return nil, err
	}

	logger := database.InitLogger(cfg.LogLevel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	var records store.Store
	switch cfg.RecordsBackend {
	case config.BackendArango:
		db, err := database.InitializeDatabase(ctx, cfg.Arango, logger)
		if err != nil {
			return nil, err
		}
		records = store.NewArango(db)
	default:
		records = store.NewMemory()
	}

	client := osv.NewClient(cfg.OSV, m, logger)
	cache := vulncache.NewCache()
	orch := vulncache.New(cache, client, vulncache.Options{
		WaitTimeout:  cfg.WaitTimeout,
		FetchTimeout: cfg.FetchTimeout,
		Metrics:      m,
		Logger:       logger,
	})

	publisher := events.NewPublisher(cfg.Kafka)
	svc := services.NewProjectService(records, orch, cfg.OSV.Ecosystem, logger)

	rt := &runtime{
		cfg:          cfg,
		logger:       logger,
		registry:     registry,
		metrics:      m,
		cache:        cache,
		orchestrator: orch,
		store:        records,
		service:      svc,
		scanner:      scheduler.NewScanner(records, orch, publisher, m, logger),
		publisher:    publisher,
	}

	if cfg.SeedFile != "" {
		seed, err := services.ReadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		created, err := svc.Seed(ctx, seed)
		if err != nil {
			return nil, err
		}
		logger.Sugar().Infof("Seeded %d projects from %s", created, cfg.SeedFile)
	}

	return rt, nil
}

// close waits for background refreshes and releases the publisher
func (rt *runtime) close() {
	rt.orchestrator.Wait()
	if err := rt.publisher.Close(); err != nil {
		rt.logger.Warn("Failed to close event publisher", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/admitml/predictgate/internal/auth"
	"github.com/admitml/predictgate/internal/config"
	"github.com/admitml/predictgate/internal/jobs"
	"github.com/admitml/predictgate/internal/metrics"
	"github.com/admitml/predictgate/internal/model"
	"github.com/admitml/predictgate/internal/runner"
	"github.com/admitml/predictgate/internal/server"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Start the HTTP gateway: the access gate, the single-policy runner for
synchronous predictions, and the job store with its batch-policy worker pool.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file overlaying the environment")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			return err
		}
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("predictgate starting",
		"version", Version,
		"addr", cfg.Addr,
		"workers", cfg.Workers,
		"batch_size", cfg.RunnerMaxBatchSize,
		"batch_max_wait", cfg.RunnerMaxWait,
	)

	m := metrics.New()

	var scorer model.Scorer = model.NewLinearScorer()
	if cfg.ScorerURL != "" {
		remote, err := model.NewRemoteScorer(cfg.ScorerURL, cfg.ScorerAPIKey)
		if err != nil {
			return fmt.Errorf("create remote scorer: %w", err)
		}
		scorer = remote
		logger.Info("using remote scoring backend", "endpoint", cfg.ScorerURL)
	}

	single, err := runner.New(scorer, runner.SingleConfig(), logger, m)
	if err != nil {
		return fmt.Errorf("create single runner: %w", err)
	}
	batch, err := runner.New(scorer, runner.BatchConfig(cfg.RunnerMaxBatchSize, cfg.RunnerMaxWait), logger, m)
	if err != nil {
		return fmt.Errorf("create batch runner: %w", err)
	}

	store := jobs.NewStore(batch, jobs.Config{
		MaxBatchItems: cfg.MaxBatchItems,
		Workers:       cfg.Workers,
		QueueCapacity: cfg.QueueCapacity,
		RetentionTTL:  cfg.JobRetention,
	}, logger, m)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	creds := auth.Credentials{Username: cfg.APIUsername, Password: cfg.APIPassword}

	srv := server.New(issuer, creds, single, store, logger, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx, cfg.Addr)

	// Drain in dependency order: no new jobs, then no new flushes.
	store.Close()
	batch.Close()
	single.Close()
	logger.Info("shutdown complete")

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

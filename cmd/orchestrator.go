package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hmoradi/banking-saga/internal/broker"
	"github.com/hmoradi/banking-saga/internal/config"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/metrics"
	"github.com/hmoradi/banking-saga/internal/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var orchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Consume command queues and delegate tasks to worker processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		rabbit, err := broker.Dial(broker.Config{URL: cfg.Rabbit.URL, Exchange: cfg.Rabbit.Exchange})
		if err != nil {
			return fmt.Errorf("rabbit connect: %w", err)
		}
		defer func() { _ = rabbit.Close() }()

		spawn := func() (orchestrator.Worker, error) {
			workerArgs := []string{"worker", "run", "--config", cfgPath}
			if cfg.Orchestrator.WorkerLogLevel != "" {
				workerArgs = append(workerArgs, "--log-level", cfg.Orchestrator.WorkerLogLevel)
			}
			return orchestrator.SpawnProc(cfg.Orchestrator.WorkerBinary, workerArgs...)
		}

		orch := orchestrator.New(rabbit, orchestrator.NewPool())
		orch.Spawn = spawn
		if cfg.Orchestrator.RespawnDelay > 0 {
			orch.RespawnDelay = cfg.Orchestrator.RespawnDelay
		}
		if cfg.Rabbit.Prefetch > 0 {
			orch.Prefetch = cfg.Rabbit.Prefetch
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		workers := cfg.Orchestrator.Workers
		if workers <= 0 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			w, err := spawn()
			if err != nil {
				return fmt.Errorf("spawn worker %d: %w", i, err)
			}
			orch.AddWorker(ctx, w)
		}
		logger.Log.Info("worker processes started", zap.Int("count", workers))

		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Log.Error("orchestrator stopped", zap.Error(err))
			os.Exit(1)
		}
		return nil
	},
}

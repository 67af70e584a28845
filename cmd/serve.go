package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hmoradi/banking-saga/internal/broker"
	"github.com/hmoradi/banking-saga/internal/config"
	"github.com/hmoradi/banking-saga/internal/db"
	httpSrv "github.com/hmoradi/banking-saga/internal/http"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (withdrawal intake + read endpoints)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		mysqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		redisClient, err := db.OpenRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		rabbit, err := broker.Dial(broker.Config{URL: cfg.Rabbit.URL, Exchange: cfg.Rabbit.Exchange})
		if err != nil {
			return fmt.Errorf("rabbit connect: %w", err)
		}
		defer func() { _ = rabbit.Close() }()

		server := httpSrv.NewServer(mysqlDB, chDB, redisClient, rabbit)

		errCh := make(chan error, 1)
		go func() {
			logger.Log.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				logger.Log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hmoradi/banking-saga/internal/aggregate"
	"github.com/hmoradi/banking-saga/internal/broker"
	"github.com/hmoradi/banking-saga/internal/config"
	"github.com/hmoradi/banking-saga/internal/db"
	"github.com/hmoradi/banking-saga/internal/dedup"
	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/eventstore"
	"github.com/hmoradi/banking-saga/internal/handler"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/metrics"
	"github.com/hmoradi/banking-saga/internal/notifier"
	"github.com/hmoradi/banking-saga/internal/readmodel"
	"github.com/hmoradi/banking-saga/internal/relay"
	"github.com/hmoradi/banking-saga/internal/repository"
	"github.com/hmoradi/banking-saga/internal/saga"
	wrk "github.com/hmoradi/banking-saga/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logLevel string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute saga tasks from stdin, report results on stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// stdout carries the task/result stream, so logs go to stderr only.
		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logger.Init(level)
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

		// Every event appended to the store is also published on this
		// in-process bus; the pipeline, the projection, and the relay all
		// hang off it.
		bus := event.NewBus()

		store := eventstore.NewMySQL(mysqlDB)
		repo := aggregate.NewRepository(store, bus)

		accounts := repository.NewAccountsRepository(mysqlDB)
		users := repository.NewUsersRepository(mysqlDB)
		statements := repository.NewStatementsRepository(chDB)

		views := readmodel.NewTransactions(redisClient)
		views.Subscribe(bus)

		rel := relay.New(relay.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		rel.Subscribe(bus)
		defer func() { _ = rel.Close() }()

		guard := dedup.New(cfg.Dedup.Window, cfg.Dedup.MaxEntries)
		guard.Start()
		defer guard.Stop()

		cache := saga.NewCache(&saga.StoreLoader{
			Views:    views,
			Repo:     repo,
			Accounts: accounts,
		})
		saga.NewPipeline(rabbit, guard, cache).Subscribe(bus)

		var provs []notifier.Provider
		for _, pc := range cfg.Providers {
			if !pc.Enabled || strings.TrimSpace(pc.BaseURL) == "" {
				continue
			}
			provs = append(provs, notifier.NewHTTPProvider(
				pc.Name,
				strings.TrimRight(pc.BaseURL, "/"),
				pc.NotifyPath,
				pc.TimeoutMs,
				pc.Breaker.FailThreshold,
				pc.Breaker.OpenForMs,
			))
		}
		if len(provs) == 0 {
			return fmt.Errorf("no notification providers enabled in config")
		}

		handlers := &handler.Handlers{
			Accounts:   accounts,
			Users:      users,
			Statements: statements,
			Repo:       repo,
			Notifier:   notifier.New(provs, cfg.Notifier.MaxAttempts),
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger.Log.Info("worker process ready", zap.Int("pid", os.Getpid()))

		runner := wrk.NewRunner(handler.NewRegistry(handlers))
		err = runner.Run(ctx, os.Stdin, os.Stdout)

		// Let in-flight bus subscribers (projection, relay, saga steps)
		// finish before the process exits.
		bus.Drain()
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "override configured log level")
}

package http

import (
	"context"
	"net/http"

	"github.com/hmoradi/banking-saga/internal/aggregate"
	"github.com/hmoradi/banking-saga/internal/broker"
	"github.com/hmoradi/banking-saga/internal/event"
	"github.com/hmoradi/banking-saga/internal/eventstore"
	"github.com/hmoradi/banking-saga/internal/readmodel"
	"github.com/hmoradi/banking-saga/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

// NewServer wires the intake/read API. The serve process never runs saga
// steps itself: a withdrawal request only publishes the first command.
func NewServer(mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, commands broker.CommandPublisher) *Server {
	store := eventstore.NewMySQL(mysqlDB)
	// Read-only repository: the serve process folds history but never saves.
	txRepo := aggregate.NewRepository(store, event.NewBus())
	views := readmodel.NewTransactions(rds)
	statementsRepo := repository.NewStatementsRepository(clickhouseDB)

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// routes
	v1 := e.Group("/v1")
	v1.POST("/withdrawals", withdrawHandler(commands))
	v1.GET("/transactions/:id", getTransactionHandler(txRepo))
	v1.GET("/transactions/:id/summary", getTransactionSummaryHandler(views))
	v1.GET("/accounts/:id/statements", listStatementsHandler(statementsRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

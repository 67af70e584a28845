package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/hmoradi/banking-saga/internal/aggregate"
	"github.com/hmoradi/banking-saga/internal/broker"
	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/hmoradi/banking-saga/internal/readmodel"
	"github.com/hmoradi/banking-saga/internal/repository"
	"github.com/hmoradi/banking-saga/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type withdrawRequest struct {
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               int64  `json:"amount"`
	Description          string `json:"description"`
}

type withdrawResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// withdrawHandler accepts a withdrawal request and publishes the opening
// saga command. The transaction id is minted here so callers can poll for
// the outcome immediately.
func withdrawHandler(commands broker.CommandPublisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req withdrawRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.SourceAccountID == "" || req.DestinationAccountID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "source_account_id and destination_account_id are required")
		}
		if req.Amount <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "amount must be positive")
		}
		if req.SourceAccountID == req.DestinationAccountID {
			return echo.NewHTTPError(http.StatusBadRequest, "source and destination accounts must differ")
		}

		cmd := model.WithdrawalCommand{
			TransactionID:        util.NewID(),
			SourceAccountID:      req.SourceAccountID,
			DestinationAccountID: req.DestinationAccountID,
			Amount:               req.Amount,
			Description:          req.Description,
		}
		if err := commands.PublishCommand(c.Request().Context(), model.CommandWithdrawal, cmd); err != nil {
			log.Errorf("enqueue withdrawal failed: %v", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, "could not enqueue withdrawal")
		}
		return c.JSON(http.StatusAccepted, withdrawResponse{
			TransactionID: cmd.TransactionID,
			Status:        "accepted",
		})
	}
}

// getTransactionHandler folds the transaction's event history on demand,
// so it always reflects the durable log rather than the projection.
func getTransactionHandler(repo *aggregate.Repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		t, err := repo.FindByID(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, aggregate.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "transaction not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "could not load transaction")
		}
		return c.JSON(http.StatusOK, t)
	}
}

// getTransactionSummaryHandler serves the Redis projection. It can lag the
// event log briefly while worker processes are draining.
func getTransactionSummaryHandler(views *readmodel.Transactions) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		view, err := views.Get(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, readmodel.ErrNotProjected) {
				return echo.NewHTTPError(http.StatusNotFound, "transaction summary not available")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "could not load summary")
		}
		return c.JSON(http.StatusOK, view)
	}
}

func listStatementsHandler(statements repository.StatementsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		accountID := c.Param("id")
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		offset, _ := strconv.Atoi(c.QueryParam("offset"))
		entries, err := statements.ListByAccount(c.Request().Context(), accountID, limit, offset)
		if err != nil {
			log.Errorf("list statements for %s failed: %v", accountID, err)
			return echo.NewHTTPError(http.StatusInternalServerError, "could not list statements")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"account_id": accountID,
			"entries":    entries,
		})
	}
}

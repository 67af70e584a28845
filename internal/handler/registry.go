package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hmoradi/banking-saga/internal/model"
)

// Func executes one command payload.
type Func func(ctx context.Context, payload json.RawMessage) error

// Registry routes command names to their handlers.
type Registry struct {
	m map[string]Func
}

// NewRegistry wires every saga command to its handler.
func NewRegistry(h *Handlers) *Registry {
	return &Registry{m: map[string]Func{
		model.CommandWithdrawal:         h.Withdrawal,
		model.CommandCheckBalance:       h.CheckBalance,
		model.CommandReserveBalance:     h.ReserveBalance,
		model.CommandProcessTransaction: h.ProcessTransaction,
		model.CommandConfirmTransaction: h.ConfirmTransaction,
		model.CommandUpdateStatement:    h.UpdateStatement,
		model.CommandNotifyUser:         h.NotifyUser,
		model.CommandReleaseBalance:     h.ReleaseBalance,
	}}
}

// NewFuncRegistry builds a registry from an explicit name-to-handler map.
func NewFuncRegistry(funcs map[string]Func) *Registry {
	return &Registry{m: funcs}
}

// Dispatch runs the handler for name.
func (r *Registry) Dispatch(ctx context.Context, name string, payload json.RawMessage) error {
	fn, ok := r.m[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrBadPayload, name)
	}
	return fn(ctx, payload)
}

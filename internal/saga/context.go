package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hmoradi/banking-saga/internal/aggregate"
	"github.com/hmoradi/banking-saga/internal/readmodel"
	"github.com/hmoradi/banking-saga/internal/repository"
)

// TxContext is the per-transaction scratch space: fields later saga steps
// need that the triggering event payload does not carry.
type TxContext struct {
	SourceAccountID      string
	DestinationAccountID string
	Description          string
	SourceOwnerID        string
	DestinationOwnerID   string
}

// Loader resolves a TxContext from the read models when the cache misses.
type Loader interface {
	LoadContext(ctx context.Context, txID string) (TxContext, error)
}

// Cache keeps TxContexts in memory, keyed by transaction id. Entries are
// seeded by the pipeline when it sees the creation event, backfilled lazily
// through the loader, and cleared when the saga reaches a terminal step.
type Cache struct {
	mu     sync.Mutex
	m      map[string]TxContext
	loader Loader
}

func NewCache(loader Loader) *Cache {
	return &Cache{m: make(map[string]TxContext), loader: loader}
}

// Put stores (or overwrites) the context for txID.
func (c *Cache) Put(txID string, tc TxContext) {
	c.mu.Lock()
	c.m[txID] = tc
	c.mu.Unlock()
}

// Get returns the cached context, loading it on a miss.
func (c *Cache) Get(ctx context.Context, txID string) (TxContext, error) {
	c.mu.Lock()
	tc, ok := c.m[txID]
	c.mu.Unlock()
	if ok {
		return tc, nil
	}

	if c.loader == nil {
		return TxContext{}, fmt.Errorf("saga: no context for %s", txID)
	}
	tc, err := c.loader.LoadContext(ctx, txID)
	if err != nil {
		return TxContext{}, err
	}
	c.Put(txID, tc)
	return tc, nil
}

// Reload bypasses the cache and refreshes the context from the loader.
// Steps that need owner ids use it when the seeded context predates them.
func (c *Cache) Reload(ctx context.Context, txID string) (TxContext, error) {
	if c.loader == nil {
		return TxContext{}, fmt.Errorf("saga: no loader to reload %s", txID)
	}
	tc, err := c.loader.LoadContext(ctx, txID)
	if err != nil {
		return TxContext{}, err
	}
	c.Put(txID, tc)
	return tc, nil
}

// Clear drops the context for txID. Called on terminal saga events so the
// cache does not grow without bound.
func (c *Cache) Clear(txID string) {
	c.mu.Lock()
	delete(c.m, txID)
	c.mu.Unlock()
}

// Len reports the number of cached contexts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// StoreLoader resolves contexts from the Redis projection, falling back to an
// authoritative aggregate fold, and fills in owner ids from the accounts
// table.
type StoreLoader struct {
	Views    *readmodel.Transactions
	Repo     *aggregate.Repository
	Accounts repository.AccountsRepository
}

func (l *StoreLoader) LoadContext(ctx context.Context, txID string) (TxContext, error) {
	var tc TxContext

	view, err := l.Views.Get(ctx, txID)
	switch {
	case err == nil:
		tc.SourceAccountID = view.SourceAccountID
		tc.DestinationAccountID = view.DestinationAccountID
		tc.Description = view.Description
	case errors.Is(err, readmodel.ErrNotProjected):
		t, err := l.Repo.FindByID(ctx, txID)
		if err != nil {
			return TxContext{}, fmt.Errorf("load context %s: %w", txID, err)
		}
		tc.SourceAccountID = t.SourceAccountID
		tc.DestinationAccountID = t.DestinationAccountID
		tc.Description = t.Description
	default:
		return TxContext{}, fmt.Errorf("load context %s: %w", txID, err)
	}

	if tc.SourceAccountID != "" {
		src, err := l.Accounts.GetByID(ctx, tc.SourceAccountID)
		if err != nil {
			return TxContext{}, fmt.Errorf("load context %s: source account: %w", txID, err)
		}
		tc.SourceOwnerID = src.OwnerID
	}
	if tc.DestinationAccountID != "" {
		dst, err := l.Accounts.GetByID(ctx, tc.DestinationAccountID)
		if err != nil {
			return TxContext{}, fmt.Errorf("load context %s: destination account: %w", txID, err)
		}
		tc.DestinationOwnerID = dst.OwnerID
	}

	return tc, nil
}

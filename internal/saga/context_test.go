package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	calls int
	tc    TxContext
	err   error
}

func (l *fakeLoader) LoadContext(ctx context.Context, txID string) (TxContext, error) {
	l.calls++
	if l.err != nil {
		return TxContext{}, l.err
	}
	return l.tc, nil
}

func TestCacheHitSkipsLoader(t *testing.T) {
	loader := &fakeLoader{}
	c := NewCache(loader)

	c.Put("tx-1", TxContext{SourceAccountID: "acc-src"})

	tc, err := c.Get(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-src", tc.SourceAccountID)
	assert.Zero(t, loader.calls)
}

func TestCacheMissLoadsAndCaches(t *testing.T) {
	loader := &fakeLoader{tc: TxContext{SourceAccountID: "acc-src", SourceOwnerID: "user-1"}}
	c := NewCache(loader)

	tc, err := c.Get(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", tc.SourceOwnerID)
	assert.Equal(t, 1, loader.calls)

	_, err = c.Get(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)
}

func TestCacheMissWithoutLoaderFails(t *testing.T) {
	c := NewCache(nil)
	_, err := c.Get(context.Background(), "tx-1")
	assert.Error(t, err)
}

func TestCacheLoaderErrorPropagates(t *testing.T) {
	loader := &fakeLoader{err: errors.New("read model down")}
	c := NewCache(loader)

	_, err := c.Get(context.Background(), "tx-1")
	assert.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestReloadRefreshesStaleEntry(t *testing.T) {
	loader := &fakeLoader{tc: TxContext{SourceAccountID: "acc-src", SourceOwnerID: "user-1"}}
	c := NewCache(loader)

	// Seeded without owner ids, the way the creation step does it.
	c.Put("tx-1", TxContext{SourceAccountID: "acc-src"})

	tc, err := c.Reload(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", tc.SourceOwnerID)

	tc, err = c.Get(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", tc.SourceOwnerID)
	assert.Equal(t, 1, loader.calls)
}

func TestClearDropsEntry(t *testing.T) {
	c := NewCache(nil)
	c.Put("tx-1", TxContext{SourceAccountID: "acc-src"})
	require.Equal(t, 1, c.Len())

	c.Clear("tx-1")
	assert.Zero(t, c.Len())
}

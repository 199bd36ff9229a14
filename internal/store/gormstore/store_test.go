package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurum/internal/account"
	"aurum/internal/store"
	"aurum/internal/store/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func registerOpts() store.RegisterOptions {
	return store.RegisterOptions{
		ExpireTime: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Window:     account.TradingWindow{Start: 9 * 60, End: 15 * 60},
		Switched:   account.SwitchOn,
		Creator:    "setup",
	}
}

func TestRegisterCreatesFlatAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.RegisterOrSync(ctx, "tok-a", decimal.NewFromInt(20000), 0, registerOpts())
	require.NoError(t, err)

	assert.Equal(t, "tok-a", a.Auth)
	assert.Equal(t, account.StatusActive, a.Status)
	assert.False(t, a.Position.HasPosition)
	assert.NoError(t, a.Position.Validate())
	assert.Zero(t, a.Trades.Len())
	assert.True(t, a.TotalCost.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, int64(1), a.Version)
	assert.True(t, a.LastTradeDate.IsZero())
}

func TestRegisterExistingSyncsOnlyCostAndShares(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.RegisterOrSync(ctx, "tok-b", decimal.NewFromInt(20000), 0, registerOpts())
	require.NoError(t, err)

	// Put the account into a held state with history, as the engine would.
	a.Position = account.Position{
		HasPosition:       true,
		BuyPrice:          decimal.NewFromFloat(10.0),
		Shares:            200,
		Amount:            decimal.NewFromInt(2000),
		CurrentProfitRate: decimal.NewFromFloat(0.1),
		MaxProfitRate:     decimal.NewFromFloat(0.12),
	}
	require.NoError(t, a.Trades.Append(account.TradeRecord{
		Date: time.Date(2026, 2, 2, 9, 31, 0, 0, time.UTC), Side: account.TradeBuy,
		Price: decimal.NewFromFloat(10.0), Shares: 200,
	}))
	require.NoError(t, s.Save(ctx, a, a.Version))

	// Re-provisioning with new figures must not reset engine state.
	synced, err := s.RegisterOrSync(ctx, "tok-b", decimal.NewFromInt(35000), 250, registerOpts())
	require.NoError(t, err)

	assert.True(t, synced.TotalCost.Equal(decimal.NewFromInt(35000)))
	assert.Equal(t, int64(250), synced.TotalShares)
	assert.True(t, synced.Position.HasPosition)
	assert.True(t, synced.Position.BuyPrice.Equal(decimal.NewFromFloat(10.0)))
	assert.Equal(t, 1, synced.Trades.Len())
}

func TestSaveConflictOnStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.RegisterOrSync(ctx, "tok-c", decimal.NewFromInt(1000), 0, registerOpts())
	require.NoError(t, err)

	first := a.Clone()
	second := a.Clone()

	first.LastTotalProfit = decimal.NewFromInt(5)
	require.NoError(t, s.Save(ctx, first, first.Version))

	second.LastTotalProfit = decimal.NewFromInt(9)
	err = s.Save(ctx, second, second.Version)
	assert.ErrorIs(t, err, store.ErrConflict)

	// Re-read, re-apply, re-save succeeds: the bounded retry path.
	fresh, err := s.Get(ctx, "tok-c")
	require.NoError(t, err)
	fresh.LastTotalProfit = decimal.NewFromInt(9)
	assert.NoError(t, s.Save(ctx, fresh, fresh.Version))
}

func TestSaveUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(context.Background(), account.New("ghost"), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSoftDeleteExcludesFromList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterOrSync(ctx, "tok-d", decimal.Zero, 0, registerOpts())
	require.NoError(t, err)
	_, err = s.RegisterOrSync(ctx, "tok-e", decimal.Zero, 0, registerOpts())
	require.NoError(t, err)

	require.NoError(t, s.SoftDelete(ctx, "tok-d", "admin"))

	active, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "tok-e", active[0].Auth)

	all, err := s.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// The row survives; it is only marked.
	deleted, err := s.Get(ctx, "tok-d")
	require.NoError(t, err)
	assert.Equal(t, account.StatusDeleted, deleted.Status)
}

func TestCorruptPositionFailsClosed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RegisterOrSync(ctx, "tok-f", decimal.Zero, 0, registerOpts())
	require.NoError(t, err)

	require.NoError(t, s.db.Model(&model.AccountModel{}).
		Where("auth = ?", "tok-f").
		Update("position", `{"has_position":"maybe"}`).Error)

	_, err = s.Get(ctx, "tok-f")
	assert.ErrorIs(t, err, account.ErrCorruptState)
}

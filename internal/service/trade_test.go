package service

import (
	"context"
	"testing"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveWithAttachments(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.trades.Save(ctx, "alice", domain.RawTrade{
		Symbol:     "BTCUSDT",
		Direction:  "long",
		EntryPrice: "100",
		ExitPrice:  "110",
		Size:       "2",
		Fees:       "1",
	}, []domain.Upload{
		{FileName: "entry.png", Data: []byte("entry")},
		{FileName: "exit.png", Data: []byte("exit")},
	})
	require.NoError(t, err)
	require.Nil(t, res.UploadErr)
	require.Len(t, res.Attachments, 2)
	assert.True(t, res.Trade.PnL.Decimal.Equal(decimal.NewFromInt(19)))

	detail, err := f.trades.Get(ctx, "alice", res.Trade.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", detail.Trade.Symbol)
	require.Len(t, detail.Attachments, 2)
	assert.Contains(t, detail.Attachments[0].Path, "entry.png")
	assert.Contains(t, detail.Attachments[1].Path, "exit.png")
	assert.NotNil(t, detail.Attachments[0].URL)
}

func TestSaveStopsAtFirstUploadFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.store.failPuts[1] = true

	res, err := f.trades.Save(ctx, "alice", domain.RawTrade{Symbol: "ES"}, []domain.Upload{
		{FileName: "one.png", Data: []byte("1")},
		{FileName: "two.png", Data: []byte("2")},
		{FileName: "three.png", Data: []byte("3")},
	})
	require.NoError(t, err)
	require.NotNil(t, res.UploadErr)

	assert.Equal(t, 1, res.UploadErr.Index)
	assert.Equal(t, "two.png", res.UploadErr.FileName)
	assert.True(t, domain.IsStorage(res.UploadErr))
	require.Len(t, res.Attachments, 1)
	assert.Equal(t, 2, f.store.puts)

	// the trade is kept
	got, err := f.trades.Get(ctx, "alice", res.Trade.ID, 0)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Contains(t, got.Attachments[0].Path, "one.png")
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.trades.Save(ctx, "alice", domain.RawTrade{Symbol: "   "}, []domain.Upload{{FileName: "x.png", Data: []byte("x")}})
	assert.ErrorIs(t, err, domain.ErrEmptySymbol)

	_, err = f.trades.Save(ctx, "alice", domain.RawTrade{Symbol: "ES", Direction: "sideways"}, nil)
	assert.True(t, domain.IsValidation(err))

	trades, err := f.trades.List(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Zero(t, f.store.puts)
}

func TestUpdateRecomputesPnL(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	id := f.createTrade(t, "alice", domain.RawTrade{Symbol: "ES", EntryPrice: "10", ExitPrice: "12", Size: "1"})

	updated, err := f.trades.Update(ctx, "alice", id, domain.RawTrade{
		Symbol: "ES", Direction: "short", EntryPrice: "10", ExitPrice: "12", Size: "1",
	})
	require.NoError(t, err)
	assert.True(t, updated.PnL.Decimal.Equal(decimal.NewFromInt(-2)))

	_, err = f.trades.Update(ctx, "bob", id, domain.RawTrade{Symbol: "ES"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRemovesObjects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.trades.Save(ctx, "alice", domain.RawTrade{Symbol: "ES"}, []domain.Upload{
		{FileName: "a.png", Data: []byte("a")},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.trades.Delete(ctx, "bob", res.Trade.ID), domain.ErrNotFound)
	assert.Empty(t, f.store.removed)

	require.NoError(t, f.trades.Delete(ctx, "alice", res.Trade.ID))
	assert.Equal(t, []string{res.Attachments[0].Path}, f.store.removed)

	_, err = f.trades.Get(ctx, "alice", res.Trade.ID, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	pnl, err := f.trades.Estimate(domain.RawTrade{Direction: "short", EntryPrice: "50", ExitPrice: "45", Size: "3", Fees: "0.5"})
	require.NoError(t, err)
	assert.True(t, pnl.Valid)
	assert.True(t, pnl.Decimal.Equal(decimal.RequireFromString("14.5")))

	pnl, err = f.trades.Estimate(domain.RawTrade{EntryPrice: "50"})
	require.NoError(t, err)
	assert.False(t, pnl.Valid)

	_, err = f.trades.Estimate(domain.RawTrade{Direction: "up"})
	assert.True(t, domain.IsValidation(err))
}

func TestListWithoutLimitReturnsEveryTrade(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	total := maxListLimit + 5

	for i := 0; i < total; i++ {
		tr, err := domain.Normalize(domain.RawTrade{Symbol: "ES"})
		require.NoError(t, err)
		_, err = f.repo.Create(ctx, "alice", tr)
		require.NoError(t, err)
	}

	all, err := f.trades.List(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, all, total)

	all, err = f.trades.List(ctx, "alice", -1)
	require.NoError(t, err)
	assert.Len(t, all, total)
	assert.True(t, all[0].CreatedAt.After(all[total-1].CreatedAt))

	capped, err := f.trades.List(ctx, "alice", total)
	require.NoError(t, err)
	assert.Len(t, capped, maxListLimit)

	few, err := f.trades.List(ctx, "alice", 3)
	require.NoError(t, err)
	assert.Len(t, few, 3)
}

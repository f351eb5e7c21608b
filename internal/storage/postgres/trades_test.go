package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradejournal/internal/config"
	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepo connects to JOURNAL_TEST_DATABASE_URL and skips when it is unset.
// Owners are random per test so runs can share one database.
func newTestRepo(t *testing.T) (*DB, *TradeRepository) {
	t.Helper()

	url := os.Getenv("JOURNAL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("JOURNAL_TEST_DATABASE_URL not set")
	}

	db, err := NewDB(&config.Config{
		DatabaseURL:         url,
		DatabaseMaxConns:    4,
		DatabaseMinConns:    1,
		DatabaseMaxConnLife: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(context.Background()))
	return db, NewTradeRepository(db.Pool())
}

func randomOwner() domain.Owner {
	return domain.Owner("owner-" + uuid.NewString())
}

func sampleTrade(t *testing.T, symbol string) *domain.Trade {
	t.Helper()

	tr, err := domain.Normalize(domain.RawTrade{
		Market:     "forex",
		Symbol:     symbol,
		Direction:  "short",
		EntryTime:  "2024-01-02T09:30",
		EntryPrice: "1.1050",
		ExitPrice:  "1.1000",
		Size:       "10000",
		Fees:       "2.5",
		Tags:       "A+, news",
		Mood:       "4",
		RuleBreaks: "moved stop",
	})
	require.NoError(t, err)
	return tr
}

func TestPostgresCreateGetIsOwnerScoped(t *testing.T) {
	_, repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := randomOwner(), randomOwner()

	id, err := repo.Create(ctx, alice, sampleTrade(t, "EURUSD"))
	require.NoError(t, err)

	got, err := repo.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, alice.String(), got.OwnerID)
	assert.Equal(t, domain.DirectionShort, got.Direction)
	assert.True(t, got.PnL.Decimal.Equal(decimal.RequireFromString("47.5")))
	assert.Equal(t, []string{"A+", "news"}, got.Tags)
	require.NotNil(t, got.Mood)
	assert.Equal(t, 4, *got.Mood)

	_, err = repo.Get(ctx, bob, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	trades, err := repo.List(ctx, bob, domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, trades)

	assert.ErrorIs(t, repo.Delete(ctx, bob, id), domain.ErrNotFound)

	_, err = repo.Create(ctx, "", sampleTrade(t, "X"))
	assert.ErrorIs(t, err, domain.ErrMissingOwner)
}

func TestPostgresRowLevelSecurity(t *testing.T) {
	db, repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := randomOwner(), randomOwner()

	var bypass bool
	require.NoError(t, db.Pool().QueryRow(ctx,
		`SELECT rolsuper OR rolbypassrls FROM pg_roles WHERE rolname = current_user`).Scan(&bypass))
	if bypass {
		t.Skip("database role bypasses row level security")
	}

	_, err := repo.Create(ctx, alice, sampleTrade(t, "ES"))
	require.NoError(t, err)

	tx, err := db.Pool().Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SELECT set_config('app.owner_id', $1, true)", bob.String())
	require.NoError(t, err)

	// No owner predicate: only the policy hides alice's row.
	var n int
	require.NoError(t, tx.QueryRow(ctx, `SELECT count(*) FROM trades WHERE owner_id = $1`, alice.String()).Scan(&n))
	assert.Zero(t, n)

	_, err = tx.Exec(ctx, `
		INSERT INTO trades (id, owner_id, market, symbol, direction, created_at, updated_at)
		VALUES ($1, $2, 'crypto', 'BTC', 'long', now(), now())`,
		uuid.NewString(), alice.String())
	assert.Error(t, err)
}

func TestPostgresUpdateNeverMovesUpdatedAtBack(t *testing.T) {
	_, repo := newTestRepo(t)
	ctx := context.Background()
	owner := randomOwner()

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return start }

	tr := sampleTrade(t, "BTCUSDT")
	id, err := repo.Create(ctx, owner, tr)
	require.NoError(t, err)

	repo.now = func() time.Time { return start.Add(time.Minute) }
	tr.Symbol = "ETHUSDT"
	require.NoError(t, repo.Update(ctx, owner, tr))
	assert.True(t, tr.UpdatedAt.Equal(start.Add(time.Minute)))

	// A clock that went backwards keeps the previous updated_at.
	repo.now = func() time.Time { return start.Add(-time.Hour) }
	tr.Symbol = "SOLUSDT"
	require.NoError(t, repo.Update(ctx, owner, tr))

	got, err := repo.Get(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", got.Symbol)
	assert.True(t, got.CreatedAt.Equal(start))
	assert.True(t, got.UpdatedAt.Equal(start.Add(time.Minute)))

	other := *tr
	assert.ErrorIs(t, repo.Update(ctx, randomOwner(), &other), domain.ErrNotFound)
}

func TestPostgresAttachmentsCascade(t *testing.T) {
	_, repo := newTestRepo(t)
	ctx := context.Background()
	owner := randomOwner()

	id, err := repo.Create(ctx, owner, sampleTrade(t, "ES"))
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"first.png", "second.png"} {
		a := &domain.Attachment{
			TradeID:   id,
			Path:      owner.String() + "/" + id + "/" + name,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, repo.CreateAttachment(ctx, owner, a))
	}

	err = repo.CreateAttachment(ctx, randomOwner(), &domain.Attachment{TradeID: id, Path: "x/" + uuid.NewString()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	atts, err := repo.ListAttachments(ctx, owner, id)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Contains(t, atts[0].Path, "first.png")
	assert.Contains(t, atts[1].Path, "second.png")

	require.NoError(t, repo.Delete(ctx, owner, id))
	atts, err = repo.ListAttachments(ctx, owner, id)
	require.NoError(t, err)
	assert.Empty(t, atts)
}

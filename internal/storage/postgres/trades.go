package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/pkg/logger"
	"github.com/jeovahfialho/tradejournal/pkg/metrics"
	"go.uber.org/zap"
)

const tradeColumns = `id, owner_id, market, symbol, direction, entry_time, exit_time,
	entry_price, exit_price, size, fees, pnl, r_multiple, setup, tags, notes,
	mood, sleep_hours, rule_breaks, created_at, updated_at`

const attachmentColumns = `id, trade_id, owner_id, path, caption, created_at`

// TradeRepository stores trades in PostgreSQL. Every statement runs inside a
// transaction that carries the owner identity to the row level security
// policies; the owner predicate is repeated in each query as well.
type TradeRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewTradeRepository(pool *pgxpool.Pool) *TradeRepository {
	return &TradeRepository{pool: pool, now: time.Now}
}

var _ domain.TradeRepository = (*TradeRepository)(nil)

func (r *TradeRepository) withOwner(ctx context.Context, owner domain.Owner, op string, fn func(tx pgx.Tx) error) error {
	if owner == "" {
		return domain.ErrMissingOwner
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues(op))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues(op, "error").Inc()
		return &domain.PersistenceError{Op: op, Err: fmt.Errorf("begin: %w", err)}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.owner_id', $1, true)", owner.String()); err != nil {
		metrics.DatabaseQueries.WithLabelValues(op, "error").Inc()
		return &domain.PersistenceError{Op: op, Err: fmt.Errorf("set owner: %w", err)}
	}

	if err := fn(tx); err != nil {
		metrics.DatabaseQueries.WithLabelValues(op, "error").Inc()
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return &domain.PersistenceError{Op: op, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.DatabaseQueries.WithLabelValues(op, "error").Inc()
		return &domain.PersistenceError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}

	metrics.DatabaseQueries.WithLabelValues(op, "success").Inc()
	return nil
}

func (r *TradeRepository) Create(ctx context.Context, owner domain.Owner, t *domain.Trade) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	now := r.now().UTC().Truncate(time.Microsecond)
	id := uuid.NewString()

	err := r.withOwner(ctx, owner, "trade_create", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trades (`+tradeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			id, owner.String(), t.Market, t.Symbol, string(t.Direction), t.EntryTime, t.ExitTime,
			t.EntryPrice, t.ExitPrice, t.Size, t.Fees, t.PnL, t.RMultiple, t.Setup, tagsOrEmpty(t.Tags), t.Notes,
			t.Mood, t.SleepHours, tagsOrEmpty(t.RuleBreaks), now, now,
		)
		return err
	})
	if err != nil {
		return "", err
	}

	t.ID = id
	t.OwnerID = owner.String()
	t.CreatedAt = now
	t.UpdatedAt = now

	logger.Debug("trade created", zap.String("trade_id", id), zap.String("owner_id", owner.String()))
	return id, nil
}

func (r *TradeRepository) Get(ctx context.Context, owner domain.Owner, id string) (*domain.Trade, error) {
	var trade *domain.Trade

	err := r.withOwner(ctx, owner, "trade_get", func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1 AND owner_id = $2`, id, owner.String())
		t, err := scanTrade(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		trade = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return trade, nil
}

func (r *TradeRepository) List(ctx context.Context, owner domain.Owner, opts domain.ListOptions) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`
	args := []interface{}{owner.String()}
	if opts.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, opts.Limit)
	}

	trades := make([]domain.Trade, 0)
	err := r.withOwner(ctx, owner, "trade_list", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTrade(rows)
			if err != nil {
				return fmt.Errorf("scan trade: %w", err)
			}
			trades = append(trades, *t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return trades, nil
}

func (r *TradeRepository) Update(ctx context.Context, owner domain.Owner, t *domain.Trade) error {
	if err := t.Validate(); err != nil {
		return err
	}

	now := r.now().UTC().Truncate(time.Microsecond)

	return r.withOwner(ctx, owner, "trade_update", func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE trades SET
				market = $3, symbol = $4, direction = $5, entry_time = $6, exit_time = $7,
				entry_price = $8, exit_price = $9, size = $10, fees = $11, pnl = $12, r_multiple = $13,
				setup = $14, tags = $15, notes = $16, mood = $17, sleep_hours = $18, rule_breaks = $19,
				updated_at = GREATEST($20, created_at, updated_at)
			WHERE id = $1 AND owner_id = $2
			RETURNING created_at, updated_at`,
			t.ID, owner.String(), t.Market, t.Symbol, string(t.Direction), t.EntryTime, t.ExitTime,
			t.EntryPrice, t.ExitPrice, t.Size, t.Fees, t.PnL, t.RMultiple,
			t.Setup, tagsOrEmpty(t.Tags), t.Notes, t.Mood, t.SleepHours, tagsOrEmpty(t.RuleBreaks), now,
		)
		err := row.Scan(&t.CreatedAt, &t.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		t.OwnerID = owner.String()
		return nil
	})
}

func (r *TradeRepository) Delete(ctx context.Context, owner domain.Owner, id string) error {
	return r.withOwner(ctx, owner, "trade_delete", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM trades WHERE id = $1 AND owner_id = $2`, id, owner.String())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *TradeRepository) CreateAttachment(ctx context.Context, owner domain.Owner, a *domain.Attachment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC().Truncate(time.Microsecond)
	}
	a.OwnerID = owner.String()

	return r.withOwner(ctx, owner, "attachment_create", func(tx pgx.Tx) error {
		// The owner is copied from the trade row, never taken from the caller.
		tag, err := tx.Exec(ctx, `
			INSERT INTO trade_screenshots (`+attachmentColumns+`)
			SELECT $1, t.id, t.owner_id, $4, $5, $6
			FROM trades t
			WHERE t.id = $2 AND t.owner_id = $3`,
			a.ID, a.TradeID, owner.String(), a.Path, a.Caption, a.CreatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *TradeRepository) ListAttachments(ctx context.Context, owner domain.Owner, tradeID string) ([]domain.Attachment, error) {
	atts := make([]domain.Attachment, 0)

	err := r.withOwner(ctx, owner, "attachment_list", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+attachmentColumns+`
			FROM trade_screenshots
			WHERE trade_id = $1 AND owner_id = $2
			ORDER BY created_at ASC, id ASC`,
			tradeID, owner.String(),
		)
		if err != nil {
			return fmt.Errorf("query attachments: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var a domain.Attachment
			if err := rows.Scan(&a.ID, &a.TradeID, &a.OwnerID, &a.Path, &a.Caption, &a.CreatedAt); err != nil {
				return fmt.Errorf("scan attachment: %w", err)
			}
			atts = append(atts, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return atts, nil
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t   domain.Trade
		dir string
	)

	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Market,
		&t.Symbol,
		&dir,
		&t.EntryTime,
		&t.ExitTime,
		&t.EntryPrice,
		&t.ExitPrice,
		&t.Size,
		&t.Fees,
		&t.PnL,
		&t.RMultiple,
		&t.Setup,
		&t.Tags,
		&t.Notes,
		&t.Mood,
		&t.SleepHours,
		&t.RuleBreaks,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = domain.Direction(dir)
	return &t, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/pkg/metrics"
)

const tradeColumns = `id, owner_id, market, symbol, direction, entry_time, exit_time,
	entry_price, exit_price, size, fees, pnl, r_multiple, setup, tags, notes,
	mood, sleep_hours, rule_breaks, created_at, updated_at`

const attachmentColumns = `id, trade_id, owner_id, path, caption, created_at`

// TradeRepository is the single file journal. SQLite has no row level
// security, so the owner predicate in every statement is the only guard.
type TradeRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewTradeRepository(db *DB) *TradeRepository {
	return &TradeRepository{db: db.db, now: time.Now}
}

// WithClock replaces the timestamp source.
func (r *TradeRepository) WithClock(now func() time.Time) *TradeRepository {
	r.now = now
	return r
}

var _ domain.TradeRepository = (*TradeRepository)(nil)

func (r *TradeRepository) observe(op string, err error, timer *metrics.Timer) error {
	if err == nil {
		metrics.RecordDatabaseQuery(op, "success", timer.Elapsed().Seconds())
		return nil
	}
	metrics.RecordDatabaseQuery(op, "error", timer.Elapsed().Seconds())
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrMissingOwner) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

func (r *TradeRepository) Create(ctx context.Context, owner domain.Owner, t *domain.Trade) (string, error) {
	if owner == "" {
		return "", domain.ErrMissingOwner
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	timer := metrics.NewTimer()
	now := r.now().UTC()
	id := uuid.NewString()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, owner.String(), t.Market, t.Symbol, string(t.Direction), t.EntryTime, t.ExitTime,
		t.EntryPrice, t.ExitPrice, t.Size, t.Fees, t.PnL, t.RMultiple, t.Setup, encodeList(t.Tags), t.Notes,
		t.Mood, t.SleepHours, encodeList(t.RuleBreaks), now, now,
	)
	if err := r.observe("trade_create", err, timer); err != nil {
		return "", err
	}

	t.ID = id
	t.OwnerID = owner.String()
	t.CreatedAt = now
	t.UpdatedAt = now
	return id, nil
}

func (r *TradeRepository) Get(ctx context.Context, owner domain.Owner, id string) (*domain.Trade, error) {
	if owner == "" {
		return nil, domain.ErrMissingOwner
	}

	timer := metrics.NewTimer()
	row := r.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ? AND owner_id = ?`, id, owner.String())

	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = domain.ErrNotFound
	}
	if err := r.observe("trade_get", err, timer); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TradeRepository) List(ctx context.Context, owner domain.Owner, opts domain.ListOptions) ([]domain.Trade, error) {
	if owner == "" {
		return nil, domain.ErrMissingOwner
	}

	timer := metrics.NewTimer()
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE owner_id = ? ORDER BY created_at DESC, id DESC`
	args := []interface{}{owner.String()}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	trades, err := r.queryTrades(ctx, query, args...)
	if err := r.observe("trade_list", err, timer); err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *TradeRepository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

func (r *TradeRepository) Update(ctx context.Context, owner domain.Owner, t *domain.Trade) error {
	if owner == "" {
		return domain.ErrMissingOwner
	}
	if err := t.Validate(); err != nil {
		return err
	}

	timer := metrics.NewTimer()
	err := r.update(ctx, owner, t)
	return r.observe("trade_update", err, timer)
}

func (r *TradeRepository) update(ctx context.Context, owner domain.Owner, t *domain.Trade) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var createdAt, updatedAt time.Time
	err = tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM trades WHERE id = ? AND owner_id = ?`,
		t.ID, owner.String()).Scan(&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	now := r.now().UTC()
	if now.Before(updatedAt) {
		now = updatedAt
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE trades SET
			market = ?, symbol = ?, direction = ?, entry_time = ?, exit_time = ?,
			entry_price = ?, exit_price = ?, size = ?, fees = ?, pnl = ?, r_multiple = ?,
			setup = ?, tags = ?, notes = ?, mood = ?, sleep_hours = ?, rule_breaks = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		t.Market, t.Symbol, string(t.Direction), t.EntryTime, t.ExitTime,
		t.EntryPrice, t.ExitPrice, t.Size, t.Fees, t.PnL, t.RMultiple,
		t.Setup, encodeList(t.Tags), t.Notes, t.Mood, t.SleepHours, encodeList(t.RuleBreaks), now,
		t.ID, owner.String(),
	)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	t.OwnerID = owner.String()
	t.CreatedAt = createdAt
	t.UpdatedAt = now
	return nil
}

func (r *TradeRepository) Delete(ctx context.Context, owner domain.Owner, id string) error {
	if owner == "" {
		return domain.ErrMissingOwner
	}

	timer := metrics.NewTimer()
	res, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ? AND owner_id = ?`, id, owner.String())
	if err == nil {
		var n int64
		n, err = res.RowsAffected()
		if err == nil && n == 0 {
			err = domain.ErrNotFound
		}
	}
	return r.observe("trade_delete", err, timer)
}

func (r *TradeRepository) CreateAttachment(ctx context.Context, owner domain.Owner, a *domain.Attachment) error {
	if owner == "" {
		return domain.ErrMissingOwner
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}

	timer := metrics.NewTimer()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO trade_screenshots (`+attachmentColumns+`)
		SELECT ?, t.id, t.owner_id, ?, ?, ?
		FROM trades t
		WHERE t.id = ? AND t.owner_id = ?`,
		a.ID, a.Path, a.Caption, a.CreatedAt, a.TradeID, owner.String(),
	)
	if err == nil {
		var n int64
		n, err = res.RowsAffected()
		if err == nil && n == 0 {
			err = domain.ErrNotFound
		}
	}
	if err := r.observe("attachment_create", err, timer); err != nil {
		return err
	}

	a.OwnerID = owner.String()
	return nil
}

func (r *TradeRepository) ListAttachments(ctx context.Context, owner domain.Owner, tradeID string) ([]domain.Attachment, error) {
	if owner == "" {
		return nil, domain.ErrMissingOwner
	}

	timer := metrics.NewTimer()
	atts, err := r.queryAttachments(ctx, tradeID, owner)
	if err := r.observe("attachment_list", err, timer); err != nil {
		return nil, err
	}
	return atts, nil
}

func (r *TradeRepository) queryAttachments(ctx context.Context, tradeID string, owner domain.Owner) ([]domain.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attachmentColumns+`
		FROM trade_screenshots
		WHERE trade_id = ? AND owner_id = ?
		ORDER BY created_at ASC, id ASC`,
		tradeID, owner.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	atts := make([]domain.Attachment, 0)
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.TradeID, &a.OwnerID, &a.Path, &a.Caption, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row scanner) (*domain.Trade, error) {
	var (
		t                domain.Trade
		dir              string
		tags, ruleBreaks string
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
		&tags,
		&t.Notes,
		&t.Mood,
		&t.SleepHours,
		&ruleBreaks,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = domain.Direction(dir)
	if t.Tags, err = decodeList(tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if t.RuleBreaks, err = decodeList(ruleBreaks); err != nil {
		return nil, fmt.Errorf("decode rule_breaks: %w", err)
	}
	return &t, nil
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeList(s string) ([]string, error) {
	out := make([]string, 0)
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

package service

import (
	"context"
	"time"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/pkg/logger"
	"github.com/jeovahfialho/tradejournal/pkg/metrics"
	"github.com/jeovahfialho/tradejournal/pkg/tracing"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxListLimit = 1000

type TradeService struct {
	repo        domain.TradeRepository
	attachments *AttachmentManager
	analytics   *AnalyticsService
}

func NewTradeService(repo domain.TradeRepository, attachments *AttachmentManager, analytics *AnalyticsService) *TradeService {
	return &TradeService{
		repo:        repo,
		attachments: attachments,
		analytics:   analytics,
	}
}

// SaveResult is the outcome of a save. When UploadErr is set the trade was
// stored but the upload at UploadErr.Index failed and later files were not
// attempted; Attachments holds those stored before it.
type SaveResult struct {
	Trade       *domain.Trade           `json:"trade"`
	Attachments []domain.Attachment     `json:"attachments"`
	UploadErr   *domain.AttachmentError `json:"-"`
}

type TradeDetail struct {
	Trade       *domain.Trade           `json:"trade"`
	Attachments []domain.AttachmentView `json:"attachments"`
}

// Save normalizes raw, stores the trade and then uploads files in order.
// The returned error only covers the trade itself; a trade is never rolled
// back because of a failed upload.
func (s *TradeService) Save(ctx context.Context, owner domain.Owner, raw domain.RawTrade, uploads []domain.Upload) (_ *SaveResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "trades.save", attribute.Int("uploads", len(uploads)))
	defer func() { tracing.End(span, err) }()

	trade, err := domain.Normalize(raw)
	if err != nil {
		metrics.RecordTradeSaved("invalid")
		return nil, err
	}

	id, err := s.repo.Create(ctx, owner, trade)
	if err != nil {
		metrics.RecordTradeSaved("error")
		return nil, err
	}
	metrics.RecordTradeSaved("success")
	s.analytics.Invalidate(ctx, owner)

	logger.WithContext(ctx).Info("trade saved",
		zap.String("trade_id", id),
		zap.String("symbol", trade.Symbol),
		zap.Int("uploads", len(uploads)))

	result := &SaveResult{Trade: trade}
	result.Attachments, result.UploadErr = s.Attach(ctx, owner, id, uploads)
	return result, nil
}

// Attach uploads files one at a time and stops at the first failure.
func (s *TradeService) Attach(ctx context.Context, owner domain.Owner, tradeID string, uploads []domain.Upload) ([]domain.Attachment, *domain.AttachmentError) {
	stored := make([]domain.Attachment, 0, len(uploads))

	for i, u := range uploads {
		att, err := s.attachments.Upload(ctx, owner, tradeID, u.Data, u.FileName)
		if err != nil {
			logger.WithContext(ctx).Warn("attachment upload failed",
				zap.String("trade_id", tradeID),
				zap.Int("index", i),
				zap.String("file", u.FileName),
				zap.Error(err))
			return stored, &domain.AttachmentError{Index: i, FileName: u.FileName, Err: err}
		}
		stored = append(stored, *att)
	}

	return stored, nil
}

// Get loads a trade with links to its attachments. A missing object yields
// a view with a nil URL rather than an error.
func (s *TradeService) Get(ctx context.Context, owner domain.Owner, id string, ttl time.Duration) (_ *TradeDetail, err error) {
	ctx, span := tracing.StartSpan(ctx, "trades.get", attribute.String("trade_id", id))
	defer func() { tracing.End(span, err) }()

	trade, err := s.repo.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	atts, err := s.attachments.ListForTrade(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	return &TradeDetail{
		Trade:       trade,
		Attachments: s.attachments.ResolveAll(ctx, atts, ttl),
	}, nil
}

// List returns the newest trades first. A non-positive limit returns every
// trade; a positive one is capped at maxListLimit.
func (s *TradeService) List(ctx context.Context, owner domain.Owner, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		return s.repo.List(ctx, owner, domain.ListOptions{})
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, owner, domain.ListOptions{Limit: limit})
}

// Update replaces every editable field of trade id with the normalized raw
// input, recomputing pnl the same way Save does.
func (s *TradeService) Update(ctx context.Context, owner domain.Owner, id string, raw domain.RawTrade) (_ *domain.Trade, err error) {
	ctx, span := tracing.StartSpan(ctx, "trades.update", attribute.String("trade_id", id))
	defer func() { tracing.End(span, err) }()

	trade, err := domain.Normalize(raw)
	if err != nil {
		return nil, err
	}
	trade.ID = id

	if err := s.repo.Update(ctx, owner, trade); err != nil {
		return nil, err
	}
	s.analytics.Invalidate(ctx, owner)

	return trade, nil
}

// Delete removes the trade and its attachment rows, then tries to remove
// the stored objects.
func (s *TradeService) Delete(ctx context.Context, owner domain.Owner, id string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "trades.delete", attribute.String("trade_id", id))
	defer func() { tracing.End(span, err) }()

	atts, err := s.attachments.ListForTrade(ctx, owner, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, owner, id); err != nil {
		return err
	}
	s.analytics.Invalidate(ctx, owner)
	s.attachments.Remove(ctx, atts)

	logger.WithContext(ctx).Info("trade deleted",
		zap.String("trade_id", id),
		zap.Int("attachments", len(atts)))
	return nil
}

// Estimate previews the pnl the form would store when no explicit value is
// given.
func (s *TradeService) Estimate(raw domain.RawTrade) (decimal.NullDecimal, error) {
	dir, err := domain.ParseDirection(raw.Direction)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return domain.EstimatePnL(dir,
		domain.ParseNumber(raw.EntryPrice),
		domain.ParseNumber(raw.ExitPrice),
		domain.ParseNumber(raw.Size),
		domain.ParseNumber(raw.Fees),
	), nil
}

func (s *TradeService) Summary(ctx context.Context, owner domain.Owner, limit int) (*domain.Summary, error) {
	return s.analytics.Summary(ctx, owner, limit)
}

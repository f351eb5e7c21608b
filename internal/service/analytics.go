package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/internal/storage/cache"
	"github.com/jeovahfialho/tradejournal/pkg/logger"
	"github.com/jeovahfialho/tradejournal/pkg/metrics"
	"github.com/jeovahfialho/tradejournal/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AnalyticsService summarizes an owner's newest trades. Results are cached
// per owner and window until the owner writes again.
type AnalyticsService struct {
	repo  domain.TradeRepository
	cache cache.Store
}

// NewAnalyticsService accepts a nil store, in which case nothing is cached.
func NewAnalyticsService(repo domain.TradeRepository, store cache.Store) *AnalyticsService {
	return &AnalyticsService{
		repo:  repo,
		cache: store,
	}
}

// Summary covers the newest limit trades. limit 0 means the dashboard
// window of DefaultSummaryWindow; a negative limit covers every trade.
func (s *AnalyticsService) Summary(ctx context.Context, owner domain.Owner, limit int) (_ *domain.Summary, err error) {
	if owner == "" {
		return nil, domain.ErrMissingOwner
	}
	if limit == 0 {
		limit = domain.DefaultSummaryWindow
	}

	ctx, span := tracing.StartSpan(ctx, "analytics.summary", attribute.Int("limit", limit))
	defer func() { tracing.End(span, err) }()

	key := summaryKey(owner, limit)

	if s.cache != nil {
		var cached domain.Summary
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.WithContext(ctx).Warn("summary cache read failed", zap.Error(err))
		}
		if ok {
			metrics.RecordCacheHit()
			metrics.RecordSummaryRequest(true)
			return &cached, nil
		}
		metrics.RecordCacheMiss()
	}

	opts := domain.ListOptions{}
	if limit > 0 {
		opts.Limit = limit
	}

	trades, err := s.repo.List(ctx, owner, opts)
	if err != nil {
		return nil, err
	}

	summary := domain.Summarize(trades)
	metrics.RecordSummaryRequest(false)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary); err != nil {
			logger.WithContext(ctx).Warn("summary cache write failed", zap.Error(err))
		}
	}

	return &summary, nil
}

// Invalidate drops every cached summary of owner.
func (s *AnalyticsService) Invalidate(ctx context.Context, owner domain.Owner) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, summaryPrefix(owner)); err != nil {
		logger.WithContext(ctx).Warn("summary cache invalidation failed",
			zap.String("owner_id", owner.String()),
			zap.Error(err))
	}
}

func summaryPrefix(owner domain.Owner) string {
	return fmt.Sprintf("summary:%s:", owner)
}

func summaryKey(owner domain.Owner, limit int) string {
	window := "all"
	if limit > 0 {
		window = strconv.Itoa(limit)
	}
	return summaryPrefix(owner) + window
}

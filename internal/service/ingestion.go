package service

import (
	"context"
	"fmt"
	"io"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/internal/ingestion"
	"github.com/jeovahfialho/tradejournal/pkg/logger"
	"go.uber.org/zap"
)

type IngestionService struct {
	parser    *ingestion.Parser
	loader    *ingestion.Loader
	analytics *AnalyticsService
}

func NewIngestionService(parser *ingestion.Parser, loader *ingestion.Loader, analytics *AnalyticsService) *IngestionService {
	return &IngestionService{
		parser:    parser,
		loader:    loader,
		analytics: analytics,
	}
}

type ProcessFileResult struct {
	FileName     string   `json:"file_name"`
	RecordsCount int64    `json:"records_count"`
	Errors       []string `json:"errors"`
}

// Import reads a journal CSV and stores every valid row for owner. Rows
// that fail normalization are reported and skipped; a storage failure stops
// the import with the rows before it kept.
func (s *IngestionService) Import(ctx context.Context, owner domain.Owner, name string, r io.Reader) (*ProcessFileResult, error) {
	logger.WithContext(ctx).Info("importing journal file", zap.String("file", name))

	parsed, err := s.parser.ParseFile(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	result := &ProcessFileResult{
		FileName: name,
		Errors:   make([]string, 0, len(parsed.Errors)),
	}
	for _, e := range parsed.Errors {
		result.Errors = append(result.Errors, e.Error())
	}

	count, err := s.loader.LoadTrades(ctx, owner, parsed.Rows)
	result.RecordsCount = count
	if count > 0 {
		s.analytics.Invalidate(ctx, owner)
	}
	if err != nil {
		return result, err
	}

	logger.WithContext(ctx).Info("journal file imported",
		zap.String("file", name),
		zap.Int64("records", count),
		zap.Int("skipped", len(parsed.Errors)))

	return result, nil
}

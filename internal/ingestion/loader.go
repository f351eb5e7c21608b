package ingestion

import (
	"context"
	"fmt"

	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/pkg/metrics"
)

// Loader writes parsed rows through the repository one trade at a time, in
// file order, so created_at follows the file.
type Loader struct {
	repo domain.TradeRepository
}

func NewLoader(repo domain.TradeRepository) *Loader {
	return &Loader{repo: repo}
}

// LoadTrades stops at the first failed insert and reports how many rows were
// stored before it. Nothing is rolled back.
func (l *Loader) LoadTrades(ctx context.Context, owner domain.Owner, rows []Row) (int64, error) {
	var count int64

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		if _, err := l.repo.Create(ctx, owner, row.Trade); err != nil {
			metrics.RecordTradeImported("error")
			return count, fmt.Errorf("line %d: %w", row.Line, err)
		}
		metrics.RecordTradeImported("success")
		count++
	}

	return count, nil
}

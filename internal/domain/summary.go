package domain

import "github.com/shopspring/decimal"

// DefaultSummaryWindow is how many of the newest trades the dashboard
// summary covers.
const DefaultSummaryWindow = 50

type Summary struct {
	Count    int             `json:"count"`
	Wins     int             `json:"wins"`
	Losses   int             `json:"losses"`
	TotalPnL decimal.Decimal `json:"total_pnl"`
	WinRate  float64         `json:"win_rate"`
	AverageR decimal.Decimal `json:"average_r"`
}

// Summarize reduces trades into count, total pnl, win rate (percent) and
// average R. Null pnl and null R count as zero. An empty slice yields an
// all-zero summary.
func Summarize(trades []Trade) Summary {
	s := Summary{
		Count:    len(trades),
		TotalPnL: decimal.Zero,
		AverageR: decimal.Zero,
	}
	if s.Count == 0 {
		return s
	}

	sumR := decimal.Zero
	for _, t := range trades {
		if t.PnL.Valid {
			s.TotalPnL = s.TotalPnL.Add(t.PnL.Decimal)
			switch t.PnL.Decimal.Sign() {
			case 1:
				s.Wins++
			case -1:
				s.Losses++
			}
		}
		if t.RMultiple.Valid {
			sumR = sumR.Add(t.RMultiple.Decimal)
		}
	}

	n := decimal.NewFromInt(int64(s.Count))
	s.WinRate = WinRate(s.Wins, s.Count)
	s.AverageR = sumR.Div(n)

	return s
}

func WinRate(wins, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(wins) / float64(count) * 100
}

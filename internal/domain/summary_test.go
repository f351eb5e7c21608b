package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func tradeWith(pnl, r string) Trade {
	var tr Trade
	if pnl != "" {
		tr.PnL = num(pnl)
	}
	if r != "" {
		tr.RMultiple = num(r)
	}
	return tr
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil)
	assert.Equal(t, 0, s.Count)
	assert.True(t, s.TotalPnL.IsZero())
	assert.Equal(t, float64(0), s.WinRate)
	assert.True(t, s.AverageR.IsZero())
}

func TestSummarizeNullPnL(t *testing.T) {
	t.Parallel()

	s := Summarize([]Trade{tradeWith("10", ""), tradeWith("-5", ""), tradeWith("", "")})
	assert.Equal(t, 3, s.Count)
	assert.True(t, s.TotalPnL.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, WinRate(1, 3), s.WinRate)
}

func TestSummarizeAverageR(t *testing.T) {
	t.Parallel()

	s := Summarize([]Trade{tradeWith("1", "2"), tradeWith("-1", "-1"), tradeWith("0", ""), tradeWith("3", "3")})
	assert.True(t, s.AverageR.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, float64(50), s.WinRate)
}

func TestSummarizeWinRateBounds(t *testing.T) {
	t.Parallel()

	pnls := []string{"1", "-1", "0", "", "2.5", "-0.01", "100"}
	for n := 1; n <= len(pnls); n++ {
		trades := make([]Trade, 0, n)
		wins := 0
		for _, p := range pnls[:n] {
			tr := tradeWith(p, "")
			if tr.PnL.Valid && tr.PnL.Decimal.IsPositive() {
				wins++
			}
			trades = append(trades, tr)
		}

		s := Summarize(trades)
		assert.GreaterOrEqual(t, s.WinRate, float64(0))
		assert.LessOrEqual(t, s.WinRate, float64(100))
		assert.Equal(t, 100*(float64(wins)/float64(n)), s.WinRate)
	}
}

func TestSummarizeOrderIndependent(t *testing.T) {
	t.Parallel()

	a := []Trade{tradeWith("10", "1"), tradeWith("-3", "-0.5"), tradeWith("", "2")}
	b := []Trade{a[2], a[0], a[1]}

	sa, sb := Summarize(a), Summarize(b)
	assert.True(t, sa.TotalPnL.Equal(sb.TotalPnL))
	assert.True(t, sa.AverageR.Equal(sb.AverageR))
	assert.Equal(t, sa.WinRate, sb.WinRate)
}

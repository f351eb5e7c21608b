package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalize turns raw form input into a trade ready to persist. Only the
// symbol and direction can fail; numeric and time fields that do not parse
// are dropped to null so a half-filled entry can still be logged.
func Normalize(raw RawTrade) (*Trade, error) {
	symbol := strings.TrimSpace(raw.Symbol)
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	dir, err := ParseDirection(raw.Direction)
	if err != nil {
		return nil, err
	}

	market := strings.TrimSpace(raw.Market)
	if market == "" {
		market = DefaultMarket
	}

	t := &Trade{
		Market:     market,
		Symbol:     symbol,
		Direction:  dir,
		EntryTime:  ParseTime(raw.EntryTime),
		ExitTime:   ParseTime(raw.ExitTime),
		EntryPrice: ParseNumber(raw.EntryPrice),
		ExitPrice:  ParseNumber(raw.ExitPrice),
		Size:       ParseNumber(raw.Size),
		Fees:       ParseNumber(raw.Fees),
		RMultiple:  ParseNumber(raw.RMultiple),
		Setup:      optionalText(raw.Setup),
		Tags:       SplitList(raw.Tags),
		Notes:      optionalText(raw.Notes),
		Mood:       parseMood(raw.Mood),
		SleepHours: ParseNumber(raw.SleepHours),
		RuleBreaks: SplitList(raw.RuleBreaks),
	}

	// An explicit pnl wins over the estimate, zero included.
	t.PnL = ParseNumber(raw.PnL)
	if !t.PnL.Valid {
		t.PnL = EstimatePnL(t.Direction, t.EntryPrice, t.ExitPrice, t.Size, t.Fees)
	}

	return t, nil
}

// ParseNumber returns null for blank input and for anything that is not a
// finite decimal.
func ParseNumber(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// SplitList splits comma separated input, trimming tokens and dropping empty
// ones. Order and duplicates are kept.
func SplitList(s string) []string {
	out := make([]string, 0)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

var (
	minMood = decimal.NewFromInt(math.MinInt32)
	maxMood = decimal.NewFromInt(math.MaxInt32)
)

// parseMood keeps any integer that fits the INTEGER column; the 1-5 scale is
// only offered by the entry form and is not enforced here.
func parseMood(s string) *int {
	n := ParseNumber(s)
	if !n.Valid || !n.Decimal.IsInteger() {
		return nil
	}
	if n.Decimal.LessThan(minMood) || n.Decimal.GreaterThan(maxMood) {
		return nil
	}
	v := int(n.Decimal.IntPart())
	return &v
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

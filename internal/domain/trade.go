package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// ParseDirection accepts "long" or "short" in any case. An empty value
// falls back to long, the default of the entry form.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DirectionLong):
		return DirectionLong, nil
	case string(DirectionShort):
		return DirectionShort, nil
	}
	return "", &ValidationError{Field: "direction", Code: CodeInvalidDirection}
}

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

const DefaultMarket = "crypto"

var KnownMarkets = []string{"crypto", "forex", "stocks", "options", "futures"}

// Owner is the authenticated identity every repository call is scoped to.
type Owner string

func (o Owner) String() string {
	return string(o)
}

type Trade struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Market    string    `db:"market" json:"market"`
	Symbol    string    `db:"symbol" json:"symbol"`
	Direction Direction `db:"direction" json:"direction"`

	EntryTime *time.Time `db:"entry_time" json:"entry_time"`
	ExitTime  *time.Time `db:"exit_time" json:"exit_time"`

	EntryPrice decimal.NullDecimal `db:"entry_price" json:"entry_price"`
	ExitPrice  decimal.NullDecimal `db:"exit_price" json:"exit_price"`
	Size       decimal.NullDecimal `db:"size" json:"size"`
	Fees       decimal.NullDecimal `db:"fees" json:"fees"`
	PnL        decimal.NullDecimal `db:"pnl" json:"pnl"`
	RMultiple  decimal.NullDecimal `db:"r_multiple" json:"r_multiple"`

	Setup *string  `db:"setup" json:"setup"`
	Tags  []string `db:"tags" json:"tags"`
	Notes *string  `db:"notes" json:"notes"`

	Mood       *int                `db:"mood" json:"mood"`
	SleepHours decimal.NullDecimal `db:"sleep_hours" json:"sleep_hours"`
	RuleBreaks []string            `db:"rule_breaks" json:"rule_breaks"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks the invariants a stored trade must hold regardless of how
// it was built.
func (t *Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return ErrEmptySymbol
	}
	if !t.Direction.Valid() {
		return &ValidationError{Field: "direction", Code: CodeInvalidDirection}
	}
	return nil
}

// RawTrade is unparsed form input as typed by the user.
type RawTrade struct {
	Market     string `json:"market" form:"market"`
	Symbol     string `json:"symbol" form:"symbol"`
	Direction  string `json:"direction" form:"direction"`
	EntryTime  string `json:"entry_time" form:"entry_time"`
	ExitTime   string `json:"exit_time" form:"exit_time"`
	EntryPrice string `json:"entry_price" form:"entry_price"`
	ExitPrice  string `json:"exit_price" form:"exit_price"`
	Size       string `json:"size" form:"size"`
	Fees       string `json:"fees" form:"fees"`
	PnL        string `json:"pnl" form:"pnl"`
	RMultiple  string `json:"r_multiple" form:"r_multiple"`
	Setup      string `json:"setup" form:"setup"`
	Tags       string `json:"tags" form:"tags"`
	Notes      string `json:"notes" form:"notes"`
	Mood       string `json:"mood" form:"mood"`
	SleepHours string `json:"sleep_hours" form:"sleep_hours"`
	RuleBreaks string `json:"rule_breaks" form:"rule_breaks"`
}

type ListOptions struct {
	// Limit caps the number of trades returned; zero or negative means no cap.
	Limit int
}

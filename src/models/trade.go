package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Valid reports whether d is one of the two supported directions.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Trade represents one normalized long/short position after import or manual entry.
type Trade struct {
	ID        int64 `json:"id,omitempty"`
	UserID    int64 `json:"user_id"`
	AccountID int64 `json:"account_id,omitempty"`

	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Quantity  int64     `json:"quantity"` // always positive; sign lives in Direction

	EntryPrice decimal.Decimal  `json:"entry_price"`
	ExitPrice  *decimal.Decimal `json:"exit_price,omitempty"` // nil while the position is open
	Fees       decimal.Decimal  `json:"fees"`
	PnL        decimal.Decimal  `json:"pnl"` // net of fees

	EntryTime *time.Time `json:"entry_time,omitempty"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
	TradeDate string     `json:"trade_date"` // canonical date, "2006-01-02"

	Broker   string            `json:"broker,omitempty"`
	Notes    string            `json:"notes,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"` // unmapped source fields, preserved verbatim
	DedupKey string            `json:"-"`                  // fill-id based re-import key, empty when unavailable

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// TradePatch carries the mutable fields of a trade edit. Nil means "leave unchanged".
type TradePatch struct {
	Symbol     *string          `json:"symbol,omitempty"`
	Direction  *string          `json:"direction,omitempty"`
	Quantity   *int64           `json:"quantity,omitempty"`
	EntryPrice *decimal.Decimal `json:"entry_price,omitempty"`
	ExitPrice  *decimal.Decimal `json:"exit_price,omitempty"`
	Fees       *decimal.Decimal `json:"fees,omitempty"`
	PnL        *decimal.Decimal `json:"pnl,omitempty"`
	EntryTime  *string          `json:"entry_time,omitempty"`
	ExitTime   *string          `json:"exit_time,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
}

// TouchesPnLInputs reports whether the patch changes any field the PnL is derived from.
func (p *TradePatch) TouchesPnLInputs() bool {
	return p.Direction != nil || p.Quantity != nil || p.EntryPrice != nil ||
		p.ExitPrice != nil || p.Fees != nil
}

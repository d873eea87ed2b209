package models

// RawImportRow is one loosely-typed row from a broker export. Monetary and
// quantity fields are `any` because sources deliver them as strings
// ("$(1,234.56)"), JSON numbers, or not at all; the money package sorts
// that out. Columns that don't map to a named field land in Extra.
type RawImportRow struct {
	Symbol     string `json:"symbol,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Quantity   any    `json:"quantity,omitempty"`
	EntryPrice any    `json:"entry_price,omitempty"`
	ExitPrice  any    `json:"exit_price,omitempty"`
	Fees       any    `json:"fees,omitempty"`
	PnL        any    `json:"pnl,omitempty"`

	EntryTime string `json:"entry_time,omitempty"`
	ExitTime  string `json:"exit_time,omitempty"`
	BuyTime   string `json:"buy_time,omitempty"`
	SellTime  string `json:"sell_time,omitempty"`

	BuyFillID  string `json:"buy_fill_id,omitempty"`
	SellFillID string `json:"sell_fill_id,omitempty"`

	Broker string            `json:"broker,omitempty"`
	Notes  string            `json:"notes,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Row outcome statuses.
const (
	RowStatusImported  = "imported"
	RowStatusDuplicate = "duplicate"
	RowStatusFailed    = "failed"
)

// RowOutcome is the per-row result of a batch import, in input order.
type RowOutcome struct {
	Index   int          `json:"index"`
	Status  string       `json:"status"`
	TradeID int64        `json:"trade_id,omitempty"`
	Error   string       `json:"error,omitempty"`
	Row     RawImportRow `json:"row,omitempty"`
}

// BatchResult reports the outcome of one import batch. A batch always
// produces a result; per-row failures are data here, not errors.
type BatchResult struct {
	BatchID    string       `json:"batch_id"`
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Duplicates int          `json:"duplicates"`
	Cancelled  bool         `json:"cancelled,omitempty"`
	Outcomes   []RowOutcome `json:"outcomes"`

	// Set when the post-batch analytics recompute failed. The imported
	// trades are committed regardless; statistics are stale until the
	// next analytics read.
	RecomputeError string `json:"recompute_error,omitempty"`
}

package processors

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/money"
	"github.com/username/tradefolio/backend/src/security/validation"
	"github.com/username/tradefolio/backend/src/utils"
)

// MissingFieldError reports a mandatory import field that is absent or
// unusable. It is localized to one row and never aborts a batch.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// TradeMapper converts one raw import row into a normalized Trade.
// It is a pure transformation: it never touches the store, which keeps
// validation testable in isolation.
type TradeMapper struct{}

func NewTradeMapper() *TradeMapper { return &TradeMapper{} }

// Map validates and normalizes a raw row for the given owner. now is the
// import time, used as the last-resort canonical date.
func (m *TradeMapper) Map(row models.RawImportRow, userID, accountID int64, now time.Time) (*models.Trade, error) {
	symbol := strings.TrimSpace(row.Symbol)
	if symbol == "" {
		return nil, &MissingFieldError{Field: "symbol"}
	}

	// A fractional quantity would be silently truncated below, changing
	// the position size; reject it like any other unusable value.
	qtyDec, qtyOK := money.Parse(row.Quantity)
	if !qtyOK || qtyDec.IsZero() || !qtyDec.IsInteger() {
		return nil, &MissingFieldError{Field: "quantity"}
	}

	if !present(row.EntryPrice) {
		return nil, &MissingFieldError{Field: "entry_price"}
	}
	entryPrice, ok := money.Parse(row.EntryPrice)
	if !ok {
		// Malformed mandatory field is equivalent to a missing one.
		return nil, &MissingFieldError{Field: "entry_price"}
	}

	if !present(row.ExitPrice) {
		return nil, &MissingFieldError{Field: "exit_price"}
	}
	exitPrice, ok := money.Parse(row.ExitPrice)
	if !ok {
		return nil, &MissingFieldError{Field: "exit_price"}
	}

	entryTime := parseOptionalTime(row.EntryTime)
	exitTime := parseOptionalTime(row.ExitTime)

	direction := resolveDirection(row, qtyDec)
	quantity := qtyDec.Abs().IntPart()
	if quantity <= 0 {
		return nil, &MissingFieldError{Field: "quantity"}
	}

	// Fees default to zero and are always non-negative.
	fees := money.Normalize(row.Fees).Abs()

	// Use the source-supplied PnL when it parses; otherwise derive it.
	// A malformed optional PnL falls back to the computed value.
	var pnl decimal.Decimal
	if v, ok := money.Parse(row.PnL); ok {
		pnl = v
	} else {
		pnl = ComputePnL(direction, entryPrice, exitPrice, quantity, fees)
	}

	trade := &models.Trade{
		UserID:     userID,
		AccountID:  accountID,
		Symbol:     symbol,
		Direction:  direction,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		ExitPrice:  &exitPrice,
		Fees:       fees,
		PnL:        pnl,
		EntryTime:  entryTime,
		ExitTime:   exitTime,
		TradeDate:  utils.CanonicalDate(entryTime, exitTime, now),
		Broker:     strings.TrimSpace(row.Broker),
		Notes:      validation.StripUnprintable(validation.SanitizeForFormulaInjection(row.Notes)),
		DedupKey:   dedupKey(row),
	}

	if len(row.Extra) > 0 {
		trade.Metadata = make(map[string]string, len(row.Extra))
		for k, v := range row.Extra {
			trade.Metadata[k] = v
		}
	}

	return trade, nil
}

// ComputePnL derives the net profit-and-loss from pricing:
// (exit - entry) * qty for long, (entry - exit) * qty for short, minus fees.
func ComputePnL(direction models.Direction, entry, exit decimal.Decimal, quantity int64, fees decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(quantity)
	var gross decimal.Decimal
	if direction == models.DirectionShort {
		gross = entry.Sub(exit).Mul(qty)
	} else {
		gross = exit.Sub(entry).Mul(qty)
	}
	return gross.Sub(fees)
}

// resolveDirection applies the resolution order: explicit direction field,
// then sign of quantity, then relative order of buy/sell timestamps, then
// the long default.
func resolveDirection(row models.RawImportRow, qty decimal.Decimal) models.Direction {
	explicit := models.Direction(strings.ToLower(strings.TrimSpace(row.Direction)))
	if explicit.Valid() {
		return explicit
	}
	if qty.IsNegative() {
		return models.DirectionShort
	}
	if buyTime, ok := utils.ParseTimestamp(row.BuyTime); ok {
		if sellTime, ok := utils.ParseTimestamp(row.SellTime); ok && sellTime.Before(buyTime) {
			// Sold before buying back: a short position.
			return models.DirectionShort
		}
	}
	return models.DirectionLong
}

// dedupKey builds the natural re-import key from fill identifiers. Empty
// when neither fill id is present, in which case duplicate detection is
// not attempted.
func dedupKey(row models.RawImportRow) string {
	buy := strings.TrimSpace(row.BuyFillID)
	sell := strings.TrimSpace(row.SellFillID)
	if buy == "" && sell == "" {
		return ""
	}
	return buy + "|" + sell
}

func parseOptionalTime(s string) *time.Time {
	if t, ok := utils.ParseTimestamp(s); ok {
		return &t
	}
	return nil
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

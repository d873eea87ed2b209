// Package money normalizes the free-form currency values found in broker
// exports into exact decimals. It is a best-effort sanitizer, not a strict
// parser: anything it cannot interpret becomes zero, never an error.
package money

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = []string{"$", "€", "£"}

// Normalize converts a raw monetary value to a decimal. nil, empty strings,
// a lone currency symbol, and garbage all yield zero. Strings may carry a
// leading currency symbol, thousands separators, and parentheses or a
// leading minus for negatives (e.g. "$(1,234.56)" is -1234.56).
func Normalize(raw any) decimal.Decimal {
	d, _ := Parse(raw)
	return d
}

// Parse is Normalize plus an ok flag, for callers that must distinguish a
// genuine zero from an absent or unparseable value.
func Parse(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		return parseString(v.String())
	case string:
		return parseString(v)
	}
	return decimal.Zero, false
}

func parseString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	// Parentheses mean negative; strip them before sign handling so a
	// minus inside the parens can't double-apply.
	negative := false
	if strings.ContainsAny(s, "()") {
		negative = true
		s = strings.ReplaceAll(s, "(", "")
		s = strings.ReplaceAll(s, ")", "")
		s = strings.TrimSpace(s)
	}

	for _, sym := range currencySymbols {
		s = strings.TrimPrefix(s, sym)
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	if s == "" {
		// Lone currency symbol or sign.
		return decimal.Zero, false
	}

	// After stripping, only digits and at most one decimal point remain.
	dots := 0
	for _, r := range s {
		if r == '.' {
			dots++
			if dots > 1 {
				return decimal.Zero, false
			}
			continue
		}
		if r < '0' || r > '9' {
			return decimal.Zero, false
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// Round2 rounds a display aggregate to 2 decimal places. Intermediate sums
// must stay unrounded; call this only on final values.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

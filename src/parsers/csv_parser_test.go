package parsers

import (
	"strings"
	"testing"
)

func TestParseHeaderAliases(t *testing.T) {
	csvData := strings.Join([]string{
		"Ticker,Side,Qty,Entry Price,Exit-Price,Commission,Open Time,Close Time",
		"AAPL,long,5,100.00,110.00,2.00,2025-03-03 10:00:00,2025-03-03 15:00:00",
	}, "\n")

	rows, err := NewCSVRowParser().Parse(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}

	row := rows[0]
	if row.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", row.Symbol)
	}
	if row.Direction != "long" {
		t.Errorf("Direction = %q, want long", row.Direction)
	}
	if row.Quantity != "5" {
		t.Errorf("Quantity = %v, want \"5\"", row.Quantity)
	}
	if row.EntryPrice != "100.00" || row.ExitPrice != "110.00" {
		t.Errorf("prices = %v/%v, want 100.00/110.00", row.EntryPrice, row.ExitPrice)
	}
	if row.Fees != "2.00" {
		t.Errorf("Fees = %v, want \"2.00\"", row.Fees)
	}
	if row.EntryTime != "2025-03-03 10:00:00" || row.ExitTime != "2025-03-03 15:00:00" {
		t.Errorf("times = %q/%q", row.EntryTime, row.ExitTime)
	}
}

func TestParseUnknownColumnsLandInExtra(t *testing.T) {
	csvData := strings.Join([]string{
		"symbol,quantity,entry_price,exit_price,Strategy,Setup Grade",
		"MSFT,10,50,51,breakout,A",
		"NVDA,3,800,790,,B",
	}, "\n")

	rows, err := NewCSVRowParser().Parse(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	if rows[0].Extra["Strategy"] != "breakout" || rows[0].Extra["Setup Grade"] != "A" {
		t.Errorf("row 0 Extra = %v, want unmapped columns preserved under original headers", rows[0].Extra)
	}
	// Empty unmapped cells are not recorded.
	if _, ok := rows[1].Extra["Strategy"]; ok {
		t.Errorf("row 1 Extra = %v, empty cell should be absent", rows[1].Extra)
	}
	if rows[1].Extra["Setup Grade"] != "B" {
		t.Errorf("row 1 Extra = %v, want Setup Grade B", rows[1].Extra)
	}
}

func TestParseEmptyMonetaryCellsAreNil(t *testing.T) {
	csvData := strings.Join([]string{
		"symbol,quantity,entry_price,exit_price,fees,pnl",
		"AAPL,5,100.00,,,12.50",
	}, "\n")

	rows, err := NewCSVRowParser().Parse(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	row := rows[0]
	// Absent cells must stay nil so validation can tell them apart from
	// a genuine zero.
	if row.ExitPrice != nil {
		t.Errorf("ExitPrice = %v, want nil for empty cell", row.ExitPrice)
	}
	if row.Fees != nil {
		t.Errorf("Fees = %v, want nil for empty cell", row.Fees)
	}
	if row.PnL != "12.50" {
		t.Errorf("PnL = %v, want \"12.50\"", row.PnL)
	}
}

func TestParseSkipsEmptyRecordsAndShortRows(t *testing.T) {
	csvData := strings.Join([]string{
		"symbol,quantity,entry_price,exit_price",
		"AAPL,5,100,110",
		",,,",
		"MSFT,3",
	}, "\n")

	rows, err := NewCSVRowParser().Parse(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (blank record skipped)", len(rows))
	}
	if rows[1].Symbol != "MSFT" || rows[1].EntryPrice != nil {
		t.Errorf("short row = %+v, want symbol set and missing cells nil", rows[1])
	}
}

func TestParseHeaderError(t *testing.T) {
	if _, err := NewCSVRowParser().Parse(strings.NewReader("")); err == nil {
		t.Error("empty input should fail on the header read")
	}
}

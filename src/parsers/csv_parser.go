// Package parsers turns uploaded broker CSV files into raw import rows.
// Column headers are matched against the aliases seen across broker
// export formats; unknown columns are preserved in the row's Extra map
// so no input is lost.
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/tradefolio/backend/src/models"
)

// columnAliases maps a canonical field to the header names brokers use
// for it. Header matching is case-insensitive with spaces, dashes, and
// underscores collapsed.
var columnAliases = map[string][]string{
	"symbol":       {"symbol", "ticker", "instrument", "product"},
	"direction":    {"direction", "side", "position"},
	"quantity":     {"quantity", "qty", "size", "shares", "contracts"},
	"entry_price":  {"entryprice", "entry", "openprice", "buyprice", "pricein"},
	"exit_price":   {"exitprice", "exit", "closeprice", "sellprice", "priceout"},
	"fees":         {"fees", "fee", "commission", "commissions"},
	"pnl":          {"pnl", "profit", "netpnl", "profitloss", "gain"},
	"entry_time":   {"entrytime", "entrydate", "opentime", "opendate", "date"},
	"exit_time":    {"exittime", "exitdate", "closetime", "closedate"},
	"buy_time":     {"buytime", "buydate"},
	"sell_time":    {"selltime", "selldate"},
	"buy_fill_id":  {"buyfillid", "buyexecid", "buyorderid"},
	"sell_fill_id": {"sellfillid", "sellexecid", "sellorderid"},
	"broker":       {"broker", "source", "exchange"},
	"notes":        {"notes", "note", "comment", "comments"},
}

type CSVRowParser struct{}

func NewCSVRowParser() *CSVRowParser {
	return &CSVRowParser{}
}

// Parse reads the full CSV and returns one raw row per record, in file
// order. Records shorter than the header are tolerated; fully empty
// records are skipped.
func (p *CSVRowParser) Parse(file io.Reader) ([]models.RawImportRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	fieldByColumn := make(map[int]string, len(header))
	for i, name := range header {
		if field, ok := canonicalField(name); ok {
			fieldByColumn[i] = field
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var rows []models.RawImportRow
	for _, record := range records {
		if isEmptyRecord(record) {
			continue
		}
		var row models.RawImportRow
		for i, value := range record {
			value = strings.TrimSpace(value)
			field, mapped := fieldByColumn[i]
			if !mapped {
				if i < len(header) && value != "" {
					if row.Extra == nil {
						row.Extra = make(map[string]string)
					}
					row.Extra[header[i]] = value
				}
				continue
			}
			setField(&row, field, value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func setField(row *models.RawImportRow, field, value string) {
	switch field {
	case "symbol":
		row.Symbol = value
	case "direction":
		row.Direction = value
	case "quantity":
		row.Quantity = valueOrNil(value)
	case "entry_price":
		row.EntryPrice = valueOrNil(value)
	case "exit_price":
		row.ExitPrice = valueOrNil(value)
	case "fees":
		row.Fees = valueOrNil(value)
	case "pnl":
		row.PnL = valueOrNil(value)
	case "entry_time":
		row.EntryTime = value
	case "exit_time":
		row.ExitTime = value
	case "buy_time":
		row.BuyTime = value
	case "sell_time":
		row.SellTime = value
	case "buy_fill_id":
		row.BuyFillID = value
	case "sell_fill_id":
		row.SellFillID = value
	case "broker":
		row.Broker = value
	case "notes":
		row.Notes = value
	}
}

// valueOrNil keeps absent monetary cells distinguishable from zero ones.
func valueOrNil(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func canonicalField(headerName string) (string, bool) {
	normalized := normalizeHeader(headerName)
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if normalized == alias {
				return field, true
			}
		}
	}
	return "", false
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "", "-", "", "_", "", "/", "").Replace(name)
	return name
}

func isEmptyRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

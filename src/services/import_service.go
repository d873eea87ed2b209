package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/parsers"
	"github.com/username/tradefolio/backend/src/processors"
	"github.com/username/tradefolio/backend/src/store"
)

// ImportService orchestrates batch imports: one mapper pass and one store
// insert per row, one analytics recompute per batch. No row's failure
// aborts the batch; per-row errors are data in the BatchResult.
type ImportService struct {
	mapper    *processors.TradeMapper
	rowParser *parsers.CSVRowParser
	trades    store.TradeStore
	accounts  store.AccountStore
	analytics *AnalyticsService
}

func NewImportService(trades store.TradeStore, accounts store.AccountStore, analytics *AnalyticsService) *ImportService {
	return &ImportService{
		mapper:    processors.NewTradeMapper(),
		rowParser: parsers.NewCSVRowParser(),
		trades:    trades,
		accounts:  accounts,
		analytics: analytics,
	}
}

// ImportBatch processes rows in order for one user. accountID may be nil,
// in which case the user's default account is resolved once for the whole
// batch. Cancellation stops between rows: committed rows stay committed
// and the recompute still runs over them.
func (s *ImportService) ImportBatch(ctx context.Context, userID int64, accountID *int64, rows []models.RawImportRow) (*models.BatchResult, error) {
	started := time.Now()
	logger.L.Info("ImportBatch START", "userID", userID, "rows", len(rows))

	var acctID int64
	if accountID != nil {
		acctID = *accountID
	} else {
		resolved, err := s.accounts.DefaultAccountFor(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("error resolving default account for user %d: %w", userID, err)
		}
		acctID = resolved
	}

	result := &models.BatchResult{
		BatchID:  uuid.NewString(),
		Outcomes: make([]models.RowOutcome, 0, len(rows)),
	}

	for i, row := range rows {
		if ctx.Err() != nil {
			result.Cancelled = true
			logger.L.Warn("ImportBatch cancelled mid-flight", "userID", userID,
				"processed", len(result.Outcomes), "remaining", len(rows)-i)
			break
		}
		result.Outcomes = append(result.Outcomes, s.importRow(ctx, userID, acctID, i, row))
		switch result.Outcomes[i].Status {
		case models.RowStatusImported:
			result.Successful++
		case models.RowStatusDuplicate:
			result.Duplicates++
		default:
			result.Failed++
		}
	}
	result.Total = len(result.Outcomes)

	if result.Successful > 0 {
		s.analytics.MarkStale(userID)
		// The batch is committed; a cancelled request context must not
		// leave the snapshot unrepaired.
		if _, err := s.analytics.Recompute(context.WithoutCancel(ctx), userID); err != nil {
			logger.L.Warn("Post-batch analytics recompute failed; snapshot left stale",
				"userID", userID, "error", err)
			result.RecomputeError = err.Error()
		}
	}

	logger.L.Info("ImportBatch END", "userID", userID, "total", result.Total,
		"successful", result.Successful, "failed", result.Failed,
		"duplicates", result.Duplicates, "duration", time.Since(started))
	return result, nil
}

func (s *ImportService) importRow(ctx context.Context, userID, acctID int64, index int, row models.RawImportRow) models.RowOutcome {
	outcome := models.RowOutcome{Index: index, Row: row}

	trade, err := s.mapper.Map(row, userID, acctID, time.Now().UTC())
	if err != nil {
		outcome.Status = models.RowStatusFailed
		outcome.Error = err.Error()
		logger.L.Debug("Row mapping failed", "userID", userID, "index", index, "error", err)
		return outcome
	}

	if trade.DedupKey != "" {
		existing, err := s.trades.FindByDedupKey(ctx, userID, trade.DedupKey)
		if err != nil {
			logger.L.Warn("Dedup lookup failed, attempting insert anyway",
				"userID", userID, "index", index, "error", err)
		} else if existing != nil {
			outcome.Status = models.RowStatusDuplicate
			outcome.TradeID = existing.ID
			return outcome
		}
	}

	if err := s.trades.Insert(ctx, trade); err != nil {
		if errors.Is(err, store.ErrConflict) && trade.DedupKey != "" {
			// A concurrent import may have won the race on the dedup key.
			// Only call it a duplicate if the existing trade is really
			// there; a referential conflict stays a failure.
			if existing, ferr := s.trades.FindByDedupKey(ctx, userID, trade.DedupKey); ferr == nil && existing != nil {
				outcome.Status = models.RowStatusDuplicate
				outcome.TradeID = existing.ID
				return outcome
			}
		}
		outcome.Status = models.RowStatusFailed
		outcome.Error = err.Error()
		logger.L.Debug("Row insert failed", "userID", userID, "index", index, "error", err)
		return outcome
	}

	outcome.Status = models.RowStatusImported
	outcome.TradeID = trade.ID
	return outcome
}

// ImportCSV parses an uploaded CSV into raw rows and runs them through
// ImportBatch.
func (s *ImportService) ImportCSV(ctx context.Context, userID int64, accountID *int64, file io.Reader) (*models.BatchResult, error) {
	rows, err := s.rowParser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return s.ImportBatch(ctx, userID, accountID, rows)
}

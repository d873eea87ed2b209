package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/store"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// fakeTradeStore is an in-memory TradeStore with optional fault injection.
type fakeTradeStore struct {
	mu      sync.Mutex
	nextID  int64
	trades  map[int64]*models.Trade
	listErr error

	// listHook, when set, runs after ListByUser captures its result and
	// before it returns. Lets tests interleave mutations with a listing
	// that has already happened.
	listHook func()
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{trades: make(map[int64]*models.Trade)}
}

func (f *fakeTradeStore) Insert(ctx context.Context, t *models.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.DedupKey != "" {
		for _, existing := range f.trades {
			if existing.UserID == t.UserID && existing.DedupKey == t.DedupKey {
				return fmt.Errorf("%w: dedup key %q", store.ErrConflict, t.DedupKey)
			}
		}
	}
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.trades[t.ID] = &cp
	return nil
}

func (f *fakeTradeStore) Update(ctx context.Context, t *models.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trades[t.ID]; !ok {
		return fmt.Errorf("trade %d not found", t.ID)
	}
	cp := *t
	f.trades[t.ID] = &cp
	return nil
}

func (f *fakeTradeStore) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.trades, id)
	return nil
}

func (f *fakeTradeStore) Get(ctx context.Context, id int64) (*models.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTradeStore) ListByUser(ctx context.Context, userID int64) ([]models.Trade, error) {
	f.mu.Lock()
	var out []models.Trade
	for id := int64(1); id <= f.nextID; id++ {
		if t, ok := f.trades[id]; ok && t.UserID == userID {
			out = append(out, *t)
		}
	}
	listErr := f.listErr
	hook := f.listHook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if listErr != nil {
		return nil, listErr
	}
	return out, nil
}

func (f *fakeTradeStore) ListByUserDateRange(ctx context.Context, userID int64, from, to string) ([]models.Trade, error) {
	all, err := f.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []models.Trade
	for _, t := range all {
		if from != "" && t.TradeDate < from {
			continue
		}
		if to != "" && t.TradeDate > to {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTradeStore) FindByDedupKey(ctx context.Context, userID int64, key string) (*models.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.trades {
		if t.UserID == userID && t.DedupKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeTradeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.trades)
}

type fakeAnalyticsStore struct {
	mu         sync.Mutex
	snapshots  map[int64]*models.Analytics
	replaceErr error
	replaces   int
}

func newFakeAnalyticsStore() *fakeAnalyticsStore {
	return &fakeAnalyticsStore{snapshots: make(map[int64]*models.Analytics)}
}

func (f *fakeAnalyticsStore) Get(ctx context.Context, userID int64) (*models.Analytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots[userID], nil
}

func (f *fakeAnalyticsStore) Replace(ctx context.Context, a *models.Analytics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaces++
	f.snapshots[a.UserID] = a
	return nil
}

func (f *fakeAnalyticsStore) replaceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaces
}

type fakeAccountStore struct{}

func (fakeAccountStore) DefaultAccountFor(ctx context.Context, userID int64) (int64, error) {
	return 7, nil
}

func newTestServices(trades *fakeTradeStore, analytics *fakeAnalyticsStore) (*ImportService, *AnalyticsService) {
	analyticsSvc := NewAnalyticsService(trades, analytics, cache.New(time.Minute, time.Minute))
	return NewImportService(trades, fakeAccountStore{}, analyticsSvc), analyticsSvc
}

func batchRow(symbol string) models.RawImportRow {
	return models.RawImportRow{
		Symbol:     symbol,
		Quantity:   "10",
		EntryPrice: "50.00",
		ExitPrice:  "51.00",
		EntryTime:  "2025-03-03 10:00:00",
		ExitTime:   "2025-03-03 11:00:00",
	}
}

func TestImportBatchIsolatesRowFailures(t *testing.T) {
	trades := newFakeTradeStore()
	svc, _ := newTestServices(trades, newFakeAnalyticsStore())

	rows := []models.RawImportRow{
		batchRow("AAPL"),
		{Symbol: "", Quantity: "1", EntryPrice: "1", ExitPrice: "2"}, // no symbol
		batchRow("MSFT"),
	}

	result, err := svc.ImportBatch(context.Background(), 1, nil, rows)
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}

	if result.Total != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Fatalf("totals = %d/%d/%d, want 3/2/1", result.Total, result.Successful, result.Failed)
	}
	if result.Outcomes[1].Status != models.RowStatusFailed || result.Outcomes[1].Error == "" {
		t.Errorf("outcome[1] = %+v, want failed with error message", result.Outcomes[1])
	}
	// Outcomes follow input order and surviving rows are committed.
	if result.Outcomes[0].Status != models.RowStatusImported || result.Outcomes[2].Status != models.RowStatusImported {
		t.Errorf("surrounding rows should import: %+v", result.Outcomes)
	}
	if trades.count() != 2 {
		t.Errorf("store has %d trades, want 2", trades.count())
	}
	if result.BatchID == "" {
		t.Error("BatchID should be set")
	}
}

func TestImportBatchDedup(t *testing.T) {
	trades := newFakeTradeStore()
	svc, _ := newTestServices(trades, newFakeAnalyticsStore())

	row := batchRow("AAPL")
	row.BuyFillID = "fill-1"
	row.SellFillID = "fill-2"

	first, err := svc.ImportBatch(context.Background(), 1, nil, []models.RawImportRow{row})
	if err != nil {
		t.Fatalf("first ImportBatch: %v", err)
	}
	if first.Successful != 1 {
		t.Fatalf("first import: successful = %d, want 1", first.Successful)
	}

	second, err := svc.ImportBatch(context.Background(), 1, nil, []models.RawImportRow{row})
	if err != nil {
		t.Fatalf("second ImportBatch: %v", err)
	}
	if second.Duplicates != 1 || second.Successful != 0 {
		t.Fatalf("re-import: duplicates = %d, successful = %d, want 1/0", second.Duplicates, second.Successful)
	}
	if second.Outcomes[0].TradeID != first.Outcomes[0].TradeID {
		t.Errorf("duplicate outcome should point at the existing trade")
	}
	if trades.count() != 1 {
		t.Errorf("store has %d trades after re-import, want 1", trades.count())
	}
}

func TestImportBatchRecomputeFailureStillReturnsResult(t *testing.T) {
	trades := newFakeTradeStore()
	analytics := newFakeAnalyticsStore()
	analytics.replaceErr = errors.New("disk full")
	svc, _ := newTestServices(trades, analytics)

	result, err := svc.ImportBatch(context.Background(), 1, nil, []models.RawImportRow{batchRow("AAPL")})
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("successful = %d, want 1", result.Successful)
	}
	if result.RecomputeError == "" {
		t.Error("RecomputeError should be set when the post-batch recompute fails")
	}
	if trades.count() != 1 {
		t.Error("imported trade must stay committed despite the recompute failure")
	}
}

func TestImportBatchCancellation(t *testing.T) {
	trades := newFakeTradeStore()
	svc, _ := newTestServices(trades, newFakeAnalyticsStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.ImportBatch(ctx, 1, nil, []models.RawImportRow{batchRow("AAPL"), batchRow("MSFT")})
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}
	if !result.Cancelled {
		t.Error("result should be marked cancelled")
	}
	if result.Total != 0 {
		t.Errorf("Total = %d, want 0 rows processed under a dead context", result.Total)
	}
}

func TestImportBatchUpdatesAnalytics(t *testing.T) {
	trades := newFakeTradeStore()
	analytics := newFakeAnalyticsStore()
	svc, analyticsSvc := newTestServices(trades, analytics)

	_, err := svc.ImportBatch(context.Background(), 1, nil, []models.RawImportRow{batchRow("AAPL"), batchRow("MSFT")})
	if err != nil {
		t.Fatalf("ImportBatch: %v", err)
	}

	a, err := analyticsSvc.GetAnalytics(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetAnalytics: %v", err)
	}
	if a.TotalTrades != 2 {
		t.Errorf("TotalTrades = %d, want 2", a.TotalTrades)
	}
	// (51 - 50) * 10 per trade, no fees.
	if want := decimal.NewFromInt(20); !a.TotalPnL.Equal(want) {
		t.Errorf("TotalPnL = %s, want %s", a.TotalPnL, want)
	}
	if analytics.replaceCount() != 1 {
		t.Errorf("snapshot replaced %d times, want 1 (batch-level recompute, then cached read)", analytics.replaceCount())
	}
}

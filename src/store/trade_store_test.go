package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/database"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func openTestStores(t *testing.T) (*SQLiteTradeStore, *SQLiteUserStore, *SQLiteAccountStore) {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "store_test.db"))
	return NewSQLiteTradeStore(database.DB), NewSQLiteUserStore(database.DB), NewSQLiteAccountStore(database.DB)
}

func storedTrade(userID, accountID int64, date string) *models.Trade {
	return &models.Trade{
		UserID:     userID,
		AccountID:  accountID,
		Symbol:     "AAPL",
		Direction:  models.DirectionLong,
		Quantity:   5,
		EntryPrice: decimal.NewFromInt(100),
		Fees:       decimal.NewFromInt(2),
		PnL:        decimal.NewFromInt(48),
		TradeDate:  date,
	}
}

func TestInsertEnforcesReferences(t *testing.T) {
	trades, users, _ := openTestStores(t)
	ctx := context.Background()

	userID, err := users.Create(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	// Nonexistent account must be rejected, not silently accepted.
	err = trades.Insert(ctx, storedTrade(userID, 999, "2025-03-03"))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("insert with bogus account: err = %v, want ErrConflict", err)
	}

	// Same for a nonexistent owner.
	err = trades.Insert(ctx, storedTrade(42, 0, "2025-03-03"))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("insert with bogus user: err = %v, want ErrConflict", err)
	}

	// A null account is allowed; only a dangling reference is not.
	if err := trades.Insert(ctx, storedTrade(userID, 0, "2025-03-03")); err != nil {
		t.Errorf("insert without account: %v", err)
	}
}

func TestInsertDedupKeyConflict(t *testing.T) {
	trades, users, accounts := openTestStores(t)
	ctx := context.Background()

	userID, err := users.Create(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	accountID, err := accounts.DefaultAccountFor(ctx, userID)
	if err != nil {
		t.Fatalf("DefaultAccountFor: %v", err)
	}

	first := storedTrade(userID, accountID, "2025-03-03")
	first.DedupKey = "f-1|f-2"
	if err := trades.Insert(ctx, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := storedTrade(userID, accountID, "2025-03-03")
	second.DedupKey = "f-1|f-2"
	if err := trades.Insert(ctx, second); !errors.Is(err, ErrConflict) {
		t.Errorf("re-insert with same dedup key: err = %v, want ErrConflict", err)
	}

	found, err := trades.FindByDedupKey(ctx, userID, "f-1|f-2")
	if err != nil {
		t.Fatalf("FindByDedupKey: %v", err)
	}
	if found == nil || found.ID != first.ID {
		t.Errorf("FindByDedupKey = %+v, want the first trade", found)
	}
}

func TestListByUserDateRangeBounds(t *testing.T) {
	trades, users, accounts := openTestStores(t)
	ctx := context.Background()

	userID, err := users.Create(ctx, "carol", "hash")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	accountID, err := accounts.DefaultAccountFor(ctx, userID)
	if err != nil {
		t.Fatalf("DefaultAccountFor: %v", err)
	}

	for _, date := range []string{"2025-03-01", "2025-03-05", "2025-03-10"} {
		if err := trades.Insert(ctx, storedTrade(userID, accountID, date)); err != nil {
			t.Fatalf("insert %s: %v", date, err)
		}
	}

	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"both bounds", "2025-03-02", "2025-03-09", 1},
		{"from only", "2025-03-05", "", 2},
		{"to only", "", "2025-03-05", 2},
		{"both empty", "", "", 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := trades.ListByUserDateRange(ctx, userID, tc.from, tc.to)
			if err != nil {
				t.Fatalf("ListByUserDateRange: %v", err)
			}
			if len(got) != tc.want {
				t.Errorf("got %d trades, want %d", len(got), tc.want)
			}
		})
	}
}

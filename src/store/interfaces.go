package store

import (
	"context"
	"errors"

	"github.com/username/tradefolio/backend/src/models"
)

// ErrConflict marks a uniqueness or referential-integrity violation on
// insert. Callers match it with errors.Is.
var ErrConflict = errors.New("store conflict")

// TradeStore is the durable collection of trades. Implementations must
// enforce unique trade identity and the referential link to the owning
// user/account.
type TradeStore interface {
	Insert(ctx context.Context, t *models.Trade) error
	Update(ctx context.Context, t *models.Trade) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*models.Trade, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Trade, error)
	ListByUserDateRange(ctx context.Context, userID int64, from, to string) ([]models.Trade, error)
	FindByDedupKey(ctx context.Context, userID int64, key string) (*models.Trade, error)
}

// AnalyticsStore persists the per-user analytics snapshot. Get returns
// (nil, nil) when no snapshot exists; Replace swaps the snapshot wholesale
// so concurrent readers never see a half-updated record.
type AnalyticsStore interface {
	Get(ctx context.Context, userID int64) (*models.Analytics, error)
	Replace(ctx context.Context, a *models.Analytics) error
}

// AccountStore resolves trading accounts. DefaultAccountFor creates a
// default account when the user has none.
type AccountStore interface {
	DefaultAccountFor(ctx context.Context, userID int64) (int64, error)
}

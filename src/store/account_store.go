package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/username/tradefolio/backend/src/logger"
)

// SQLiteAccountStore resolves and lazily creates trading accounts.
type SQLiteAccountStore struct {
	db *sql.DB
}

func NewSQLiteAccountStore(db *sql.DB) *SQLiteAccountStore {
	return &SQLiteAccountStore{db: db}
}

// DefaultAccountFor returns the user's default account: the first account
// flagged default, else the oldest account, else a freshly created default
// one. Resolution happens once per import batch, not per row.
func (s *SQLiteAccountStore) DefaultAccountFor(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM accounts
		WHERE user_id = ? AND is_default = TRUE ORDER BY id ASC LIMIT 1`, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("error querying default account for user %d: %w", userID, err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT id FROM accounts
		WHERE user_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("error querying accounts for user %d: %w", userID, err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO accounts (user_id, name, is_default)
		VALUES (?, 'Default', TRUE)`, userID)
	if err != nil {
		return 0, fmt.Errorf("error creating default account for user %d: %w", userID, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading created account id: %w", err)
	}
	logger.L.Info("Created default account for user", "userID", userID, "accountID", id)
	return id, nil
}

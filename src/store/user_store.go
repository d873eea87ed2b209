package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteUserStore is the thin identity-provider surface: this core trusts
// the user ids it is given and only needs enough user plumbing to issue
// them.
type SQLiteUserStore struct {
	db *sql.DB
}

func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

func (s *SQLiteUserStore) Create(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (username, password) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: username already taken", ErrConflict)
		}
		return 0, fmt.Errorf("error creating user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading created user id: %w", err)
	}
	return id, nil
}

// PasswordHashByUsername returns (id, hash). (0, "") with nil error means
// no such user.
func (s *SQLiteUserStore) PasswordHashByUsername(ctx context.Context, username string) (int64, string, error) {
	var (
		id   int64
		hash string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, password FROM users WHERE username = ?`, username).
		Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("error fetching user %q: %w", username, err)
	}
	return id, hash, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/utils"
)

const tradeColumns = `id, user_id, account_id, symbol, direction, quantity, entry_price, exit_price,
	fees, pnl, entry_time, exit_time, trade_date, broker, notes, metadata, dedup_key, created_at`

// SQLiteTradeStore implements TradeStore on a sqlite database. Monetary
// columns are stored as TEXT so decimals round-trip exactly.
type SQLiteTradeStore struct {
	db *sql.DB
}

func NewSQLiteTradeStore(db *sql.DB) *SQLiteTradeStore {
	return &SQLiteTradeStore{db: db}
}

func (s *SQLiteTradeStore) Insert(ctx context.Context, t *models.Trade) error {
	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("error marshaling trade metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO trades
		(user_id, account_id, symbol, direction, quantity, entry_price, exit_price, fees, pnl,
		entry_time, exit_time, trade_date, broker, notes, metadata, dedup_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullableID(t.AccountID), t.Symbol, string(t.Direction), t.Quantity,
		t.EntryPrice.String(), nullableDecimal(t.ExitPrice), t.Fees.String(), t.PnL.String(),
		nullableTime(t.EntryTime), nullableTime(t.ExitTime), t.TradeDate,
		t.Broker, t.Notes, metadata, t.DedupKey)
	if err != nil {
		if isUniqueViolation(err) || isForeignKeyViolation(err) {
			return fmt.Errorf("%w: conflicting trade insert for user %d: %v", ErrConflict, t.UserID, err)
		}
		return fmt.Errorf("error inserting trade for user %d: %w", t.UserID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error reading inserted trade id: %w", err)
	}
	t.ID = id
	return nil
}

func (s *SQLiteTradeStore) Update(ctx context.Context, t *models.Trade) error {
	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("error marshaling trade metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE trades SET
		symbol = ?, direction = ?, quantity = ?, entry_price = ?, exit_price = ?, fees = ?, pnl = ?,
		entry_time = ?, exit_time = ?, trade_date = ?, broker = ?, notes = ?, metadata = ?
		WHERE id = ? AND user_id = ?`,
		t.Symbol, string(t.Direction), t.Quantity, t.EntryPrice.String(), nullableDecimal(t.ExitPrice),
		t.Fees.String(), t.PnL.String(), nullableTime(t.EntryTime), nullableTime(t.ExitTime),
		t.TradeDate, t.Broker, t.Notes, metadata, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("error updating trade %d: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteTradeStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting trade %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteTradeStore) Get(ctx context.Context, id int64) (*models.Trade, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching trade %d: %w", id, err)
	}
	return t, nil
}

func (s *SQLiteTradeStore) ListByUser(ctx context.Context, userID int64) ([]models.Trade, error) {
	return s.list(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE user_id = ? ORDER BY trade_date ASC, id ASC`, userID)
}

// ListByUserDateRange filters by trade_date; an empty from or to leaves
// that side of the range unbounded.
func (s *SQLiteTradeStore) ListByUserDateRange(ctx context.Context, userID int64, from, to string) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = ?`
	args := []any{userID}
	if from != "" {
		query += ` AND trade_date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND trade_date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY trade_date ASC, id ASC`
	return s.list(ctx, query, args...)
}

func (s *SQLiteTradeStore) FindByDedupKey(ctx context.Context, userID int64, key string) (*models.Trade, error) {
	if key == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE user_id = ? AND dedup_key = ?`, userID, key)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching trade by dedup key for user %d: %w", userID, err)
	}
	return t, nil
}

func (s *SQLiteTradeStore) list(ctx context.Context, query string, args ...any) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning trade row: %w", err)
		}
		trades = append(trades, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over trade rows: %w", err)
	}
	return trades, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var (
		t          models.Trade
		accountID  sql.NullInt64
		direction  string
		entryPrice string
		exitPrice  sql.NullString
		fees       string
		pnl        string
		entryTime  sql.NullString
		exitTime   sql.NullString
		broker     sql.NullString
		notes      sql.NullString
		metadata   sql.NullString
		dedupKey   sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &accountID, &t.Symbol, &direction, &t.Quantity,
		&entryPrice, &exitPrice, &fees, &pnl, &entryTime, &exitTime, &t.TradeDate,
		&broker, &notes, &metadata, &dedupKey, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.AccountID = accountID.Int64
	t.Direction = models.Direction(direction)
	t.Broker = broker.String
	t.Notes = notes.String
	t.DedupKey = dedupKey.String

	if t.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("invalid entry_price %q: %w", entryPrice, err)
	}
	if exitPrice.Valid {
		d, err := decimal.NewFromString(exitPrice.String)
		if err != nil {
			return nil, fmt.Errorf("invalid exit_price %q: %w", exitPrice.String, err)
		}
		t.ExitPrice = &d
	}
	if t.Fees, err = decimal.NewFromString(fees); err != nil {
		return nil, fmt.Errorf("invalid fees %q: %w", fees, err)
	}
	if t.PnL, err = decimal.NewFromString(pnl); err != nil {
		return nil, fmt.Errorf("invalid pnl %q: %w", pnl, err)
	}

	t.EntryTime = parseStoredTime(entryTime)
	t.ExitTime = parseStoredTime(exitTime)

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &t.Metadata); err != nil {
			return nil, fmt.Errorf("invalid trade metadata: %w", err)
		}
	}
	return &t, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseStoredTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, ok := utils.ParseTimestamp(s.String)
	if !ok {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

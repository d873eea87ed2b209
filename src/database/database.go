package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/tradefolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	// sqlite leaves foreign keys off per connection unless asked; the
	// _pragma parameter makes the driver enable them on every pooled
	// connection, so the FOREIGN KEY clauses below are actually enforced.
	db, err := sql.Open("sqlite", databasePath+"?_pragma=foreign_keys(1)")
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateTradesTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		broker TEXT,
		is_default BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		account_id INTEGER,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price TEXT NOT NULL,
		exit_price TEXT,
		fees TEXT NOT NULL,
		pnl TEXT NOT NULL,
		entry_time TEXT,
		exit_time TEXT,
		trade_date TEXT NOT NULL,
		broker TEXT,
		notes TEXT,
		metadata TEXT,
		dedup_key TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(account_id) REFERENCES accounts(id)
	);

	CREATE INDEX IF NOT EXISTS idx_trades_user_date ON trades(user_id, trade_date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_user_dedup
		ON trades(user_id, dedup_key) WHERE dedup_key IS NOT NULL AND dedup_key != '';

	CREATE TABLE IF NOT EXISTS user_analytics (
		user_id INTEGER PRIMARY KEY,
		total_trades INTEGER NOT NULL,
		winning_trades INTEGER NOT NULL,
		losing_trades INTEGER NOT NULL,
		breakeven_trades INTEGER NOT NULL,
		total_pnl TEXT NOT NULL,
		average_pnl TEXT NOT NULL,
		win_rate TEXT NOT NULL,
		loss_rate TEXT NOT NULL,
		largest_win TEXT NOT NULL,
		largest_loss TEXT NOT NULL,
		cumulative_pnl TEXT NOT NULL,
		daily_pnl TEXT NOT NULL,
		weekly_pnl TEXT NOT NULL,
		monthly_pnl TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateTradesTable adds columns introduced after the initial trades schema.
func migrateTradesTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='trades'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'trades' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'trades' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'trades' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'trades' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(trades)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'trades'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'trades': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'trades'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'trades': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'trades'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'trades': %v", err)
		}
		return
	}

	if _, ok := columnExists["broker"]; !ok {
		_, err := DB.Exec("ALTER TABLE trades ADD COLUMN broker TEXT")
		if err != nil {
			logger.L.Error("Error adding 'broker' column to 'trades' table", "error", err)
		} else {
			logger.L.Info("Added 'broker' column to 'trades' table")
		}
	}
	if _, ok := columnExists["notes"]; !ok {
		_, err := DB.Exec("ALTER TABLE trades ADD COLUMN notes TEXT")
		if err != nil {
			logger.L.Error("Error adding 'notes' column to 'trades' table", "error", err)
		} else {
			logger.L.Info("Added 'notes' column to 'trades' table")
		}
	}
	if _, ok := columnExists["metadata"]; !ok {
		_, err := DB.Exec("ALTER TABLE trades ADD COLUMN metadata TEXT")
		if err != nil {
			logger.L.Error("Error adding 'metadata' column to 'trades' table", "error", err)
		} else {
			logger.L.Info("Added 'metadata' column to 'trades' table")
		}
	}
	if _, ok := columnExists["dedup_key"]; !ok {
		_, err := DB.Exec("ALTER TABLE trades ADD COLUMN dedup_key TEXT")
		if err != nil {
			logger.L.Error("Error adding 'dedup_key' column to 'trades' table", "error", err)
		} else {
			logger.L.Info("Added 'dedup_key' column to 'trades' table")
		}
	}
}

package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// New opens a SQLite database connection at the given path, creating the
// parent directory if needed.
func New(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the transactions table and its secondary indexes.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			transaction_token TEXT PRIMARY KEY,
			view_name TEXT NOT NULL,
			aggregation TEXT NOT NULL,
			merchant_name TEXT,
			transaction_amount REAL,
			transaction_type TEXT,
			state TEXT,
			user_token TEXT,
			card_token TEXT,
			business_user_token TEXT,
			created_time TEXT,
			transaction_timestamp TEXT,
			network TEXT,
			merchant_category_code TEXT,
			currency_code TEXT,
			full_data TEXT NOT NULL,
			indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_merchant_name ON transactions(merchant_name);`,
		`CREATE INDEX IF NOT EXISTS idx_transaction_amount ON transactions(transaction_amount);`,
		`CREATE INDEX IF NOT EXISTS idx_user_token ON transactions(user_token);`,
		`CREATE INDEX IF NOT EXISTS idx_business_user_token ON transactions(business_user_token);`,
		`CREATE INDEX IF NOT EXISTS idx_created_time ON transactions(created_time);`,
		`CREATE INDEX IF NOT EXISTS idx_view_name ON transactions(view_name);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

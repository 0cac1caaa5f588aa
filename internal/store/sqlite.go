package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/models"
)

// SQLiteStore implements PortfolioStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based portfolio store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", apperrors.ErrStoreUnavailable, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %v", apperrors.ErrStoreUnavailable, err)
	}

	return store, nil
}

// initSchema creates the holdings table.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS holdings (
		position INTEGER PRIMARY KEY,
		market TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		balance INTEGER NOT NULL,
		price REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the holdings in their stored order.
func (s *SQLiteStore) Load(ctx context.Context) (models.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market, code, name, balance, price
		FROM holdings
		ORDER BY position ASC
	`)
	if err != nil {
		return models.Portfolio{}, fmt.Errorf("%w: failed to query holdings: %v", apperrors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	items := []models.Holding{}
	for rows.Next() {
		var h models.Holding
		var market string
		if err := rows.Scan(&market, &h.Code, &h.Name, &h.Balance, &h.Price); err != nil {
			return models.Portfolio{}, fmt.Errorf("%w: failed to scan holding: %v", apperrors.ErrStoreUnavailable, err)
		}
		h.Market = models.Market(market)
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return models.Portfolio{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	return models.Portfolio{Items: items}, nil
}

// Replace swaps the whole portfolio in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, portfolio models.Portfolio) error {
	portfolio = normalize(portfolio)
	if err := Validate(portfolio); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", apperrors.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("%w: failed to clear holdings: %v", apperrors.ErrStoreUnavailable, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO holdings (position, market, code, name, balance, price)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: failed to prepare statement: %v", apperrors.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for i, h := range portfolio.Items {
		if _, err := stmt.ExecContext(ctx, i, string(h.Market), h.Code, h.Name, h.Balance, h.Price); err != nil {
			return fmt.Errorf("%w: failed to insert holding: %v", apperrors.ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", apperrors.ErrStoreUnavailable, err)
	}

	return nil
}

// Package sqlite stores rated items in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/flickrank/internal/domain/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an item has no stored rating.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rated_items (
		category TEXT NOT NULL,
		item_id TEXT NOT NULL,
		rating REAL NOT NULL,
		comparisons_played INTEGER NOT NULL DEFAULT 0,
		standard_error REAL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (category, item_id)
	);

	CREATE TABLE IF NOT EXISTS rating_writes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		category TEXT NOT NULL,
		item_id TEXT NOT NULL,
		rating REAL NOT NULL,
		written_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rating_writes_item ON rating_writes(category, item_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRating upserts the item and appends the write to the history log.
func (db *DB) SaveRating(ctx context.Context, w model.RatingWrite) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var se sql.NullFloat64
	if w.StandardError != nil {
		se = sql.NullFloat64{Float64: *w.StandardError, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO rated_items (category, item_id, rating, comparisons_played, standard_error, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(category, item_id) DO UPDATE SET
		rating = excluded.rating,
		comparisons_played = excluded.comparisons_played,
		standard_error = excluded.standard_error,
		updated_at = excluded.updated_at
	`, w.Category, w.ItemID, w.Rating, w.ComparisonsPlayed, se, now)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO rating_writes (kind, category, item_id, rating, written_at)
	VALUES (?, ?, ?, ?, ?)
	`, string(w.Kind), w.Category, w.ItemID, w.Rating, now)
	if err != nil {
		return fmt.Errorf("log write: %w", err)
	}

	return tx.Commit()
}

// GetRating returns the stored item.
func (db *DB) GetRating(ctx context.Context, category, id string) (model.RatedItem, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT category, item_id, rating, comparisons_played, standard_error
	FROM rated_items WHERE category = ? AND item_id = ?
	`, category, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RatedItem{}, ErrNotFound
	}
	return it, err
}

// LoadAll returns every stored item, used to warm the in-memory corpus.
func (db *DB) LoadAll(ctx context.Context) ([]model.RatedItem, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT category, item_id, rating, comparisons_played, standard_error
	FROM rated_items ORDER BY category, rating DESC, item_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []model.RatedItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// WriteCount returns how many writes were logged for an item.
func (db *DB) WriteCount(ctx context.Context, category, id string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rating_writes WHERE category = ? AND item_id = ?`,
		category, id).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (model.RatedItem, error) {
	var (
		it model.RatedItem
		se sql.NullFloat64
	)
	if err := s.Scan(&it.Category, &it.ID, &it.Rating, &it.ComparisonsPlayed, &se); err != nil {
		return model.RatedItem{}, err
	}
	if se.Valid {
		v := se.Float64
		it.StandardError = &v
	}
	return it, nil
}

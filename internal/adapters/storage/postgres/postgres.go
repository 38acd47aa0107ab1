// Package postgres stores rated items in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/flickrank/internal/domain/model"
)

//go:embed schema.sql
var schema embed.FS

// ErrNotFound is returned when an item has no stored rating.
var ErrNotFound = errors.New("not found")

type DB struct{ *pgxpool.Pool }

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db := &DB{p}
	if err := Migrate(ctx, db); err != nil {
		p.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error                   { db.Pool.Close(); return nil }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// SaveRating upserts the item and logs the write in one transaction.
func (db *DB) SaveRating(ctx context.Context, w model.RatingWrite) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO rated_items(category, item_id, rating, comparisons_played, standard_error, updated_at)
			VALUES ($1,$2,$3,$4,$5,now())
			ON CONFLICT (category, item_id) DO UPDATE
			  SET rating = EXCLUDED.rating,
			      comparisons_played = EXCLUDED.comparisons_played,
			      standard_error = EXCLUDED.standard_error,
			      updated_at = now()
		`, w.Category, w.ItemID, w.Rating, w.ComparisonsPlayed, w.StandardError); err != nil {
			return fmt.Errorf("upsert item: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO rating_writes(kind, category, item_id, rating)
			VALUES ($1,$2,$3,$4)
		`, string(w.Kind), w.Category, w.ItemID, w.Rating); err != nil {
			return fmt.Errorf("log write: %w", err)
		}
		return nil
	})
}

// GetRating returns the stored item.
func (db *DB) GetRating(ctx context.Context, category, id string) (model.RatedItem, error) {
	it := model.RatedItem{Category: category, ID: id}
	err := db.QueryRow(ctx, `
		SELECT rating, comparisons_played, standard_error
		  FROM rated_items WHERE category = $1 AND item_id = $2
	`, category, id).Scan(&it.Rating, &it.ComparisonsPlayed, &it.StandardError)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RatedItem{}, ErrNotFound
	}
	return it, err
}

// LoadAll returns every stored item.
func (db *DB) LoadAll(ctx context.Context) ([]model.RatedItem, error) {
	rows, err := db.Query(ctx, `
		SELECT category, item_id, rating, comparisons_played, standard_error
		  FROM rated_items
		 ORDER BY category, rating DESC, item_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []model.RatedItem
	for rows.Next() {
		var it model.RatedItem
		if err := rows.Scan(&it.Category, &it.ID, &it.Rating, &it.ComparisonsPlayed, &it.StandardError); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

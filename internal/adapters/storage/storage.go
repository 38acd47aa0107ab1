// Package storage selects the durable rating store.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/flickrank/internal/adapters/storage/postgres"
	"github.com/okian/flickrank/internal/adapters/storage/sqlite"
	"github.com/okian/flickrank/internal/domain/model"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is the durable side of the rating corpus.
type Store interface {
	SaveRating(ctx context.Context, w model.RatingWrite) error
	LoadAll(ctx context.Context) ([]model.RatedItem, error)
	Close() error
}

// Options holds driver settings.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the store for opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return Discard{}, nil
	case DriverSQLite:
		db, err := sqlite.Open(opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", opts.SQLitePath, err)
		}
		return db, nil
	case DriverPostgres:
		db, err := postgres.Open(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// Discard keeps nothing. It backs the memory driver.
type Discard struct{}

func (Discard) SaveRating(context.Context, model.RatingWrite) error { return nil }
func (Discard) LoadAll(context.Context) ([]model.RatedItem, error)  { return nil, nil }
func (Discard) Close() error                                        { return nil }

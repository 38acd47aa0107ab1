package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/okian/flickrank/internal/domain/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("FLICKRANK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FLICKRANK_TEST_POSTGRES_DSN not set")
	}
	db, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	cat := "test-" + uuid.NewString()
	se := 0.3

	if err := db.SaveRating(ctx, model.RatingWrite{Kind: model.WriteFinal, Category: cat, ItemID: "a", Rating: 6.2, ComparisonsPlayed: 3, StandardError: &se}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveRating(ctx, model.RatingWrite{Kind: model.WriteOpponent, Category: cat, ItemID: "a", Rating: 6.4, ComparisonsPlayed: 4}); err != nil {
		t.Fatal(err)
	}

	it, err := db.GetRating(ctx, cat, "a")
	if err != nil {
		t.Fatal(err)
	}
	if it.Rating != 6.4 || it.ComparisonsPlayed != 4 || it.StandardError != nil {
		t.Errorf("unexpected item: %+v", it)
	}

	if _, err := db.GetRating(ctx, cat, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	items, err := db.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, i := range items {
		if i.Category == cat && i.ID == "a" {
			found = true
		}
	}
	if !found {
		t.Error("saved item missing from LoadAll")
	}
}

package supplier

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"trivia-service/internal/countries"
	"trivia-service/internal/generator"
	"trivia-service/internal/models"
)

func newTestGenerator(t *testing.T) *generator.Generator {
	t.Helper()

	fixture := []models.Country{
		{Name: "France", Capital: "Paris", FlagURL: "f.svg", Currencies: []string{"Euro"}, Languages: []string{"French"}, Population: 68_000_000, Area: 551_695, Region: "Europe"},
		{Name: "Japan", Capital: "Tokyo", FlagURL: "j.svg", Currencies: []string{"Japanese yen"}, Languages: []string{"Japanese"}, Population: 125_000_000, Area: 377_975, Region: "Asia"},
		{Name: "Brazil", Capital: "Brasilia", FlagURL: "b.svg", Currencies: []string{"Brazilian real"}, Languages: []string{"Portuguese"}, Population: 214_000_000, Area: 8_515_767, Region: "Americas"},
		{Name: "Kenya", Capital: "Nairobi", FlagURL: "k.svg", Currencies: []string{"Kenyan shilling"}, Languages: []string{"Swahili"}, Population: 54_000_000, Area: 580_367, Region: "Africa"},
	}
	data, err := json.Marshal(fixture)
	if err != nil {
		t.Fatalf("failed to marshal fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "countries.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	store := countries.NewStore(nil)
	if err := store.Load(context.Background(), path); err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}
	return generator.NewSeeded(store, generator.Options{}, 1)
}

func TestGenerativeSupplierDedup(t *testing.T) {
	s := NewGenerativeSupplier(newTestGenerator(t), "session-1", nil)
	ctx := context.Background()

	seen := make(map[string]bool)
	total := 0
	for i := 0; i < 12; i++ {
		batch, err := s.Batch(ctx, 5)
		if err != nil {
			t.Fatalf("Batch: %v", err)
		}
		for _, q := range batch {
			if seen[q.ID] {
				t.Fatalf("question %q supplied twice", q.ID)
			}
			seen[q.ID] = true
		}
		total += len(batch)
	}

	if total == 0 {
		t.Fatal("supplier produced nothing")
	}
	if s.UsedCount() != total {
		t.Fatalf("UsedCount=%d, want %d", s.UsedCount(), total)
	}
}

func TestGenerativeSupplierExhaustionIsNotAnError(t *testing.T) {
	s := NewGenerativeSupplier(newTestGenerator(t), "session-2", nil)
	ctx := context.Background()

	// Drain the whole pool, then verify exhaustion surfaces as an empty
	// batch with a nil error.
	for i := 0; i < 50; i++ {
		batch, err := s.Batch(ctx, 10)
		if err != nil {
			t.Fatalf("Batch: %v", err)
		}
		if len(batch) == 0 {
			break
		}
	}

	batch, err := s.Batch(ctx, 10)
	if err != nil {
		t.Fatalf("exhausted Batch returned error: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty batch after drain, got %d", len(batch))
	}
}

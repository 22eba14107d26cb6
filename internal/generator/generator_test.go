package generator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trivia-service/internal/constants"
	"trivia-service/internal/countries"
	"trivia-service/internal/models"
)

var testCountries = []models.Country{
	{Name: "France", Capital: "Paris", FlagURL: "https://flags.example/fr.svg", Currencies: []string{"Euro"}, Languages: []string{"French"}, Population: 68_000_000, Area: 551_695, Region: "Europe", Subregion: "Western Europe"},
	{Name: "Poland", Capital: "Warsaw", FlagURL: "https://flags.example/pl.svg", Currencies: []string{"Polish zloty"}, Languages: []string{"Polish"}, Population: 38_000_000, Area: 312_696, Region: "Europe", Subregion: "Central Europe"},
	{Name: "United Kingdom", Capital: "London", FlagURL: "https://flags.example/gb.svg", Currencies: []string{"Pound sterling"}, Languages: []string{"English"}, Population: 67_000_000, Area: 242_495, Region: "Europe", Subregion: "Northern Europe"},
	{Name: "Switzerland", Capital: "Bern", FlagURL: "https://flags.example/ch.svg", Currencies: []string{"Swiss franc"}, Languages: []string{"German"}, Population: 8_700_000, Area: 41_284, Region: "Europe", Subregion: "Western Europe"},
	{Name: "Norway", Capital: "Oslo", FlagURL: "https://flags.example/no.svg", Currencies: []string{"Norwegian krone"}, Languages: []string{"Norwegian"}, Population: 5_400_000, Area: 385_207, Region: "Europe", Subregion: "Northern Europe"},
	{Name: "Japan", Capital: "Tokyo", FlagURL: "https://flags.example/jp.svg", Currencies: []string{"Japanese yen"}, Languages: []string{"Japanese"}, Population: 125_000_000, Area: 377_975, Region: "Asia", Subregion: "Eastern Asia"},
	{Name: "Brazil", Capital: "Brasilia", FlagURL: "https://flags.example/br.svg", Currencies: []string{"Brazilian real"}, Languages: []string{"Portuguese"}, Population: 214_000_000, Area: 8_515_767, Region: "Americas", Subregion: "South America"},
	{Name: "Kenya", Capital: "Nairobi", FlagURL: "https://flags.example/ke.svg", Currencies: []string{"Kenyan shilling"}, Languages: []string{"Swahili"}, Population: 54_000_000, Area: 580_367, Region: "Africa", Subregion: "Eastern Africa"},
	// Deliberately sparse: no currencies, languages, population or area.
	{Name: "Vatican City", Capital: "Vatican City", FlagURL: "https://flags.example/va.svg", Region: "Europe", Subregion: "Southern Europe"},
}

func newTestStore(t *testing.T) *countries.Store {
	t.Helper()

	data, err := json.Marshal(testCountries)
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
	return store
}

func TestCompositeID(t *testing.T) {
	cases := []struct {
		country, archetype, want string
	}{
		{"France", "capital", "france:capital"},
		{"United Kingdom", "flag", "united-kingdom:flag"},
		{"Vatican City", "region", "vatican-city:region"},
	}
	for _, c := range cases {
		if got := CompositeID(c.country, c.archetype); got != c.want {
			t.Fatalf("CompositeID(%q,%q)=%q, want %q", c.country, c.archetype, got, c.want)
		}
	}
}

func TestDailySeed(t *testing.T) {
	day := time.Date(2026, time.August, 29, 13, 45, 0, 0, time.UTC)
	if got := DailySeed(day); got != 20260829 {
		t.Fatalf("DailySeed=%d, want 20260829", got)
	}
	// Any wall time on the same UTC date maps to the same seed.
	later := time.Date(2026, time.August, 29, 23, 59, 59, 0, time.UTC)
	if DailySeed(day) != DailySeed(later) {
		t.Fatal("seeds for the same UTC date differ")
	}
}

func TestSeededSequencesAreDeterministic(t *testing.T) {
	store := newTestStore(t)

	a := NewSeeded(store, Options{}, 42).Sequence(10)
	b := NewSeeded(store, Options{}, 42).Sequence(10)

	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("sequence lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Text != b[i].Text {
			t.Fatalf("sequences diverge at %d: %q vs %q", i, a[i].ID, b[i].ID)
		}
		for j := range a[i].Options {
			if a[i].Options[j] != b[i].Options[j] {
				t.Fatalf("option order diverges at question %d", i)
			}
		}
	}
}

func TestBatchQuestionShape(t *testing.T) {
	store := newTestStore(t)
	g := NewSeeded(store, Options{}, 7)

	used := make(map[string]bool)
	batch := g.Batch(20, used)
	if len(batch) == 0 {
		t.Fatal("expected a non-empty batch")
	}

	for _, q := range batch {
		if q.ID != CompositeID(q.CountryName, q.Archetype) {
			t.Fatalf("question id %q does not match its country/archetype", q.ID)
		}
		if len(q.Options) != 4 {
			t.Fatalf("question %q has %d options, want 4", q.ID, len(q.Options))
		}
		seen := make(map[string]bool)
		found := false
		for _, opt := range q.Options {
			if seen[opt] {
				t.Fatalf("question %q repeats option %q", q.ID, opt)
			}
			seen[opt] = true
			if opt == q.CorrectAnswer {
				found = true
			}
		}
		if !found {
			t.Fatalf("question %q options do not contain the correct answer", q.ID)
		}
		if q.Difficulty < 1 || q.Difficulty > 5 {
			t.Fatalf("question %q has difficulty %d", q.ID, q.Difficulty)
		}
		if q.TimeLimitSec <= 0 || q.BasePoints <= 0 {
			t.Fatalf("question %q missing time limit or base points", q.ID)
		}
	}
}

func TestBatchNeverRepeatsAcrossCalls(t *testing.T) {
	store := newTestStore(t)
	g := NewSeeded(store, Options{}, 3)

	used := make(map[string]bool)
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		for _, q := range g.Batch(5, used) {
			if seen[q.ID] {
				t.Fatalf("question %q generated twice", q.ID)
			}
			seen[q.ID] = true
		}
	}
	if len(seen) == 0 {
		t.Fatal("no questions generated")
	}
}

func TestBatchExhaustion(t *testing.T) {
	store := newTestStore(t)
	g := NewSeeded(store, Options{}, 11)

	used := make(map[string]bool)
	first := g.Batch(200, used)
	if len(first) == 0 {
		t.Fatal("expected the pool to yield questions before exhausting")
	}
	if len(first) >= 200 {
		t.Fatalf("batch of %d exceeds what the fixture pool can hold", len(first))
	}

	// The used set only grows, so once the pool is drained every later
	// batch is empty.
	if second := g.Batch(200, used); len(second) != 0 {
		t.Fatalf("expected empty batch after exhaustion, got %d", len(second))
	}
}

func TestBatchSkipsSparseCountries(t *testing.T) {
	store := newTestStore(t)
	g := NewSeeded(store, Options{}, 5)

	used := make(map[string]bool)
	batch := g.Batch(200, used)

	blocked := map[string]bool{
		CompositeID("Vatican City", constants.ArchetypeCurrency):        true,
		CompositeID("Vatican City", constants.ArchetypeLanguage):        true,
		CompositeID("Vatican City", constants.ArchetypePopulationRange): true,
		CompositeID("Vatican City", constants.ArchetypeAreaRange):       true,
	}
	for _, q := range batch {
		if blocked[q.ID] {
			t.Fatalf("generated %q from a country missing the needed fields", q.ID)
		}
	}
}

func TestMaxDifficultyFilter(t *testing.T) {
	store := newTestStore(t)
	g := NewSeeded(store, Options{MaxDifficulty: 1}, 9)

	used := make(map[string]bool)
	batch := g.Batch(30, used)
	if len(batch) == 0 {
		t.Fatal("expected questions at difficulty 1")
	}
	for _, q := range batch {
		if q.Archetype != constants.ArchetypeCapital && q.Archetype != constants.ArchetypeFlag {
			t.Fatalf("archetype %q exceeds the difficulty cap", q.Archetype)
		}
	}
}

func TestRegionFilter(t *testing.T) {
	store := newTestStore(t)
	g := NewSeeded(store, Options{Region: "Europe"}, 13)

	used := make(map[string]bool)
	batch := g.Batch(30, used)
	if len(batch) == 0 {
		t.Fatal("expected questions for the Europe pool")
	}

	europe := make(map[string]bool)
	for _, c := range testCountries {
		if c.Region == "Europe" {
			europe[c.Name] = true
		}
	}
	for _, q := range batch {
		if !europe[q.CountryName] {
			t.Fatalf("question subject %q is outside the requested region", q.CountryName)
		}
	}
}

package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"trivia-service/internal/constants"
	"trivia-service/internal/countries"
	"trivia-service/internal/models"
)

// attemptsPerQuestion bounds sampling per requested question. A batch that
// comes back short means the pool is close to exhausted for this session.
const attemptsPerQuestion = 10

const distractorCount = 3

// Options narrows the pool a generator draws from.
type Options struct {
	Region        string // empty means all regions
	MaxDifficulty int    // 0 means no limit
}

type Generator struct {
	store *countries.Store
	rng   *rand.Rand
	opts  Options
}

func New(store *countries.Store, opts Options) *Generator {
	return NewSeeded(store, opts, time.Now().UnixNano())
}

// NewSeeded builds a generator with a fixed seed. Daily mode uses the UTC
// date as the seed so every learner gets the same sequence.
func NewSeeded(store *countries.Store, opts Options, seed int64) *Generator {
	return &Generator{
		store: store,
		rng:   rand.New(rand.NewSource(seed)),
		opts:  opts,
	}
}

// DailySeed derives the shared per-day seed.
func DailySeed(day time.Time) int64 {
	utc := day.UTC()
	return int64(utc.Year())*10000 + int64(utc.Month())*100 + int64(utc.Day())
}

// CompositeID is the dedup key for one (country, archetype) pair.
func CompositeID(countryName, archetype string) string {
	key := strings.ToLower(strings.ReplaceAll(countryName, " ", "-"))
	return fmt.Sprintf("%s:%s", key, archetype)
}

// Batch synthesizes up to count questions whose composite ids are not in
// used. Produced ids are added to used. The sampling budget is
// count*attemptsPerQuestion; when the pool runs dry inside the budget the
// batch comes back short, possibly empty. An empty batch means exhaustion
// and is never retried here: used only grows, so a retry cannot do better.
func (g *Generator) Batch(count int, used map[string]bool) []models.Question {
	pool := g.pool()
	archetypes := g.archetypes()
	if len(pool) == 0 || len(archetypes) == 0 || count <= 0 {
		return nil
	}

	var out []models.Question
	budget := count * attemptsPerQuestion

	for budget > 0 && len(out) < count {
		budget--

		country := &pool[g.rng.Intn(len(pool))]
		archetype := archetypes[g.rng.Intn(len(archetypes))]

		id := CompositeID(country.Name, archetype)
		if used[id] {
			continue
		}

		q, ok := builders[archetype](g, country, pool)
		if !ok {
			// Entity lacks the fields this archetype needs. Still costs
			// budget so a sparse dataset cannot spin forever.
			continue
		}

		q.ID = id
		q.Archetype = archetype
		q.CountryName = country.Name
		used[id] = true
		out = append(out, q)
	}

	return out
}

// Sequence generates exactly count questions for a finite server-backed
// game, or as many as the pool allows.
func (g *Generator) Sequence(count int) []models.Question {
	used := make(map[string]bool)
	return g.Batch(count, used)
}

func (g *Generator) pool() []models.Country {
	all := g.store.List()
	if g.opts.Region == "" {
		return all
	}
	var filtered []models.Country
	for _, c := range all {
		if strings.EqualFold(c.Region, g.opts.Region) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func (g *Generator) archetypes() []string {
	all := []string{
		constants.ArchetypeCapital,
		constants.ArchetypeFlag,
		constants.ArchetypeCurrency,
		constants.ArchetypeLanguage,
		constants.ArchetypePopulationRange,
		constants.ArchetypeRegion,
		constants.ArchetypeAreaRange,
	}
	if g.opts.MaxDifficulty <= 0 {
		return all
	}
	var out []string
	for _, a := range all {
		if archetypeDifficulty[a] <= g.opts.MaxDifficulty {
			out = append(out, a)
		}
	}
	return out
}

// pickDistractors selects distractorCount distinct values from candidates,
// excluding the correct answer. Returns false when the pool is too small.
func (g *Generator) pickDistractors(candidates []string, correct string) ([]string, bool) {
	seen := map[string]bool{correct: true}
	var unique []string
	for _, v := range candidates {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		unique = append(unique, v)
	}
	if len(unique) < distractorCount {
		return nil, false
	}

	g.rng.Shuffle(len(unique), func(i, j int) {
		unique[i], unique[j] = unique[j], unique[i]
	})
	return unique[:distractorCount], true
}

// assemble builds the option list: correct answer plus distractors in a
// uniform random order.
func (g *Generator) assemble(correct string, distractors []string) []string {
	options := make([]string, 0, len(distractors)+1)
	options = append(options, correct)
	options = append(options, distractors...)
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}

package generator

import (
	"fmt"

	"trivia-service/internal/constants"
	"trivia-service/internal/models"
)

// builderFunc synthesizes one question for a country, drawing distractors
// from the rest of the pool. ok is false when the country is missing the
// fields the archetype needs or the distractor pool is too thin.
type builderFunc func(g *Generator, c *models.Country, pool []models.Country) (models.Question, bool)

// builders is the archetype dispatch table. Adding an archetype means adding
// an entry here plus its constant; nothing else branches on the type.
var builders = map[string]builderFunc{
	constants.ArchetypeCapital:         buildCapital,
	constants.ArchetypeFlag:            buildFlag,
	constants.ArchetypeCurrency:        buildCurrency,
	constants.ArchetypeLanguage:        buildLanguage,
	constants.ArchetypePopulationRange: buildPopulationRange,
	constants.ArchetypeRegion:          buildRegion,
	constants.ArchetypeAreaRange:       buildAreaRange,
}

var archetypeDifficulty = map[string]int{
	constants.ArchetypeCapital:         1,
	constants.ArchetypeFlag:            1,
	constants.ArchetypeRegion:          2,
	constants.ArchetypeCurrency:        3,
	constants.ArchetypeLanguage:        3,
	constants.ArchetypePopulationRange: 4,
	constants.ArchetypeAreaRange:       4,
}

const defaultBasePoints = 100

func timeLimitFor(difficulty int) int {
	switch {
	case difficulty <= 2:
		return 30
	case difficulty == 3:
		return 25
	default:
		return 20
	}
}

func newQuestion(text, correct string, options []string, archetype string) models.Question {
	difficulty := archetypeDifficulty[archetype]
	return models.Question{
		Text:          text,
		Options:       options,
		CorrectAnswer: correct,
		Difficulty:    difficulty,
		BasePoints:    defaultBasePoints,
		TimeLimitSec:  timeLimitFor(difficulty),
	}
}

func buildCapital(g *Generator, c *models.Country, pool []models.Country) (models.Question, bool) {
	if c.Capital == "" {
		return models.Question{}, false
	}
	candidates := make([]string, 0, len(pool))
	for _, other := range pool {
		candidates = append(candidates, other.Capital)
	}
	distractors, ok := g.pickDistractors(candidates, c.Capital)
	if !ok {
		return models.Question{}, false
	}
	text := fmt.Sprintf("What is the capital of %s?", c.Name)
	return newQuestion(text, c.Capital, g.assemble(c.Capital, distractors), constants.ArchetypeCapital), true
}

func buildFlag(g *Generator, c *models.Country, pool []models.Country) (models.Question, bool) {
	if c.FlagURL == "" {
		return models.Question{}, false
	}
	candidates := make([]string, 0, len(pool))
	for _, other := range pool {
		candidates = append(candidates, other.Name)
	}
	distractors, ok := g.pickDistractors(candidates, c.Name)
	if !ok {
		return models.Question{}, false
	}
	q := newQuestion("Which country does this flag belong to?", c.Name, g.assemble(c.Name, distractors), constants.ArchetypeFlag)
	q.ImageURL = c.FlagURL
	return q, true
}

func buildCurrency(g *Generator, c *models.Country, pool []models.Country) (models.Question, bool) {
	if len(c.Currencies) == 0 {
		return models.Question{}, false
	}
	correct := c.Currencies[0]
	var candidates []string
	for _, other := range pool {
		for _, cur := range other.Currencies {
			// A currency shared with the target country would make two
			// options correct at once.
			if !contains(c.Currencies, cur) {
				candidates = append(candidates, cur)
			}
		}
	}
	distractors, ok := g.pickDistractors(candidates, correct)
	if !ok {
		return models.Question{}, false
	}
	text := fmt.Sprintf("What currency is used in %s?", c.Name)
	return newQuestion(text, correct, g.assemble(correct, distractors), constants.ArchetypeCurrency), true
}

func buildLanguage(g *Generator, c *models.Country, pool []models.Country) (models.Question, bool) {
	if len(c.Languages) == 0 {
		return models.Question{}, false
	}
	correct := c.Languages[0]
	var candidates []string
	for _, other := range pool {
		for _, lang := range other.Languages {
			if !contains(c.Languages, lang) {
				candidates = append(candidates, lang)
			}
		}
	}
	distractors, ok := g.pickDistractors(candidates, correct)
	if !ok {
		return models.Question{}, false
	}
	text := fmt.Sprintf("Which language is officially spoken in %s?", c.Name)
	return newQuestion(text, correct, g.assemble(correct, distractors), constants.ArchetypeLanguage), true
}

func buildRegion(g *Generator, c *models.Country, pool []models.Country) (models.Question, bool) {
	if c.Region == "" {
		return models.Question{}, false
	}
	candidates := make([]string, 0, len(pool))
	for _, other := range pool {
		candidates = append(candidates, other.Region)
	}
	distractors, ok := g.pickDistractors(candidates, c.Region)
	if !ok {
		// Region pools are small; fall back to the fixed continent list.
		distractors, ok = g.pickDistractors(allRegions, c.Region)
		if !ok {
			return models.Question{}, false
		}
	}
	text := fmt.Sprintf("In which region of the world is %s located?", c.Name)
	return newQuestion(text, c.Region, g.assemble(c.Region, distractors), constants.ArchetypeRegion), true
}

var allRegions = []string{"Africa", "Americas", "Asia", "Europe", "Oceania", "Antarctic"}

var populationBuckets = []struct {
	label string
	max   int64
}{
	{"Under 1 million", 1_000_000},
	{"1 to 10 million", 10_000_000},
	{"10 to 50 million", 50_000_000},
	{"50 to 100 million", 100_000_000},
	{"100 to 500 million", 500_000_000},
	{"Over 500 million", 0},
}

func populationBucket(population int64) string {
	for _, b := range populationBuckets {
		if b.max > 0 && population < b.max {
			return b.label
		}
	}
	return populationBuckets[len(populationBuckets)-1].label
}

func buildPopulationRange(g *Generator, c *models.Country, pool []models.Country) (models.Question, bool) {
	if c.Population <= 0 {
		return models.Question{}, false
	}
	correct := populationBucket(c.Population)
	labels := make([]string, 0, len(populationBuckets))
	for _, b := range populationBuckets {
		labels = append(labels, b.label)
	}
	distractors, ok := g.pickDistractors(labels, correct)
	if !ok {
		return models.Question{}, false
	}
	text := fmt.Sprintf("What is the approximate population of %s?", c.Name)
	return newQuestion(text, correct, g.assemble(correct, distractors), constants.ArchetypePopulationRange), true
}

var areaBuckets = []struct {
	label string
	max   float64
}{
	{"Under 50,000 km²", 50_000},
	{"50,000 to 300,000 km²", 300_000},
	{"300,000 to 1 million km²", 1_000_000},
	{"1 to 3 million km²", 3_000_000},
	{"Over 3 million km²", 0},
}

func areaBucket(area float64) string {
	for _, b := range areaBuckets {
		if b.max > 0 && area < b.max {
			return b.label
		}
	}
	return areaBuckets[len(areaBuckets)-1].label
}

func buildAreaRange(g *Generator, c *models.Country, pool []models.Country) (models.Question, bool) {
	if c.Area <= 0 {
		return models.Question{}, false
	}
	correct := areaBucket(c.Area)
	labels := make([]string, 0, len(areaBuckets))
	for _, b := range areaBuckets {
		labels = append(labels, b.label)
	}
	distractors, ok := g.pickDistractors(labels, correct)
	if !ok {
		return models.Question{}, false
	}
	text := fmt.Sprintf("What is the approximate land area of %s?", c.Name)
	return newQuestion(text, correct, g.assemble(correct, distractors), constants.ArchetypeAreaRange), true
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

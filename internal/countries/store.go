package countries

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"trivia-service/internal/models"
	"trivia-service/pkg/cache"
)

const snapshotKey = "trivia:countries:data"

// Store holds the country dataset used as raw material for question
// generation. It is read-only after Load.
type Store struct {
	countries []models.Country
	byName    map[string]*models.Country
	redis     *cache.RedisClient
}

func NewStore(redisClient *cache.RedisClient) *Store {
	return &Store{
		byName: make(map[string]*models.Country),
		redis:  redisClient,
	}
}

// Load reads the dataset, preferring the Redis snapshot over the bundled
// file so warm restarts skip the file read.
func (s *Store) Load(ctx context.Context, path string) error {
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, snapshotKey); err == nil {
			var fromCache []models.Country
			if err := json.Unmarshal([]byte(data), &fromCache); err == nil && len(fromCache) > 0 {
				s.index(fromCache)
				log.Printf("Loaded %d countries from Redis snapshot", len(fromCache))
				return nil
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read countries file: %w", err)
	}

	var loaded []models.Country
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse countries file: %w", err)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("countries file %s is empty", path)
	}

	s.index(loaded)

	if s.redis != nil {
		if err := s.redis.Set(ctx, snapshotKey, string(data), 24*time.Hour); err != nil {
			log.Printf("Failed to cache countries snapshot: %v", err)
		}
	}

	log.Printf("Loaded %d countries from %s", len(loaded), path)
	return nil
}

func (s *Store) index(countries []models.Country) {
	s.countries = countries
	s.byName = make(map[string]*models.Country, len(countries))
	for i := range s.countries {
		s.byName[s.countries[i].Name] = &s.countries[i]
	}
}

// List returns all countries. Callers must not mutate the returned slice.
func (s *Store) List() []models.Country {
	return s.countries
}

func (s *Store) ByName(name string) (*models.Country, bool) {
	c, ok := s.byName[name]
	return c, ok
}

func (s *Store) Count() int {
	return len(s.countries)
}

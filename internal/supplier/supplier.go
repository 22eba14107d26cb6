// Package supplier produces non-repeating questions for one session, either
// pulled from a persisted per-game sequence or synthesized on demand from
// the country dataset.
package supplier

import (
	"context"
	"fmt"
	"log"
	"sync"

	"trivia-service/internal/generator"
	"trivia-service/internal/models"
	"trivia-service/internal/repository"
	"trivia-service/pkg/cache"
)

// Supplier hands out batches of fresh questions. An empty batch with a nil
// error means the pool is exhausted and the session should wind down; it is
// not an error and is never worth retrying. A non-nil error is recoverable:
// the caller stays in its loading state and decides whether to try again.
type Supplier interface {
	Batch(ctx context.Context, count int) ([]models.Question, error)
}

// SequenceSupplier pulls from the fixed ordered question rows persisted for
// one server-backed game. Each Batch call advances the cursor.
type SequenceSupplier struct {
	gameID    string
	questions *repository.QuestionRepository

	mu     sync.Mutex
	cursor int
}

func NewSequenceSupplier(gameID string, questions *repository.QuestionRepository, startIndex int) *SequenceSupplier {
	return &SequenceSupplier{
		gameID:    gameID,
		questions: questions,
		cursor:    startIndex,
	}
}

func (s *SequenceSupplier) Batch(ctx context.Context, count int) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.questions.GetRange(ctx, s.gameID, s.cursor, count)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch question sequence: %w", err)
	}
	s.cursor += len(batch)
	return batch, nil
}

// GenerativeSupplier synthesizes questions for infinite mode. It owns the
// session's used-id set: append-only, mutated nowhere else.
type GenerativeSupplier struct {
	gen       *generator.Generator
	sessionID string
	redis     *cache.RedisClient

	mu   sync.Mutex
	used map[string]bool
}

func NewGenerativeSupplier(gen *generator.Generator, sessionID string, redisClient *cache.RedisClient) *GenerativeSupplier {
	return &GenerativeSupplier{
		gen:       gen,
		sessionID: sessionID,
		redis:     redisClient,
		used:      make(map[string]bool),
	}
}

func (s *GenerativeSupplier) Batch(ctx context.Context, count int) ([]models.Question, error) {
	s.mu.Lock()
	batch := s.gen.Batch(count, s.used)
	s.mu.Unlock()

	if s.redis != nil && len(batch) > 0 {
		ids := make([]interface{}, len(batch))
		for i, q := range batch {
			ids[i] = q.ID
		}
		key := fmt.Sprintf("trivia:session:%s:used", s.sessionID)
		if err := s.redis.SAdd(ctx, key, ids...); err != nil {
			log.Printf("Failed to mirror used question ids: %v", err)
		}
	}

	return batch, nil
}

// UsedCount reports how many composite ids this session has consumed.
func (s *GenerativeSupplier) UsedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.used)
}

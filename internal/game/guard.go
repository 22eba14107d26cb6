package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trivia-service/internal/models"
	"trivia-service/internal/repository"
	"trivia-service/pkg/cache"
)

const activePointerTTL = 24 * time.Hour

func activePointerKey(userID string) string {
	return fmt.Sprintf("trivia:user:%s:active", userID)
}

// Guard mediates the start of server-backed sessions: before a new session
// is created it surfaces any session still in progress so the learner can
// continue it or abandon it explicitly.
type Guard struct {
	sessions *repository.SessionRepository
	redis    *cache.RedisClient
}

func NewGuard(sessions *repository.SessionRepository, redisClient *cache.RedisClient) *Guard {
	return &Guard{sessions: sessions, redis: redisClient}
}

// CheckActive returns an *ActiveSessionError when the learner has a session
// in progress, nil when the way is clear. The Redis pointer is a fast path;
// the database stays authoritative.
func (g *Guard) CheckActive(ctx context.Context, userID string) error {
	if g.redis != nil {
		if sessionID, err := g.redis.Get(ctx, activePointerKey(userID)); err == nil && sessionID != "" {
			session, err := g.sessions.GetSession(ctx, sessionID)
			if err == nil && !session.IsFinished() {
				return &ActiveSessionError{Session: session}
			}
			// Stale pointer; clear it and fall through to the database.
			if err := g.redis.Delete(ctx, activePointerKey(userID)); err != nil {
				log.Printf("Failed to clear stale active pointer for user %s: %v", userID, err)
			}
		}
	}

	session, err := g.sessions.GetActiveSession(ctx, userID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check for active session: %w", err)
	}
	return &ActiveSessionError{Session: session}
}

// Refetch loads the learner's current active session after a create was
// rejected by the backend; used to re-present the choice instead of
// treating the rejection as fatal.
func (g *Guard) Refetch(ctx context.Context, userID string) (*models.GameSession, error) {
	return g.sessions.GetActiveSession(ctx, userID)
}

func (g *Guard) MarkActive(ctx context.Context, userID, sessionID string) {
	if g.redis == nil {
		return
	}
	if err := g.redis.Set(ctx, activePointerKey(userID), sessionID, activePointerTTL); err != nil {
		log.Printf("Failed to set active pointer for user %s: %v", userID, err)
	}
}

func (g *Guard) ClearActive(ctx context.Context, userID string) {
	if g.redis == nil {
		return
	}
	if err := g.redis.Delete(ctx, activePointerKey(userID)); err != nil {
		log.Printf("Failed to clear active pointer for user %s: %v", userID, err)
	}
}

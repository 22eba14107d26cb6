package game

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"trivia-service/config"
	"trivia-service/internal/constants"
	"trivia-service/internal/countries"
	"trivia-service/internal/generator"
	"trivia-service/internal/models"
	"trivia-service/internal/stats"
	"trivia-service/internal/supplier"
	"trivia-service/pkg/cache"

	"github.com/google/uuid"
)

// Manager owns the live engines: one active engine per learner, looked up
// by session id for play and observation.
type Manager struct {
	mu      sync.Mutex
	engines map[string]*Engine // session id -> engine
	byUser  map[string]string  // user id -> session id

	svc       *Service
	store     *countries.Store
	redis     *cache.RedisClient
	publisher stats.Publisher
	cfg       *config.GameConfig
}

func NewManager(svc *Service, store *countries.Store, redisClient *cache.RedisClient, publisher stats.Publisher, cfg *config.GameConfig) *Manager {
	return &Manager{
		engines:   make(map[string]*Engine),
		byUser:    make(map[string]string),
		svc:       svc,
		store:     store,
		redis:     redisClient,
		publisher: publisher,
		cfg:       cfg,
	}
}

// StartInfinite builds and starts an infinite-mode engine. Infinite games
// are not resumable, so any previous live game of the learner is abandoned
// first; the resumption guard applies only to server-backed modes.
func (m *Manager) StartInfinite(ctx context.Context, userID string, opts generator.Options) (*Engine, error) {
	m.closeExistingForUser(userID)

	session := &models.GameSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		Mode:           constants.ModeInfinite,
		Status:         constants.SessionStatusInProgress,
		LivesRemaining: sql.NullInt32{Int32: int32(m.cfg.InfiniteLives), Valid: true},
		StartedAt:      time.Now(),
	}

	sup := supplier.NewGenerativeSupplier(generator.New(m.store, opts), session.ID, m.redis)
	engine := NewEngine(session, sup, InfiniteResolver{}, EngineConfig{
		PrefetchLowWater: m.cfg.PrefetchLowWater,
		PrefetchBatch:    m.cfg.PrefetchBatch,
		OnTerminal:       m.onInfiniteTerminal,
	})

	m.register(userID, session.ID, engine)

	if err := engine.Start(ctx); err != nil {
		// Recoverable supply failure: the engine stays registered in
		// Loading so the learner can retry.
		return engine, err
	}
	log.Printf("Infinite session started: id=%s, user=%s, lives=%d",
		session.ID, userID, m.cfg.InfiniteLives)
	return engine, nil
}

// StartServerPlay wraps an existing server-backed session in an engine for
// live timed play: questions pull from the persisted sequence and answers
// submit through the persistence service. Resuming mid-game picks up at the
// stored cursor with score and streak intact.
func (m *Manager) StartServerPlay(ctx context.Context, userID, gameID string) (*Engine, error) {
	session, err := m.svc.getOwnedSession(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if session.IsFinished() {
		return nil, ErrSessionFinished
	}

	m.mu.Lock()
	if id, ok := m.byUser[userID]; ok && id == gameID {
		if engine, ok := m.engines[id]; ok {
			m.mu.Unlock()
			return engine, nil
		}
	}
	m.mu.Unlock()

	// Any other live engine of the learner is stale from here on; its
	// timers must not keep running behind the new one.
	m.closeExistingForUser(userID)

	sup := supplier.NewSequenceSupplier(gameID, m.svc.questions, session.CurrentQuestionIndex)
	engine := NewEngine(session, sup, &ServerResolver{
		Service: m.svc,
		UserID:  userID,
		Retry:   RetryPolicy{MaxAttempts: m.cfg.SubmitMaxRetries, Backoff: 250 * time.Millisecond},
	}, EngineConfig{
		PrefetchLowWater: m.cfg.PrefetchLowWater,
		PrefetchBatch:    m.cfg.PrefetchBatch,
		// Terminal persistence and stats are the service's job on the
		// final submission; the engine only mirrors them and gets
		// discarded.
		OnTerminal: func(s *models.GameSession) { m.remove(s.ID) },
	})

	m.register(userID, gameID, engine)

	if err := engine.Start(ctx); err != nil {
		return engine, err
	}
	return engine, nil
}

func (m *Manager) register(userID, sessionID string, engine *Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[sessionID] = engine
	m.byUser[userID] = sessionID
}

// Get looks up a live engine by session id.
func (m *Manager) Get(sessionID string) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	engine, ok := m.engines[sessionID]
	return engine, ok
}

// Abandon ends a live session explicitly, cancelling its timer and
// prefetch before the state is discarded.
func (m *Manager) Abandon(sessionID string) (*models.GameSession, bool) {
	m.mu.Lock()
	engine, ok := m.engines[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	// OnTerminal fires inside Abandon for infinite engines, so the stats
	// snapshot goes out exactly once.
	session := engine.Abandon()
	m.remove(sessionID)
	return session, true
}

func (m *Manager) closeExistingForUser(userID string) {
	m.mu.Lock()
	sessionID, ok := m.byUser[userID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if _, abandoned := m.Abandon(sessionID); abandoned {
		log.Printf("Abandoned previous live session %s for user %s", sessionID, userID)
	}
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if engine, ok := m.engines[sessionID]; ok {
		engine.Close()
		delete(m.engines, sessionID)
	}
	for user, id := range m.byUser {
		if id == sessionID {
			delete(m.byUser, user)
		}
	}
}

func (m *Manager) onInfiniteTerminal(session *models.GameSession) {
	if m.publisher != nil {
		m.publisher.PublishSessionFinished(context.Background(), SnapshotOf(session))
	}
	log.Printf("Infinite session finished: id=%s, score=%d, best_streak=%d",
		session.ID, session.Score, session.BestStreak)
	m.remove(session.ID)
}

package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"trivia-service/internal/constants"
	"trivia-service/internal/countries"
	"trivia-service/internal/generator"
	"trivia-service/internal/models"
	"trivia-service/internal/repository"
	"trivia-service/internal/scoring"
	"trivia-service/internal/stats"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// StartRequest carries the learner's choices for a new server-backed game.
type StartRequest struct {
	Mode           string `json:"mode"`
	TotalQuestions int    `json:"total_questions,omitempty"`
	Difficulty     int    `json:"difficulty,omitempty"`
	Region         string `json:"region,omitempty"`
}

// Service owns the server-backed session lifecycle: it is the persistence
// backend the finite modes synchronize against.
type Service struct {
	sessions  *repository.SessionRepository
	questions *repository.QuestionRepository
	store     *countries.Store
	guard     *Guard
	publisher stats.Publisher
}

func NewService(
	sessions *repository.SessionRepository,
	questions *repository.QuestionRepository,
	store *countries.Store,
	guard *Guard,
	publisher stats.Publisher,
) *Service {
	return &Service{
		sessions:  sessions,
		questions: questions,
		store:     store,
		guard:     guard,
		publisher: publisher,
	}
}

func (s *Service) Guard() *Guard { return s.guard }

// Start creates a new finite session after the resumption guard clears.
// When a session is already running, the returned *ActiveSessionError
// carries it so the learner can continue or abandon; the same applies when
// a concurrent create loses the race on the database's one-active-session
// constraint.
func (s *Service) Start(ctx context.Context, userID string, req StartRequest) (*models.GameSession, error) {
	seq, totalQuestions, err := s.buildSequence(req)
	if err != nil {
		return nil, err
	}

	if err := s.guard.CheckActive(ctx, userID); err != nil {
		return nil, err
	}

	session := &models.GameSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		Mode:           req.Mode,
		Status:         constants.SessionStatusInProgress,
		TotalQuestions: totalQuestions,
		StartedAt:      time.Now(),
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			// Lost a race: someone started a session between the guard
			// check and the insert. Re-fetch and re-present the choice.
			active, ferr := s.guard.Refetch(ctx, userID)
			if ferr != nil {
				return nil, fmt.Errorf("active session conflict, refetch failed: %w", ferr)
			}
			return nil, &ActiveSessionError{Session: active}
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.questions.CreateSequence(ctx, session.ID, seq); err != nil {
		if aerr := s.sessions.FinishSession(ctx, session.ID, constants.SessionStatusAbandoned); aerr != nil {
			log.Printf("Failed to discard session %s after sequence error: %v", session.ID, aerr)
		}
		return nil, fmt.Errorf("failed to persist question sequence: %w", err)
	}

	s.guard.MarkActive(ctx, userID, session.ID)
	log.Printf("Session started: id=%s, user=%s, mode=%s, questions=%d",
		session.ID, userID, session.Mode, totalQuestions)
	return session, nil
}

func (s *Service) buildSequence(req StartRequest) ([]models.Question, int, error) {
	opts := generator.Options{Region: req.Region, MaxDifficulty: req.Difficulty}
	var (
		gen   *generator.Generator
		count int
	)

	switch req.Mode {
	case constants.ModeQuick:
		count = constants.QuickQuestionCount
		if opts.MaxDifficulty == 0 {
			opts.MaxDifficulty = 3
		}
		gen = generator.New(s.store, opts)
	case constants.ModeChallenge:
		count = constants.ChallengeQuestionCount
		gen = generator.New(s.store, opts)
	case constants.ModeDaily:
		// Same sequence for every learner for one UTC day.
		count = constants.DailyQuestionCount
		gen = generator.NewSeeded(s.store, opts, generator.DailySeed(time.Now()))
	default:
		return nil, 0, ErrUnknownMode
	}

	if req.TotalQuestions > 0 {
		count = req.TotalQuestions
	}

	seq := gen.Sequence(count)
	if len(seq) == 0 {
		return nil, 0, fmt.Errorf("%w: no questions could be generated", ErrSupply)
	}
	return seq, len(seq), nil
}

// Active returns the learner's in-progress session, or nil when there is
// none.
func (s *Service) Active(ctx context.Context, userID string) (*models.GameSession, error) {
	session, err := s.sessions.GetActiveSession(ctx, userID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) getOwnedSession(ctx context.Context, userID, gameID string) (*models.GameSession, error) {
	session, err := s.sessions.GetSession(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotOwner
	}
	return session, nil
}

// NextQuestion returns the question at the session's cursor. Once the last
// question has been answered no further question exists and the call fails
// with ErrSessionFinished rather than fetching past the sequence.
func (s *Service) NextQuestion(ctx context.Context, userID, gameID string) (*models.Question, int, error) {
	session, err := s.getOwnedSession(ctx, userID, gameID)
	if err != nil {
		return nil, 0, err
	}
	if session.IsFinished() || session.CurrentQuestionIndex >= session.TotalQuestions {
		return nil, 0, ErrSessionFinished
	}

	q, err := s.questions.GetByOrderIndex(ctx, gameID, session.CurrentQuestionIndex)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSupply, err)
	}
	return q, session.CurrentQuestionIndex, nil
}

// SubmitAnswer scores and applies one answer. The cursor comparison makes a
// replayed submission harmless: a question behind the cursor reports
// ErrAlreadyAnswered instead of counting twice.
func (s *Service) SubmitAnswer(ctx context.Context, userID, gameID string, answer *models.Answer) (*models.AnswerResult, error) {
	session, err := s.getOwnedSession(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if session.IsFinished() {
		return nil, ErrSessionFinished
	}

	q, orderIndex, _, err := s.questions.GetByID(ctx, gameID, answer.QuestionID)
	if err != nil {
		return nil, err
	}
	if orderIndex < session.CurrentQuestionIndex {
		return nil, ErrAlreadyAnswered
	}
	if orderIndex != session.CurrentQuestionIndex {
		return nil, ErrWrongQuestion
	}

	correct := scoring.IsCorrect(q, answer)
	points := scoring.ServerPoints(q, answer, session.CurrentStreak)

	session.CurrentQuestionIndex++
	session.Score += points
	if correct {
		session.CorrectAnswers++
		session.CurrentStreak++
		if session.CurrentStreak > session.BestStreak {
			session.BestStreak = session.CurrentStreak
		}
	} else {
		session.CurrentStreak = 0
	}

	hasNext := session.CurrentQuestionIndex < session.TotalQuestions
	if !hasNext {
		session.Status = constants.SessionStatusCompleted
		session.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if err := s.questions.MarkAnswered(ctx, gameID, answer.QuestionID); err != nil &&
		!errors.Is(err, repository.ErrQuestionNotFound) {
		log.Printf("Failed to mark question %s answered: %v", answer.QuestionID, err)
	}

	if !hasNext {
		s.finalize(ctx, session)
	}

	return &models.AnswerResult{
		Correct:          correct,
		CorrectAnswer:    q.CorrectAnswer,
		PointsEarned:     points,
		CurrentGameScore: session.Score,
		CurrentStreak:    session.CurrentStreak,
		HasNextQuestion:  hasNext,
	}, nil
}

// Finish closes a session as completed before its natural end.
func (s *Service) Finish(ctx context.Context, userID, gameID string) (*models.GameSession, error) {
	return s.terminate(ctx, userID, gameID, constants.SessionStatusCompleted)
}

// Abandon marks the session abandoned; the explicit call the resumption
// flow requires before a new session may start.
func (s *Service) Abandon(ctx context.Context, userID, gameID string) error {
	_, err := s.terminate(ctx, userID, gameID, constants.SessionStatusAbandoned)
	return err
}

func (s *Service) terminate(ctx context.Context, userID, gameID, status string) (*models.GameSession, error) {
	session, err := s.getOwnedSession(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if session.IsFinished() {
		return nil, ErrSessionFinished
	}

	if err := s.sessions.FinishSession(ctx, gameID, status); err != nil {
		return nil, err
	}
	session.Status = status
	session.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	s.finalize(ctx, session)
	return session, nil
}

func (s *Service) finalize(ctx context.Context, session *models.GameSession) {
	s.guard.ClearActive(ctx, session.UserID)
	if s.publisher != nil {
		s.publisher.PublishSessionFinished(ctx, SnapshotOf(session))
	}
	log.Printf("Session finished: id=%s, status=%s, score=%d, streak=%d",
		session.ID, session.Status, session.Score, session.BestStreak)
}

// SnapshotOf builds the terminal summary emitted to the stats consumers.
func SnapshotOf(session *models.GameSession) *models.SessionSnapshot {
	finishedAt := time.Now()
	if session.FinishedAt.Valid {
		finishedAt = session.FinishedAt.Time
	}
	return &models.SessionSnapshot{
		SessionID:      session.ID,
		UserID:         session.UserID,
		Mode:           session.Mode,
		Status:         session.Status,
		Score:          session.Score,
		CorrectAnswers: session.CorrectAnswers,
		TotalQuestions: session.TotalQuestions,
		BestStreak:     session.BestStreak,
		FinishedAt:     finishedAt,
	}
}

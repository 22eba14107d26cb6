package game

import (
	"context"
	"errors"
	"fmt"

	"trivia-service/internal/models"
	"trivia-service/internal/scoring"
)

// Resolver turns an answer into a scored result without touching engine
// state. The engine applies what comes back.
type Resolver interface {
	Resolve(ctx context.Context, session *models.GameSession, q *models.Question, a *models.Answer) (*models.AnswerResult, error)
}

// InfiniteResolver scores entirely locally with the fixed infinite-mode
// rule. It never fails and never talks to the network.
type InfiniteResolver struct{}

func (InfiniteResolver) Resolve(_ context.Context, session *models.GameSession, q *models.Question, a *models.Answer) (*models.AnswerResult, error) {
	correct := scoring.IsCorrect(q, a)
	points := scoring.InfinitePoints(q, a, session.CurrentStreak)

	streak := 0
	if correct {
		streak = session.CurrentStreak + 1
	}

	return &models.AnswerResult{
		Correct:          correct,
		CorrectAnswer:    q.CorrectAnswer,
		PointsEarned:     points,
		CurrentGameScore: session.Score + points,
		CurrentStreak:    streak,
	}, nil
}

// sessionBackend is what ServerResolver needs from the persistence service.
type sessionBackend interface {
	SubmitAnswer(ctx context.Context, userID, gameID string, answer *models.Answer) (*models.AnswerResult, error)
	getOwnedSession(ctx context.Context, userID, gameID string) (*models.GameSession, error)
}

// ServerResolver submits through the persistence service; points come back
// from the server and the local view only mirrors them. Submissions retry
// under the bounded policy.
type ServerResolver struct {
	Service sessionBackend
	UserID  string
	Retry   RetryPolicy
}

func (r *ServerResolver) Resolve(ctx context.Context, session *models.GameSession, q *models.Question, a *models.Answer) (*models.AnswerResult, error) {
	var result *models.AnswerResult
	err := r.Retry.Do(ctx, func(ctx context.Context) error {
		var rerr error
		result, rerr = r.Service.SubmitAnswer(ctx, r.UserID, session.ID, a)
		return rerr
	})
	if errors.Is(err, ErrAlreadyAnswered) {
		// The write landed but its response was lost: the server already
		// counted this question. Rebuild the result from the stored state
		// so the session moves on instead of resubmitting forever.
		return r.resync(ctx, session, q, a)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ServerResolver) resync(ctx context.Context, session *models.GameSession, q *models.Question, a *models.Answer) (*models.AnswerResult, error) {
	stored, err := r.Service.getOwnedSession(ctx, r.UserID, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: resync of a confirmed submission failed: %v", ErrSubmission, err)
	}

	return &models.AnswerResult{
		Correct:          scoring.IsCorrect(q, a),
		CorrectAnswer:    q.CorrectAnswer,
		PointsEarned:     stored.Score - session.Score,
		CurrentGameScore: stored.Score,
		CurrentStreak:    stored.CurrentStreak,
	}, nil
}

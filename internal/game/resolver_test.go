package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"trivia-service/internal/constants"
	"trivia-service/internal/models"
)

// confirmedBackend rejects every submission as already answered, the way
// the service does when a write committed but its response was lost.
type confirmedBackend struct {
	stored  models.GameSession
	submits int
	fetches int
}

func (b *confirmedBackend) SubmitAnswer(context.Context, string, string, *models.Answer) (*models.AnswerResult, error) {
	b.submits++
	return nil, fmt.Errorf("conflict: %w", ErrAlreadyAnswered)
}

func (b *confirmedBackend) getOwnedSession(context.Context, string, string) (*models.GameSession, error) {
	b.fetches++
	stored := b.stored
	return &stored, nil
}

func TestServerResolverResyncsConfirmedSubmission(t *testing.T) {
	backend := &confirmedBackend{stored: models.GameSession{
		ID:                   "session-2",
		UserID:               "user-1",
		CurrentQuestionIndex: 1,
		Score:                150,
		CurrentStreak:        2,
	}}
	r := &ServerResolver{
		Service: backend,
		UserID:  "user-1",
		Retry:   RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}

	session := &models.GameSession{ID: "session-2", UserID: "user-1", Score: 100, CurrentStreak: 1}
	q := &models.Question{ID: "q-1", CorrectAnswer: "A", TimeLimitSec: 30}
	a := &models.Answer{QuestionID: "q-1", SelectedAnswer: "A", ResponseTimeMs: 1000}

	result, err := r.Resolve(context.Background(), session, q, a)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Correct {
		t.Fatal("resynced result lost correctness")
	}
	if result.CurrentGameScore != 150 || result.PointsEarned != 50 {
		t.Fatalf("resynced score=%d earned=%d, want 150/50", result.CurrentGameScore, result.PointsEarned)
	}
	if result.CurrentStreak != 2 {
		t.Fatalf("resynced streak=%d, want 2", result.CurrentStreak)
	}
	if backend.submits != 1 {
		t.Fatalf("already-answered retried %d times, want a single submit", backend.submits)
	}
	if backend.fetches != 1 {
		t.Fatalf("resync fetched %d times, want 1", backend.fetches)
	}
}

// The session must advance once the server confirms the submission was
// counted, never wedge on the same question.
func TestEngineAdvancesPastConfirmedSubmission(t *testing.T) {
	backend := &confirmedBackend{stored: models.GameSession{
		ID:                   "session-2",
		UserID:               "user-1",
		Mode:                 constants.ModeQuick,
		Status:               constants.SessionStatusInProgress,
		TotalQuestions:       2,
		CurrentQuestionIndex: 1,
		Score:                100,
		CurrentStreak:        1,
	}}
	resolver := &ServerResolver{
		Service: backend,
		UserID:  "user-1",
		Retry:   RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}

	e := NewEngine(finiteSession(2), &endlessSupplier{}, resolver, EngineConfig{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result := submitCurrent(t, e, "A")
	if result.CurrentGameScore != 100 {
		t.Fatalf("score=%d, want the stored 100", result.CurrentGameScore)
	}
	if got := e.State(); got != constants.StateShowingResult {
		t.Fatalf("state=%s, want %s", got, constants.StateShowingResult)
	}
	if s := e.Session(); s.CurrentQuestionIndex != 1 || s.Score != 100 {
		t.Fatalf("session index=%d score=%d, want 1/100", s.CurrentQuestionIndex, s.Score)
	}
}

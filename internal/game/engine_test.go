package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"trivia-service/internal/constants"
	"trivia-service/internal/models"
)

// endlessSupplier hands out unique questions forever. The correct answer is
// always "A".
type endlessSupplier struct {
	mu   sync.Mutex
	next int
}

func (s *endlessSupplier) Batch(_ context.Context, count int) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Question, count)
	for i := range out {
		s.next++
		out[i] = models.Question{
			ID:            fmt.Sprintf("q-%d", s.next),
			Text:          "pick A",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Difficulty:    1,
			BasePoints:    100,
			TimeLimitSec:  60,
		}
	}
	return out, nil
}

// scriptedSupplier plays back a fixed list of responses, then keeps
// returning empty batches.
type scriptedSupplier struct {
	mu     sync.Mutex
	script []func(count int) ([]models.Question, error)
	calls  int
}

func (s *scriptedSupplier) Batch(_ context.Context, count int) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.script) == 0 {
		return nil, nil
	}
	fn := s.script[0]
	s.script = s.script[1:]
	return fn(count)
}

// flakyResolver fails the first n resolutions, then scores like infinite
// mode.
type flakyResolver struct {
	mu       sync.Mutex
	failures int
	calls    int
	inner    InfiniteResolver
}

func (r *flakyResolver) Resolve(ctx context.Context, session *models.GameSession, q *models.Question, a *models.Answer) (*models.AnswerResult, error) {
	r.mu.Lock()
	r.calls++
	fail := r.failures > 0
	if fail {
		r.failures--
	}
	r.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("%w: connection reset", ErrSubmission)
	}
	return r.inner.Resolve(ctx, session, q, a)
}

func infiniteSession() *models.GameSession {
	return &models.GameSession{
		ID:             "session-1",
		UserID:         "user-1",
		Mode:           constants.ModeInfinite,
		Status:         constants.SessionStatusInProgress,
		LivesRemaining: sql.NullInt32{Int32: 3, Valid: true},
		StartedAt:      time.Now(),
	}
}

func finiteSession(total int) *models.GameSession {
	return &models.GameSession{
		ID:             "session-2",
		UserID:         "user-1",
		Mode:           constants.ModeQuick,
		Status:         constants.SessionStatusInProgress,
		TotalQuestions: total,
		StartedAt:      time.Now(),
	}
}

func submitCurrent(t *testing.T, e *Engine, selected string) *models.AnswerResult {
	t.Helper()
	q := e.CurrentQuestion()
	if q == nil {
		t.Fatalf("no current question in state %s", e.State())
	}
	result, err := e.SubmitAnswer(context.Background(), q.ID, selected, false)
	if err != nil {
		t.Fatalf("SubmitAnswer(%s): %v", q.ID, err)
	}
	return result
}

func lives(t *testing.T, r *models.AnswerResult) int {
	t.Helper()
	if r.LivesRemaining == nil {
		t.Fatal("result carries no lives")
	}
	return *r.LivesRemaining
}

func advance(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
}

func TestEngineEmptyPoolCompletesGracefully(t *testing.T) {
	e := NewEngine(infiniteSession(), &scriptedSupplier{}, InfiniteResolver{}, EngineConfig{})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := e.State(); got != constants.StateCompleted {
		t.Fatalf("state=%s, want %s (an empty pool is completion, not game over)", got, constants.StateCompleted)
	}
	if s := e.Session(); s.Status != constants.SessionStatusCompleted {
		t.Fatalf("status=%s, want completed", s.Status)
	}
}

func TestEngineSupplyFailureIsRecoverable(t *testing.T) {
	sup := &scriptedSupplier{script: []func(int) ([]models.Question, error){
		func(int) ([]models.Question, error) { return nil, errors.New("upstream down") },
		func(count int) ([]models.Question, error) {
			return (&endlessSupplier{}).Batch(context.Background(), count)
		},
	}}
	e := NewEngine(infiniteSession(), sup, InfiniteResolver{}, EngineConfig{})

	err := e.Start(context.Background())
	if !errors.Is(err, ErrSupply) {
		t.Fatalf("Start error=%v, want ErrSupply", err)
	}
	if got := e.State(); got != constants.StateLoading {
		t.Fatalf("state after failed load=%s, want %s", got, constants.StateLoading)
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("retried Start: %v", err)
	}
	if got := e.State(); got != constants.StateAwaitingAnswer {
		t.Fatalf("state after retry=%s, want %s", got, constants.StateAwaitingAnswer)
	}
}

func TestEngineScoringAndStreak(t *testing.T) {
	e := NewEngine(infiniteSession(), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	wantPoints := []int{100, 105, 110}
	for i, want := range wantPoints {
		r := submitCurrent(t, e, "A")
		if r.PointsEarned != want {
			t.Fatalf("answer %d earned %d, want %d", i+1, r.PointsEarned, want)
		}
		if r.CurrentStreak != i+1 {
			t.Fatalf("answer %d streak=%d, want %d", i+1, r.CurrentStreak, i+1)
		}
		if !r.HasNextQuestion {
			t.Fatalf("answer %d reported no next question", i+1)
		}
		advance(t, e)
	}

	r := submitCurrent(t, e, "B")
	if r.Correct || r.PointsEarned != 0 {
		t.Fatalf("wrong answer scored: correct=%v points=%d", r.Correct, r.PointsEarned)
	}
	if r.CurrentStreak != 0 {
		t.Fatalf("streak after wrong answer=%d, want 0", r.CurrentStreak)
	}
	if got := lives(t, r); got != 2 {
		t.Fatalf("lives after wrong answer=%d, want 2", got)
	}

	s := e.Session()
	if s.Score != 315 || s.CorrectAnswers != 3 || s.BestStreak != 3 {
		t.Fatalf("session totals score=%d correct=%d best=%d, want 315/3/3", s.Score, s.CorrectAnswers, s.BestStreak)
	}
}

func TestEngineGameOverOnThirdWrongAnswer(t *testing.T) {
	terminal := make(chan models.GameSession, 1)
	e := NewEngine(infiniteSession(), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{
		OnTerminal: func(s *models.GameSession) { terminal <- *s },
	})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 2; i++ {
		r := submitCurrent(t, e, "B")
		if got := lives(t, r); got != 2-i {
			t.Fatalf("wrong answer %d: lives=%d, want %d", i+1, got, 2-i)
		}
		advance(t, e)
	}

	r := submitCurrent(t, e, "B")
	if got := lives(t, r); got != 0 {
		t.Fatalf("third wrong answer: lives=%d, want 0", got)
	}
	if body, err := json.Marshal(r); err != nil || !strings.Contains(string(body), `"lives_remaining":0`) {
		t.Fatalf("game-over result hides zero lives: %s (%v)", body, err)
	}
	if r.HasNextQuestion {
		t.Fatal("third wrong answer still reports a next question")
	}
	if got := e.State(); got != constants.StateGameOver {
		t.Fatalf("state=%s, want %s", got, constants.StateGameOver)
	}

	if err := e.Advance(context.Background()); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("Advance after game over=%v, want ErrSessionFinished", err)
	}

	select {
	case s := <-terminal:
		if s.Status != constants.SessionStatusCompleted {
			t.Fatalf("terminal status=%s, want completed", s.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("terminal callback never fired")
	}
}

func TestEngineFiniteCompletesAtTotal(t *testing.T) {
	e := NewEngine(finiteSession(2), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	r := submitCurrent(t, e, "A")
	if !r.HasNextQuestion {
		t.Fatal("first of two answers reported no next question")
	}
	advance(t, e)

	r = submitCurrent(t, e, "A")
	if r.HasNextQuestion {
		t.Fatal("final answer still reports a next question")
	}
	if got := e.State(); got != constants.StateCompleted {
		t.Fatalf("state=%s, want %s", got, constants.StateCompleted)
	}
	if s := e.Session(); s.Status != constants.SessionStatusCompleted || s.CurrentQuestionIndex != 2 {
		t.Fatalf("session status=%s index=%d, want completed/2", s.Status, s.CurrentQuestionIndex)
	}
}

func TestEngineTimeoutResolvesAsWrong(t *testing.T) {
	e := NewEngine(infiniteSession(), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	q := e.CurrentQuestion()
	e.mu.Lock()
	epoch := e.epoch
	e.mu.Unlock()

	e.handleTimeout(epoch)

	if got := e.State(); got != constants.StateShowingResult {
		t.Fatalf("state after timeout=%s, want %s", got, constants.StateShowingResult)
	}
	r := e.LastResult()
	if r == nil || r.Correct || r.PointsEarned != 0 {
		t.Fatalf("timeout result=%+v, want incorrect with zero points", r)
	}
	if got := lives(t, r); got != 2 {
		t.Fatalf("lives after timeout=%d, want 2", got)
	}

	// The learner's selection lost the race; it must not resolve again.
	if _, err := e.SubmitAnswer(context.Background(), q.ID, "A", false); !errors.Is(err, ErrNotAwaiting) {
		t.Fatalf("submit after timeout=%v, want ErrNotAwaiting", err)
	}
}

func TestEngineStaleTimeoutIsIgnored(t *testing.T) {
	e := NewEngine(infiniteSession(), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.mu.Lock()
	firstEpoch := e.epoch
	e.mu.Unlock()

	submitCurrent(t, e, "A")
	advance(t, e)

	before := e.Session()
	e.handleTimeout(firstEpoch)

	if got := e.State(); got != constants.StateAwaitingAnswer {
		t.Fatalf("stale timeout changed state to %s", got)
	}
	after := e.Session()
	if after.Score != before.Score || after.CurrentQuestionIndex != before.CurrentQuestionIndex {
		t.Fatal("stale timeout mutated the session")
	}
}

func TestEngineLateTimeoutAfterResolutionIsIgnored(t *testing.T) {
	e := NewEngine(infiniteSession(), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.mu.Lock()
	epoch := e.epoch
	e.mu.Unlock()

	r := submitCurrent(t, e, "A")
	e.handleTimeout(epoch)

	if got := e.LastResult(); got != r {
		t.Fatal("late timeout replaced the shown result")
	}
	if s := e.Session(); s.CurrentQuestionIndex != 1 {
		t.Fatalf("index=%d, want 1 (single resolution)", s.CurrentQuestionIndex)
	}
}

func TestEngineSubmissionRetry(t *testing.T) {
	resolver := &flakyResolver{failures: 1}
	e := NewEngine(infiniteSession(), &endlessSupplier{}, resolver, EngineConfig{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	q := e.CurrentQuestion()
	_, err := e.SubmitAnswer(context.Background(), q.ID, "A", false)
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("SubmitAnswer=%v, want ErrSubmission", err)
	}
	if got := e.State(); got != constants.StateAwaitingAnswer {
		t.Fatalf("state after failed submission=%s, want %s", got, constants.StateAwaitingAnswer)
	}

	r, err := e.RetrySubmission(context.Background())
	if err != nil {
		t.Fatalf("RetrySubmission: %v", err)
	}
	if !r.Correct || r.PointsEarned != 100 {
		t.Fatalf("retried result=%+v, want correct 100 points", r)
	}
	if resolver.calls != 2 {
		t.Fatalf("resolver called %d times, want 2", resolver.calls)
	}
	if got := e.State(); got != constants.StateShowingResult {
		t.Fatalf("state after retry=%s, want %s", got, constants.StateShowingResult)
	}
}

func TestEngineAdvanceRequiresShownResult(t *testing.T) {
	e := NewEngine(infiniteSession(), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Advance(context.Background()); !errors.Is(err, ErrNoResultToAck) {
		t.Fatalf("Advance while awaiting=%v, want ErrNoResultToAck", err)
	}
}

func TestEngineAbandon(t *testing.T) {
	terminal := make(chan models.GameSession, 1)
	e := NewEngine(infiniteSession(), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{
		OnTerminal: func(s *models.GameSession) { terminal <- *s },
	})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	events, cancel := e.Subscribe()
	defer cancel()

	s := e.Abandon()
	if s.Status != constants.SessionStatusAbandoned {
		t.Fatalf("status=%s, want abandoned", s.Status)
	}
	if !s.FinishedAt.Valid {
		t.Fatal("abandoned session has no finish time")
	}

	select {
	case got := <-terminal:
		if got.Status != constants.SessionStatusAbandoned {
			t.Fatalf("terminal status=%s, want abandoned", got.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("terminal callback never fired")
	}

	// The subscriber channel closes with the engine.
	for {
		if _, ok := <-events; !ok {
			break
		}
	}

	if _, err := e.SubmitAnswer(context.Background(), "q-1", "A", false); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("submit after abandon=%v, want ErrEngineClosed", err)
	}
}

func TestEngineSubscribeSeesQuestionThenResult(t *testing.T) {
	e := NewEngine(infiniteSession(), &endlessSupplier{}, InfiniteResolver{}, EngineConfig{})

	events, cancel := e.Subscribe()
	defer cancel()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	submitCurrent(t, e, "A")

	first := <-events
	if first.Type != EventQuestion {
		t.Fatalf("first event=%s, want %s", first.Type, EventQuestion)
	}
	if first.Question == nil || first.Question.ID == "" {
		t.Fatal("question event carries no question")
	}

	second := <-events
	if second.Type != EventResult {
		t.Fatalf("second event=%s, want %s", second.Type, EventResult)
	}
	if second.Result == nil || !second.Result.Correct {
		t.Fatalf("result event=%+v, want a correct result", second.Result)
	}
}

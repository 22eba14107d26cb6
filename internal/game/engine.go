package game

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"trivia-service/internal/constants"
	"trivia-service/internal/models"
	"trivia-service/internal/supplier"
)

// EngineConfig tunes one engine instance.
type EngineConfig struct {
	// PrefetchLowWater triggers a background refill when the number of
	// buffered unanswered questions drops to this level or below.
	PrefetchLowWater int
	// PrefetchBatch is how many questions each supplier request asks for.
	PrefetchBatch int
	// OnTerminal fires once when the session leaves in-progress.
	OnTerminal func(session *models.GameSession)
}

// Engine is the session state machine: it pulls questions from its
// supplier, presents one at a time under a countdown, resolves answers and
// timeouts (first trigger wins), and owns every mutation of its session.
// All state lives behind one mutex; the timer callback and the prefetch
// goroutine re-enter through it, so there is exactly one writer at a time.
type Engine struct {
	mu sync.Mutex

	session  *models.GameSession
	supplier supplier.Supplier
	resolver Resolver
	cfg      EngineConfig

	state       string
	buffer      []models.Question
	current     *models.Question
	presentedAt time.Time
	pending     *models.Answer // submitted but unresolved; retryable
	lastResult  *models.AnswerResult

	timer *time.Timer
	// epoch identifies the question a timer belongs to; a timeout carrying
	// a stale epoch is discarded instead of corrupting a later question.
	epoch int

	exhausted   bool
	prefetching bool
	closed      bool

	subscribers map[int]chan Event
	nextSubID   int
}

func NewEngine(session *models.GameSession, sup supplier.Supplier, resolver Resolver, cfg EngineConfig) *Engine {
	if cfg.PrefetchLowWater <= 0 {
		cfg.PrefetchLowWater = 3
	}
	if cfg.PrefetchBatch <= 0 {
		cfg.PrefetchBatch = 5
	}
	return &Engine{
		session:     session,
		supplier:    sup,
		resolver:    resolver,
		cfg:         cfg,
		state:       constants.StateLoading,
		subscribers: make(map[int]chan Event),
	}
}

// Start performs the initial load and presents the first question. A supply
// failure leaves the engine in Loading and is recoverable: call Start
// again. An immediately-empty pool completes the session.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.state != constants.StateLoading {
		return nil
	}

	if err := e.fillLocked(ctx); err != nil {
		return err
	}
	if len(e.buffer) == 0 {
		// Pool exhausted before a single question: graceful completion,
		// never an error and never a game over.
		e.completeLocked(constants.StateCompleted)
		return nil
	}

	e.presentNextLocked()
	return nil
}

// fillLocked requests one batch synchronously. Empty batch means the pool
// is done for this session.
func (e *Engine) fillLocked(ctx context.Context) error {
	if e.exhausted {
		return nil
	}
	batch, err := e.supplier.Batch(ctx, e.cfg.PrefetchBatch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSupply, err)
	}
	if len(batch) == 0 {
		e.exhausted = true
		return nil
	}
	e.buffer = append(e.buffer, batch...)
	return nil
}

func (e *Engine) presentNextLocked() {
	q := e.buffer[0]
	e.buffer = e.buffer[1:]
	e.current = &q
	e.presentedAt = time.Now()
	e.pending = nil
	e.lastResult = nil
	e.state = constants.StateAwaitingAnswer

	e.epoch++
	epoch := e.epoch
	e.stopTimerLocked()
	if q.TimeLimitSec > 0 {
		e.timer = time.AfterFunc(time.Duration(q.TimeLimitSec)*time.Second, func() {
			e.handleTimeout(epoch)
		})
	}

	e.emitLocked(Event{
		Type:     EventQuestion,
		State:    e.state,
		Session:  NewSessionView(e.session),
		Question: NewQuestionView(&q),
	})

	e.maybePrefetchLocked()
}

// maybePrefetchLocked tops the buffer up in the background. It must never
// delay the running countdown, so the supplier call happens off the lock.
func (e *Engine) maybePrefetchLocked() {
	if e.exhausted || e.prefetching || len(e.buffer) > e.cfg.PrefetchLowWater {
		return
	}
	e.prefetching = true

	go func() {
		batch, err := e.supplier.Batch(context.Background(), e.cfg.PrefetchBatch)

		e.mu.Lock()
		defer e.mu.Unlock()
		e.prefetching = false
		if e.closed {
			return
		}
		if err != nil {
			// Recoverable: the next Advance falls back to a synchronous
			// fetch and reports the failure to the caller.
			log.Printf("Prefetch failed for session %s: %v", e.session.ID, err)
			return
		}
		if len(batch) == 0 {
			e.exhausted = true
			return
		}
		e.buffer = append(e.buffer, batch...)
	}()
}

// SubmitAnswer resolves the current question with the learner's selection.
// The first selection wins: the countdown is cancelled before resolution,
// so a timeout can no longer fire for this question even if resolution
// fails and is retried.
func (e *Engine) SubmitAnswer(ctx context.Context, questionID, selected string, hintUsed bool) (*models.AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if e.state != constants.StateAwaitingAnswer {
		return nil, ErrNotAwaiting
	}
	if e.current == nil || e.current.ID != questionID {
		return nil, ErrWrongQuestion
	}

	var answer *models.Answer
	if e.pending != nil {
		// Retrying a failed submission for the same question.
		answer = e.pending
	} else {
		elapsed := time.Since(e.presentedAt).Milliseconds()
		limitMs := int64(e.current.TimeLimitSec) * 1000
		if limitMs > 0 && elapsed > limitMs {
			elapsed = limitMs
		}
		answer = &models.Answer{
			QuestionID:     questionID,
			SelectedAnswer: selected,
			ResponseTimeMs: elapsed,
			HintUsed:       hintUsed,
		}
	}

	e.stopTimerLocked()
	return e.resolveLocked(ctx, answer)
}

// handleTimeout is the countdown callback. Stale epochs and resolved
// questions are ignored; otherwise it synthesizes the timeout answer with
// the full limit as its response time.
func (e *Engine) handleTimeout(epoch int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.state != constants.StateAwaitingAnswer || epoch != e.epoch || e.pending != nil {
		return
	}

	answer := &models.Answer{
		QuestionID:     e.current.ID,
		ResponseTimeMs: int64(e.current.TimeLimitSec) * 1000,
		TimedOut:       true,
	}

	if _, err := e.resolveLocked(context.Background(), answer); err != nil {
		// Nobody is waiting on a timeout; report it on the event stream
		// and leave the pending answer retryable.
		e.emitLocked(Event{
			Type:    EventError,
			State:   e.state,
			Session: NewSessionView(e.session),
			Error:   err.Error(),
		})
	}
}

func (e *Engine) resolveLocked(ctx context.Context, answer *models.Answer) (*models.AnswerResult, error) {
	result, err := e.resolver.Resolve(ctx, e.session, e.current, answer)
	if err != nil {
		e.pending = answer
		return nil, err
	}
	e.pending = nil

	e.session.CurrentQuestionIndex++
	e.session.Score = result.CurrentGameScore
	e.session.CurrentStreak = result.CurrentStreak
	if result.Correct {
		e.session.CorrectAnswers++
		if e.session.CurrentStreak > e.session.BestStreak {
			e.session.BestStreak = e.session.CurrentStreak
		}
	}

	infinite := e.session.Mode == constants.ModeInfinite
	if infinite && !result.Correct && e.session.LivesRemaining.Valid {
		e.session.LivesRemaining.Int32--
	}
	if e.session.LivesRemaining.Valid {
		lives := int(e.session.LivesRemaining.Int32)
		result.LivesRemaining = &lives
	}

	result.HasNextQuestion = e.hasNextLocked()
	e.lastResult = result
	e.current = nil
	e.state = constants.StateShowingResult

	e.emitLocked(Event{
		Type:    EventResult,
		State:   e.state,
		Session: NewSessionView(e.session),
		Result:  result,
	})

	switch {
	case infinite && e.session.LivesRemaining.Valid && e.session.LivesRemaining.Int32 <= 0:
		e.completeLocked(constants.StateGameOver)
	case !result.HasNextQuestion:
		e.completeLocked(constants.StateCompleted)
	}

	return result, nil
}

func (e *Engine) hasNextLocked() bool {
	if e.session.IsFinite() {
		return e.session.CurrentQuestionIndex < e.session.TotalQuestions
	}
	if e.session.LivesRemaining.Valid && e.session.LivesRemaining.Int32 <= 0 {
		return false
	}
	return len(e.buffer) > 0 || !e.exhausted
}

// Advance acknowledges the shown result and moves to the next question,
// loading more when the buffer ran dry. A supply failure keeps the engine
// in Loading; calling Advance again retries.
func (e *Engine) Advance(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	switch e.state {
	case constants.StateShowingResult, constants.StateLoading:
	case constants.StateCompleted, constants.StateGameOver:
		return ErrSessionFinished
	default:
		return ErrNoResultToAck
	}

	if len(e.buffer) == 0 {
		if !e.exhausted {
			e.setStateLocked(constants.StateLoading)
			if err := e.fillLocked(ctx); err != nil {
				return err
			}
		}
		if len(e.buffer) == 0 {
			e.completeLocked(constants.StateCompleted)
			return nil
		}
	}

	e.presentNextLocked()
	return nil
}

// RetrySubmission re-resolves a submission that previously failed, for the
// same question. No-op error when nothing is pending.
func (e *Engine) RetrySubmission(ctx context.Context) (*models.AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if e.pending == nil || e.state != constants.StateAwaitingAnswer {
		return nil, ErrNotAwaiting
	}
	return e.resolveLocked(ctx, e.pending)
}

func (e *Engine) completeLocked(terminalState string) {
	e.stopTimerLocked()
	e.state = terminalState
	e.current = nil
	e.session.Status = constants.SessionStatusCompleted
	e.session.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}

	e.emitLocked(Event{
		Type:    EventFinished,
		State:   e.state,
		Session: NewSessionView(e.session),
		Result:  e.lastResult,
	})

	if e.cfg.OnTerminal != nil {
		// Callback runs outside the reducer so it may not re-enter.
		session := *e.session
		go e.cfg.OnTerminal(&session)
	}
}

// Abandon closes the session before its natural end, cancelling the timer
// and any observable activity first.
func (e *Engine) Abandon() *models.GameSession {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.session
	}
	if !e.session.IsFinished() {
		e.stopTimerLocked()
		e.state = constants.StateCompleted
		e.session.Status = constants.SessionStatusAbandoned
		e.session.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}

		e.emitLocked(Event{
			Type:    EventFinished,
			State:   e.state,
			Session: NewSessionView(e.session),
		})
		if e.cfg.OnTerminal != nil {
			session := *e.session
			go e.cfg.OnTerminal(&session)
		}
	}
	e.closeLocked()
	return e.session
}

// Close cancels the countdown and detaches observers. In-flight prefetches
// notice the flag and drop their batch instead of mutating a disposed
// engine.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *Engine) closeLocked() {
	if e.closed {
		return
	}
	e.closed = true
	e.stopTimerLocked()
	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) setStateLocked(state string) {
	if e.state == state {
		return
	}
	e.state = state
	e.emitLocked(Event{
		Type:    EventStateChanged,
		State:   state,
		Session: NewSessionView(e.session),
	})
}

// Subscribe attaches a read-only observer. The returned cancel func must be
// called when the observer goes away. Slow observers lose events rather
// than stalling the reducer.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	ch := make(chan Event, 16)
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	e.subscribers[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subscribers[id]; ok {
			delete(e.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (e *Engine) emitLocked(ev Event) {
	for _, ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// State reports the machine state.
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns a copy of the session totals.
func (e *Engine) Session() models.GameSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.session
}

// CurrentQuestion returns the question awaiting an answer, stripped of its
// correct answer, or nil.
func (e *Engine) CurrentQuestion() *QuestionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return NewQuestionView(e.current)
}

// LastResult returns the most recent shown result, or nil.
func (e *Engine) LastResult() *models.AnswerResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

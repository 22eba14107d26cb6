package game

import "trivia-service/internal/models"

type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventQuestion     EventType = "question_presented"
	EventResult       EventType = "answer_result"
	EventFinished     EventType = "session_finished"
	EventError        EventType = "session_error"
)

// Event is what session observers receive. Observers are read-only; nothing
// in an event can be used to mutate the session.
type Event struct {
	Type     EventType            `json:"type"`
	State    string               `json:"state"`
	Session  SessionView          `json:"session"`
	Question *QuestionView        `json:"question,omitempty"`
	Result   *models.AnswerResult `json:"result,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// SessionView is the observer-safe projection of a session.
type SessionView struct {
	ID                   string `json:"id"`
	Mode                 string `json:"mode"`
	Status               string `json:"status"`
	TotalQuestions       int    `json:"total_questions,omitempty"`
	CurrentQuestionIndex int    `json:"current_question_index"`
	Score                int    `json:"score"`
	CorrectAnswers       int    `json:"correct_answers"`
	CurrentStreak        int    `json:"current_streak"`
	BestStreak           int    `json:"best_streak"`
	LivesRemaining       *int   `json:"lives_remaining,omitempty"`
}

// QuestionView is a question with the correct answer stripped.
type QuestionView struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Archetype    string   `json:"archetype"`
	Options      []string `json:"options"`
	Difficulty   int      `json:"difficulty"`
	BasePoints   int      `json:"base_points"`
	TimeLimitSec int      `json:"time_limit_sec"`
	ImageURL     string   `json:"image_url,omitempty"`
}

func NewSessionView(s *models.GameSession) SessionView {
	view := SessionView{
		ID:                   s.ID,
		Mode:                 s.Mode,
		Status:               s.Status,
		TotalQuestions:       s.TotalQuestions,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		Score:                s.Score,
		CorrectAnswers:       s.CorrectAnswers,
		CurrentStreak:        s.CurrentStreak,
		BestStreak:           s.BestStreak,
	}
	if s.LivesRemaining.Valid {
		lives := int(s.LivesRemaining.Int32)
		view.LivesRemaining = &lives
	}
	return view
}

func NewQuestionView(q *models.Question) *QuestionView {
	if q == nil {
		return nil
	}
	return &QuestionView{
		ID:           q.ID,
		Text:         q.Text,
		Archetype:    q.Archetype,
		Options:      q.Options,
		Difficulty:   q.Difficulty,
		BasePoints:   q.BasePoints,
		TimeLimitSec: q.TimeLimitSec,
		ImageURL:     q.ImageURL,
	}
}

package models

import (
	"database/sql"
	"time"

	"trivia-service/internal/constants"
)

type GameSession struct {
	ID                   string
	UserID               string
	Mode                 string // "quick", "challenge", "daily", "infinite"
	Status               string // "in_progress", "completed", "abandoned"
	TotalQuestions       int    // 0 for infinite mode
	CurrentQuestionIndex int
	Score                int
	CorrectAnswers       int
	CurrentStreak        int
	BestStreak           int
	LivesRemaining       sql.NullInt32 // infinite mode only
	StartedAt            time.Time
	FinishedAt           sql.NullTime
}

func (s *GameSession) IsFinite() bool {
	return s.Mode != constants.ModeInfinite
}

func (s *GameSession) IsFinished() bool {
	return s.Status != constants.SessionStatusInProgress
}

type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Archetype     string   `json:"archetype"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Difficulty    int      `json:"difficulty"` // 1-5
	BasePoints    int      `json:"base_points"`
	TimeLimitSec  int      `json:"time_limit_sec"`
	ImageURL      string   `json:"image_url,omitempty"`
	CountryName   string   `json:"country_name,omitempty"`
}

// Answer is what the learner (or the timeout path) submits for one question.
// SelectedAnswer is empty when the countdown expired.
type Answer struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	TimedOut       bool   `json:"timed_out"`
	HintUsed       bool   `json:"hint_used"`
}

type AnswerResult struct {
	Correct          bool   `json:"correct"`
	CorrectAnswer    string `json:"correct_answer"`
	PointsEarned     int    `json:"points_earned"`
	CurrentGameScore int    `json:"current_game_score"`
	CurrentStreak    int    `json:"current_streak"`
	LivesRemaining   *int   `json:"lives_remaining,omitempty"`
	HasNextQuestion  bool   `json:"has_next_question"`
}

type Country struct {
	Name       string   `json:"name"`
	Capital    string   `json:"capital"`
	FlagURL    string   `json:"flag_url"`
	Currencies []string `json:"currencies"`
	Languages  []string `json:"languages"`
	Population int64    `json:"population"`
	Area       float64  `json:"area"`
	Region     string   `json:"region"`
	Subregion  string   `json:"subregion"`
}

// SessionSnapshot is the terminal summary emitted to the stats queue.
type SessionSnapshot struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Mode           string    `json:"mode"`
	Status         string    `json:"status"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	BestStreak     int       `json:"best_streak"`
	FinishedAt     time.Time `json:"finished_at"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

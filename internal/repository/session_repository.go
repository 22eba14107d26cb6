package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trivia-service/internal/constants"
	"trivia-service/internal/models"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *models.GameSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	if session.Status == "" {
		session.Status = constants.SessionStatusInProgress
	}

	query := `
		INSERT INTO game_sessions (id, user_id, mode, status, total_questions, current_question_index,
			score, correct_answers, current_streak, best_streak, lives_remaining, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Mode,
		session.Status,
		session.TotalQuestions,
		session.CurrentQuestionIndex,
		session.Score,
		session.CorrectAnswers,
		session.CurrentStreak,
		session.BestStreak,
		session.LivesRemaining,
		session.StartedAt,
	)
	return err
}

const sessionColumns = `id, user_id, mode, status, total_questions, current_question_index,
	score, correct_answers, current_streak, best_streak, lives_remaining, started_at, finished_at`

func scanSession(row *sql.Row) (*models.GameSession, error) {
	session := &models.GameSession{}
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Mode,
		&session.Status,
		&session.TotalQuestions,
		&session.CurrentQuestionIndex,
		&session.Score,
		&session.CorrectAnswers,
		&session.CurrentStreak,
		&session.BestStreak,
		&session.LivesRemaining,
		&session.StartedAt,
		&session.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_sessions WHERE id = $1`, sessionColumns)
	return scanSession(r.db.QueryRowContext(ctx, query, sessionID))
}

// GetActiveSession returns the learner's single in-progress session, or
// ErrSessionNotFound when there is none.
func (r *SessionRepository) GetActiveSession(ctx context.Context, userID string) (*models.GameSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_sessions WHERE user_id = $1 AND status = $2`, sessionColumns)
	return scanSession(r.db.QueryRowContext(ctx, query, userID, constants.SessionStatusInProgress))
}

func (r *SessionRepository) UpdateSession(ctx context.Context, session *models.GameSession) error {
	query := `
		UPDATE game_sessions
		SET status = $1, current_question_index = $2, score = $3, correct_answers = $4,
			current_streak = $5, best_streak = $6, lives_remaining = $7, finished_at = $8
		WHERE id = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		session.Status,
		session.CurrentQuestionIndex,
		session.Score,
		session.CorrectAnswers,
		session.CurrentStreak,
		session.BestStreak,
		session.LivesRemaining,
		session.FinishedAt,
		session.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) FinishSession(ctx context.Context, sessionID, status string) error {
	query := `
		UPDATE game_sessions SET status = $1, finished_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), sessionID, constants.SessionStatusInProgress)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) GetSessionsByUser(ctx context.Context, userID string, limit int) ([]*models.GameSession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM game_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, sessionColumns)
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.GameSession
	for rows.Next() {
		session := &models.GameSession{}
		err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.Mode,
			&session.Status,
			&session.TotalQuestions,
			&session.CurrentQuestionIndex,
			&session.Score,
			&session.CorrectAnswers,
			&session.CurrentStreak,
			&session.BestStreak,
			&session.LivesRemaining,
			&session.StartedAt,
			&session.FinishedAt,
		)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

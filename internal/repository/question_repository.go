package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"trivia-service/internal/models"
)

var ErrQuestionNotFound = errors.New("question not found")

type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// CreateSequence persists the fixed ordered question set for one game in a
// single transaction.
func (r *QuestionRepository) CreateSequence(ctx context.Context, gameID string, questions []models.Question) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO game_questions (game_id, order_index, id, text, archetype, options,
			correct_answer, difficulty, base_points, time_limit_sec, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for i, q := range questions {
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("failed to marshal options: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			gameID, i, q.ID, q.Text, q.Archetype, string(optionsJSON),
			q.CorrectAnswer, q.Difficulty, q.BasePoints, q.TimeLimitSec, q.ImageURL,
		)
		if err != nil {
			return fmt.Errorf("failed to insert question %d: %w", i, err)
		}
	}

	return tx.Commit()
}

const questionColumns = `order_index, id, text, archetype, options, correct_answer,
	difficulty, base_points, time_limit_sec, COALESCE(image_url, ''), answered`

func scanQuestion(scan func(dest ...any) error) (models.Question, int, bool, error) {
	var (
		q           models.Question
		orderIndex  int
		optionsJSON string
		answered    bool
	)
	err := scan(
		&orderIndex,
		&q.ID,
		&q.Text,
		&q.Archetype,
		&optionsJSON,
		&q.CorrectAnswer,
		&q.Difficulty,
		&q.BasePoints,
		&q.TimeLimitSec,
		&q.ImageURL,
		&answered,
	)
	if err != nil {
		return models.Question{}, 0, false, err
	}
	if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
		return models.Question{}, 0, false, fmt.Errorf("failed to parse options: %w", err)
	}
	return q, orderIndex, answered, nil
}

// GetByOrderIndex returns the question at one position of a game's sequence.
func (r *QuestionRepository) GetByOrderIndex(ctx context.Context, gameID string, orderIndex int) (*models.Question, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM game_questions WHERE game_id = $1 AND order_index = $2
	`, questionColumns)
	row := r.db.QueryRowContext(ctx, query, gameID, orderIndex)
	q, _, _, err := scanQuestion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetByID returns a question of one game plus its position and whether it
// has already been answered.
func (r *QuestionRepository) GetByID(ctx context.Context, gameID, questionID string) (*models.Question, int, bool, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM game_questions WHERE game_id = $1 AND id = $2
	`, questionColumns)
	row := r.db.QueryRowContext(ctx, query, gameID, questionID)
	q, orderIndex, answered, err := scanQuestion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, ErrQuestionNotFound
	}
	if err != nil {
		return nil, 0, false, err
	}
	return &q, orderIndex, answered, nil
}

// GetRange returns up to count questions starting at startIndex, in order.
func (r *QuestionRepository) GetRange(ctx context.Context, gameID string, startIndex, count int) ([]models.Question, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM game_questions
		WHERE game_id = $1 AND order_index >= $2
		ORDER BY order_index
		LIMIT $3
	`, questionColumns)
	rows, err := r.db.QueryContext(ctx, query, gameID, startIndex, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		q, _, _, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// MarkAnswered flags a question as consumed. Returns ErrQuestionNotFound if
// it was already answered, which is what keeps a retried submission from
// counting twice.
func (r *QuestionRepository) MarkAnswered(ctx context.Context, gameID, questionID string) error {
	query := `
		UPDATE game_questions SET answered = TRUE
		WHERE game_id = $1 AND id = $2 AND answered = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, gameID, questionID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

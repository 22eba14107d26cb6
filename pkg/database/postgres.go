package database

import (
	"context"
	"database/sql"
	"fmt"

	"trivia-service/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	db     *sql.DB
	config *config.DBConfig
}

func NewPostgresClient(cfg *config.DBConfig) (*PostgresClient, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{
		db:     db,
		config: cfg,
	}, nil
}

func (c *PostgresClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.db
}

func (c *PostgresClient) InitSchema(ctx context.Context) error {
	createTables := `
		CREATE TABLE IF NOT EXISTS game_sessions (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			mode VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
			total_questions INTEGER NOT NULL DEFAULT 0,
			current_question_index INTEGER NOT NULL DEFAULT 0,
			score INTEGER NOT NULL DEFAULT 0,
			correct_answers INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			best_streak INTEGER NOT NULL DEFAULT 0,
			lives_remaining INTEGER,
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_game_sessions_user_id ON game_sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_game_sessions_status ON game_sessions(status);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_game_sessions_one_active
			ON game_sessions(user_id) WHERE status = 'in_progress';

		CREATE TABLE IF NOT EXISTS game_questions (
			game_id VARCHAR(36) NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
			order_index INTEGER NOT NULL,
			id VARCHAR(128) NOT NULL,
			text TEXT NOT NULL,
			archetype VARCHAR(32) NOT NULL,
			options JSONB NOT NULL,
			correct_answer TEXT NOT NULL,
			difficulty INTEGER NOT NULL DEFAULT 1,
			base_points INTEGER NOT NULL DEFAULT 100,
			time_limit_sec INTEGER NOT NULL DEFAULT 30,
			image_url TEXT,
			answered BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (game_id, order_index)
		);
		CREATE INDEX IF NOT EXISTS idx_game_questions_game_id ON game_questions(game_id);
	`

	if _, err := c.db.ExecContext(ctx, createTables); err != nil {
		return fmt.Errorf("failed to create trivia tables: %w", err)
	}

	return nil
}

// Package stats emits terminal session snapshots to the leaderboard and
// statistics consumers. Emission is best-effort: a failure here never fails
// the session flow.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trivia-service/config"
	"trivia-service/internal/models"
	"trivia-service/pkg/cache"

	amqp "github.com/rabbitmq/amqp091-go"
)

const leaderboardKey = "trivia:leaderboard"

// Publisher is what the game layer depends on.
type Publisher interface {
	PublishSessionFinished(ctx context.Context, snapshot *models.SessionSnapshot)
}

type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	redis   *cache.RedisClient
}

func NewRabbitMQPublisher(cfg *config.RabbitMQConfig, redisClient *cache.RedisClient) (*RabbitMQPublisher, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.User, cfg.Password, cfg.Host, cfg.Port)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: channel,
		queue:   cfg.Queue,
		redis:   redisClient,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *RabbitMQPublisher) PublishSessionFinished(ctx context.Context, snapshot *models.SessionSnapshot) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("Failed to marshal session snapshot: %v", err)
		return
	}

	err = p.channel.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		log.Printf("Failed to publish session snapshot for %s: %v", snapshot.SessionID, err)
	}

	p.updateLeaderboard(ctx, snapshot)
}

func (p *RabbitMQPublisher) updateLeaderboard(ctx context.Context, snapshot *models.SessionSnapshot) {
	if p.redis == nil || snapshot.Score <= 0 {
		return
	}
	if err := p.redis.ZIncrBy(ctx, leaderboardKey, float64(snapshot.Score), snapshot.UserID); err != nil {
		log.Printf("Failed to update leaderboard for user %s: %v", snapshot.UserID, err)
	}
}

// TopScores reads the all-time leaderboard.
func TopScores(ctx context.Context, redisClient *cache.RedisClient, limit int) ([]models.LeaderboardEntry, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("leaderboard storage is not available")
	}
	zs, err := redisClient.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		userID, _ := z.Member.(string)
		entries = append(entries, models.LeaderboardEntry{
			Rank:   i + 1,
			UserID: userID,
			Score:  int(z.Score),
		})
	}
	return entries, nil
}

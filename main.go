package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-service/config"
	"trivia-service/internal/countries"
	"trivia-service/internal/game"
	"trivia-service/internal/handlers"
	"trivia-service/internal/live"
	"trivia-service/internal/middleware"
	"trivia-service/internal/repository"
	"trivia-service/internal/stats"
	"trivia-service/pkg/cache"
	"trivia-service/pkg/database"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded")

	pgClient, err := database.NewPostgresClient(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")
	defer pgClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pgClient.InitSchema(ctx); err != nil {
		log.Printf("Warning: Failed to initialize PostgreSQL schema: %v", err)
	} else {
		log.Println("PostgreSQL schema initialized")
	}
	cancel()

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		redisClient = nil
	} else {
		log.Println("Connected to Redis")
		defer redisClient.Close()
	}

	var publisher stats.Publisher
	rabbitPublisher, err := stats.NewRabbitMQPublisher(&cfg.RabbitMQ, redisClient)
	if err != nil {
		log.Printf("Warning: Failed to connect to RabbitMQ: %v", err)
	} else {
		log.Println("Connected to RabbitMQ")
		defer rabbitPublisher.Close()
		publisher = rabbitPublisher
	}

	store := countries.NewStore(redisClient)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.Load(loadCtx, cfg.Game.CountriesFile); err != nil {
		loadCancel()
		log.Fatalf("Failed to load countries data: %v", err)
	}
	loadCancel()
	log.Printf("Loaded %d countries", store.Count())

	sessionRepo := repository.NewSessionRepository(pgClient.GetDB())
	questionRepo := repository.NewQuestionRepository(pgClient.GetDB())

	guard := game.NewGuard(sessionRepo, redisClient)
	svc := game.NewService(sessionRepo, questionRepo, store, guard, publisher)
	manager := game.NewManager(svc, store, redisClient, publisher, &cfg.Game)

	hub := live.NewHub(manager)
	go hub.Run()
	log.Println("Live session hub started")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "trivia-service",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if pgClient == nil || store.Count() == 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	gameHandler := handlers.NewGameHandler(svc, manager, redisClient)
	wsHandler := handlers.NewWSHandler(hub, manager, cfg.Auth.JWTSecret)

	api := router.Group("/api")
	api.Use(middleware.Auth(cfg.Auth.JWTSecret))
	{
		api.POST("/games", gameHandler.StartGame)
		api.GET("/games/active", gameHandler.ActiveGame)
		api.GET("/games/:id/next", gameHandler.NextQuestion)
		api.POST("/games/:id/answers", gameHandler.SubmitAnswer)
		api.POST("/games/:id/advance", gameHandler.Advance)
		api.POST("/games/:id/finish", gameHandler.FinishGame)
		api.DELETE("/games/:id", gameHandler.AbandonGame)
		api.GET("/leaderboard", gameHandler.Leaderboard)
	}

	router.GET("/ws/sessions/:id", wsHandler.HandleSession)

	httpAddr := ":" + cfg.Server.HTTPPort
	log.Printf("Trivia Service HTTP server starting on port %s...", cfg.Server.HTTPPort)

	go func() {
		if err := router.Run(httpAddr); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Trivia service stopped")
}

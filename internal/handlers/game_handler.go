package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"trivia-service/internal/constants"
	"trivia-service/internal/game"
	"trivia-service/internal/generator"
	"trivia-service/internal/middleware"
	"trivia-service/internal/models"
	"trivia-service/internal/repository"
	"trivia-service/internal/stats"
	"trivia-service/pkg/cache"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	svc     *game.Service
	manager *game.Manager
	redis   *cache.RedisClient
}

func NewGameHandler(svc *game.Service, manager *game.Manager, redisClient *cache.RedisClient) *GameHandler {
	return &GameHandler{svc: svc, manager: manager, redis: redisClient}
}

type sessionResponse struct {
	game.SessionView
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func toSessionResponse(s *models.GameSession) sessionResponse {
	resp := sessionResponse{
		SessionView: game.NewSessionView(s),
		StartedAt:   s.StartedAt,
	}
	if s.FinishedAt.Valid {
		t := s.FinishedAt.Time
		resp.FinishedAt = &t
	}
	return resp
}

// StartGame creates a session. A 409 carries the still-active session and
// the two choices the learner has; it is never a bare failure.
func (h *GameHandler) StartGame(c *gin.Context) {
	userID := middleware.UserID(c)

	var req game.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Mode == constants.ModeInfinite {
		h.startInfinite(c, userID, req)
		return
	}

	session, err := h.svc.Start(c.Request.Context(), userID, req)
	if err != nil {
		var active *game.ActiveSessionError
		switch {
		case errors.As(err, &active):
			c.JSON(http.StatusConflict, gin.H{
				"error":          "An active session already exists",
				"active_session": toSessionResponse(active.Session),
				"choices":        []string{"continue", "abandon"},
			})
		case errors.Is(err, game.ErrUnknownMode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown game mode"})
		default:
			log.Printf("Failed to start game for user %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start game"})
		}
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(session))
}

func (h *GameHandler) startInfinite(c *gin.Context, userID string, req game.StartRequest) {
	opts := generator.Options{Region: req.Region, MaxDifficulty: req.Difficulty}
	engine, err := h.manager.StartInfinite(c.Request.Context(), userID, opts)
	if err != nil {
		// Supply failure is recoverable; the session exists and stays in
		// Loading, so tell the client it may retry.
		log.Printf("Infinite start is still loading for user %s: %v", userID, err)
		session := engine.Session()
		c.JSON(http.StatusAccepted, gin.H{
			"session": toSessionResponse(&session),
			"state":   engine.State(),
			"error":   "Question supply failed, retry to continue",
		})
		return
	}

	session := engine.Session()
	c.JSON(http.StatusCreated, gin.H{
		"session":  toSessionResponse(&session),
		"state":    engine.State(),
		"question": engine.CurrentQuestion(),
	})
}

// ActiveGame returns the learner's in-progress server-backed session.
func (h *GameHandler) ActiveGame(c *gin.Context) {
	userID := middleware.UserID(c)

	session, err := h.svc.Active(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Failed to get active game for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get active game"})
		return
	}
	if session == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// NextQuestion serves the question at the session cursor, with the correct
// answer withheld.
func (h *GameHandler) NextQuestion(c *gin.Context) {
	userID := middleware.UserID(c)
	gameID := c.Param("id")

	if engine, ok := h.manager.Get(gameID); ok {
		h.liveQuestion(c, userID, engine)
		return
	}

	q, index, err := h.svc.NextQuestion(c.Request.Context(), userID, gameID)
	if err != nil {
		h.writeGameError(c, userID, gameID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question":       game.NewQuestionView(q),
		"question_index": index,
	})
}

func (h *GameHandler) liveQuestion(c *gin.Context, userID string, engine *game.Engine) {
	session := engine.Session()
	if session.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your session"})
		return
	}

	if engine.State() == constants.StateLoading {
		if err := engine.Start(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Question supply failed, retry to continue"})
			return
		}
	}

	q := engine.CurrentQuestion()
	if q == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No question awaiting an answer", "state": engine.State()})
		return
	}
	session = engine.Session()
	c.JSON(http.StatusOK, gin.H{
		"question":       q,
		"question_index": session.CurrentQuestionIndex,
	})
}

// SubmitAnswer applies one answer to either a live engine session or a
// plain server-backed session.
func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	userID := middleware.UserID(c)
	gameID := c.Param("id")

	var answer models.Answer
	if err := c.ShouldBindJSON(&answer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if engine, ok := h.manager.Get(gameID); ok {
		session := engine.Session()
		if session.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not your session"})
			return
		}
		result, err := engine.SubmitAnswer(c.Request.Context(), answer.QuestionID, answer.SelectedAnswer, answer.HintUsed)
		if err != nil {
			h.writeGameError(c, userID, gameID, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := h.svc.SubmitAnswer(c.Request.Context(), userID, gameID, &answer)
	if err != nil {
		h.writeGameError(c, userID, gameID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Advance acknowledges a shown result on a live session and moves on.
func (h *GameHandler) Advance(c *gin.Context) {
	userID := middleware.UserID(c)
	gameID := c.Param("id")

	engine, ok := h.manager.Get(gameID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No live session"})
		return
	}
	session := engine.Session()
	if session.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your session"})
		return
	}

	if err := engine.Advance(c.Request.Context()); err != nil {
		h.writeGameError(c, userID, gameID, err)
		return
	}

	session = engine.Session()
	c.JSON(http.StatusOK, gin.H{
		"state":    engine.State(),
		"session":  game.NewSessionView(&session),
		"question": engine.CurrentQuestion(),
	})
}

// FinishGame closes a server-backed session as completed.
func (h *GameHandler) FinishGame(c *gin.Context) {
	userID := middleware.UserID(c)
	gameID := c.Param("id")

	session, err := h.svc.Finish(c.Request.Context(), userID, gameID)
	if err != nil {
		h.writeGameError(c, userID, gameID, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// AbandonGame marks a session abandoned, live or persisted.
func (h *GameHandler) AbandonGame(c *gin.Context) {
	userID := middleware.UserID(c)
	gameID := c.Param("id")

	if engine, ok := h.manager.Get(gameID); ok {
		session := engine.Session()
		if session.UserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not your session"})
			return
		}
		if abandoned, ok := h.manager.Abandon(gameID); ok {
			if abandoned.Mode != constants.ModeInfinite {
				// Persist the abandonment for server-backed live play.
				if err := h.svc.Abandon(c.Request.Context(), userID, gameID); err != nil &&
					!errors.Is(err, game.ErrSessionFinished) {
					log.Printf("Failed to persist abandon for game %s: %v", gameID, err)
				}
			}
			c.JSON(http.StatusOK, toSessionResponse(abandoned))
			return
		}
	}

	if err := h.svc.Abandon(c.Request.Context(), userID, gameID); err != nil {
		h.writeGameError(c, userID, gameID, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leaderboard serves the all-time top scores.
func (h *GameHandler) Leaderboard(c *gin.Context) {
	limit := 10
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	entries, err := stats.TopScores(c.Request.Context(), h.redis, limit)
	if err != nil {
		log.Printf("Failed to read leaderboard: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Leaderboard unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *GameHandler) writeGameError(c *gin.Context, userID, gameID string, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, repository.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
	case errors.Is(err, game.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your session"})
	case errors.Is(err, game.ErrSessionFinished):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is no longer in progress"})
	case errors.Is(err, game.ErrAlreadyAnswered):
		c.JSON(http.StatusConflict, gin.H{"error": "Question already answered"})
	case errors.Is(err, game.ErrWrongQuestion):
		c.JSON(http.StatusConflict, gin.H{"error": "Answer does not match the current question"})
	case errors.Is(err, game.ErrNotAwaiting):
		c.JSON(http.StatusConflict, gin.H{"error": "No question awaiting an answer"})
	case errors.Is(err, game.ErrNoResultToAck):
		c.JSON(http.StatusConflict, gin.H{"error": "No result to acknowledge"})
	case errors.Is(err, game.ErrSupply):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Question supply failed, retry to continue"})
	case errors.Is(err, game.ErrSubmission):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Answer submission failed, retry the same question"})
	default:
		log.Printf("Game request failed: user=%s, game=%s: %v", userID, gameID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Request failed"})
	}
}

package handlers

import (
	"log"
	"net/http"
	"strings"

	"trivia-service/internal/game"
	"trivia-service/internal/live"
	"trivia-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict origins once the web client's domain is fixed
	},
}

type WSHandler struct {
	hub       *live.Hub
	manager   *game.Manager
	jwtSecret string
}

func NewWSHandler(hub *live.Hub, manager *game.Manager, jwtSecret string) *WSHandler {
	return &WSHandler{hub: hub, manager: manager, jwtSecret: jwtSecret}
}

// HandleSession upgrades to a websocket on a session. The session owner
// plays through it; anyone else becomes a read-only observer. Browsers
// cannot set headers on websocket dials, so the token may come as a query
// parameter.
func (h *WSHandler) HandleSession(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return
	}

	claims, err := middleware.ValidateToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	userID := claims.UserID

	sessionID := c.Param("id")
	engine, ok := h.manager.Get(sessionID)
	if !ok {
		// Not live yet: the owner of a persisted server-backed session
		// brings it up for timed play on first connect.
		engine, err = h.manager.StartServerPlay(c.Request.Context(), userID, sessionID)
		if err != nil {
			log.Printf("Failed to start live play for session %s: %v", sessionID, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or not playable"})
			return
		}
	}

	isPlayer := engine.Session().UserID == userID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := live.NewClient(h.hub, conn, userID, sessionID, isPlayer)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

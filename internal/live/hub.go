// Package live streams session engine events to websocket clients. The
// player drives the engine through it; observers get the same events
// read-only.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"trivia-service/internal/game"
)

type ClientMessage struct {
	Client  *Client
	Message Message
}

type Hub struct {
	clients       map[string]map[*Client]bool // session id -> clients
	Register      chan *Client
	Unregister    chan *Client
	HandleMessage chan *ClientMessage

	manager *game.Manager

	mu sync.RWMutex
}

func NewHub(manager *game.Manager) *Hub {
	return &Hub{
		clients:       make(map[string]map[*Client]bool),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		HandleMessage: make(chan *ClientMessage),
		manager:       manager,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case clientMsg := <-h.HandleMessage:
			h.handleClientMessage(clientMsg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	engine, ok := h.manager.Get(client.SessionID)
	if !ok {
		client.SendError("Session is not live")
		return
	}

	h.mu.Lock()
	if h.clients[client.SessionID] == nil {
		h.clients[client.SessionID] = make(map[*Client]bool)
	}
	h.clients[client.SessionID][client] = true
	h.mu.Unlock()

	// Pipe engine events to this client until it disconnects or the
	// engine closes. Subscribe before the snapshot so nothing is missed.
	events, cancel := engine.Subscribe()
	client.cancelSub = cancel
	go func() {
		for ev := range events {
			client.SendMessage(MessageTypeEvent, ev)
		}
	}()

	session := engine.Session()
	client.SendMessage(MessageTypeConnected, ConnectedPayload{
		SessionID: client.SessionID,
		IsPlayer:  client.IsPlayer,
		State:     engine.State(),
		Session:   game.NewSessionView(&session),
		Question:  engine.CurrentQuestion(),
	})

	log.Printf("Client registered: user=%s, session=%s, player=%v",
		client.UserID, client.SessionID, client.IsPlayer)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.SessionID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			if client.cancelSub != nil {
				client.cancelSub()
			}
			client.closeSend()
			if len(clients) == 0 {
				delete(h.clients, client.SessionID)
			}
			log.Printf("Client unregistered: user=%s, session=%s", client.UserID, client.SessionID)
		}
	}
}

func (h *Hub) handleClientMessage(clientMsg *ClientMessage) {
	client := clientMsg.Client
	msg := clientMsg.Message

	switch msg.Type {
	case MessageTypeAnswer:
		if !client.IsPlayer {
			client.SendError("Observers cannot answer")
			return
		}
		h.handleAnswer(client, msg.Payload)

	case MessageTypeAcknowledge:
		if !client.IsPlayer {
			client.SendError("Observers cannot advance the session")
			return
		}
		h.handleAcknowledge(client)

	case MessageTypeRetry:
		if !client.IsPlayer {
			client.SendError("Observers cannot retry a submission")
			return
		}
		h.handleRetry(client)

	case MessageTypePing:
		client.SendMessage(MessageTypePong, nil)

	default:
		client.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Hub) handleAnswer(client *Client, payload any) {
	engine, ok := h.manager.Get(client.SessionID)
	if !ok {
		client.SendError("Session is not live")
		return
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		client.SendError("Invalid answer format")
		return
	}
	var answer AnswerPayload
	if err := json.Unmarshal(payloadBytes, &answer); err != nil {
		client.SendError("Invalid answer format")
		return
	}

	result, err := engine.SubmitAnswer(context.Background(), answer.QuestionID, answer.SelectedAnswer, answer.HintUsed)
	if err != nil {
		client.SendError(submissionErrorMessage(err))
		return
	}
	client.SendMessage(MessageTypeResult, result)
}

func (h *Hub) handleAcknowledge(client *Client) {
	engine, ok := h.manager.Get(client.SessionID)
	if !ok {
		client.SendError("Session is not live")
		return
	}
	if err := engine.Advance(context.Background()); err != nil {
		client.SendError(submissionErrorMessage(err))
	}
}

func (h *Hub) handleRetry(client *Client) {
	engine, ok := h.manager.Get(client.SessionID)
	if !ok {
		client.SendError("Session is not live")
		return
	}
	result, err := engine.RetrySubmission(context.Background())
	if err != nil {
		client.SendError(submissionErrorMessage(err))
		return
	}
	client.SendMessage(MessageTypeResult, result)
}

func submissionErrorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrSupply):
		return "Question supply failed, retry to continue"
	case errors.Is(err, game.ErrSubmission):
		return "Answer submission failed, retry the same question"
	case errors.Is(err, game.ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, game.ErrSessionFinished):
		return "Session is no longer in progress"
	case errors.Is(err, game.ErrNotAwaiting):
		return "No question awaiting an answer"
	case errors.Is(err, game.ErrWrongQuestion):
		return "Answer does not match the current question"
	case errors.Is(err, game.ErrAlreadyAnswered):
		return "Question already answered"
	default:
		return "Request failed"
	}
}

package live

import "trivia-service/internal/game"

type MessageType string

const (
	// Client -> Server (players only; observers just listen)
	MessageTypeAnswer      MessageType = "answer"
	MessageTypeAcknowledge MessageType = "acknowledge"
	MessageTypeRetry       MessageType = "retry_submission"
	MessageTypePing        MessageType = "ping"

	// Server -> Client
	MessageTypeConnected MessageType = "connected"
	MessageTypeEvent     MessageType = "event"
	MessageTypeResult    MessageType = "answer_result"
	MessageTypeError     MessageType = "error"
	MessageTypePong      MessageType = "pong"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

type AnswerPayload struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
	HintUsed       bool   `json:"hint_used,omitempty"`
}

type ConnectedPayload struct {
	SessionID string             `json:"session_id"`
	IsPlayer  bool               `json:"is_player"`
	State     string             `json:"state"`
	Session   game.SessionView   `json:"session"`
	Question  *game.QuestionView `json:"question,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

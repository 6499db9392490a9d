package model

import "time"

const (
	EventLikeReceived        = "like_received"
	EventConversationCreated = "conversation_created"
	EventMessageReceived     = "message_received"
)

// Envelope is the wire form of every event pushed to a user channel.
type Envelope struct {
	ID      string    `json:"id"`
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

type LikeReceivedPayload struct {
	Message string `json:"message"`
}

type ConversationCreatedPayload struct {
	ConversationID string `json:"conversation_id"`
}

type MessageReceivedPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      int64  `json:"message_id"`
}

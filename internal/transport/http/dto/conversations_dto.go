package dto

import "time"

type ConversationResponse struct {
	ID           string    `json:"id"`
	Participants []int64   `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

type ConversationsResponse struct {
	Items []ConversationResponse `json:"items"`
}

type SendMessageRequest struct {
	SenderID int64  `json:"sender_id"`
	Content  string `json:"content"`
}

type MessageResponse struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

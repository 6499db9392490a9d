package model

import "time"

type Like struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	IsMatch    bool      `json:"is_match"`
	CreatedAt  time.Time `json:"created_at"`
}

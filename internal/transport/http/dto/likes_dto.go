package dto

import "time"

type LikeRequest struct {
	SenderID int64 `json:"sender_id"`
}

type LikeResponse struct {
	LikeID         int64   `json:"like_id"`
	Matched        bool    `json:"matched"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

type IncomingLikeResponse struct {
	LikeID    int64     `json:"like_id"`
	SenderID  int64     `json:"sender_id"`
	IsMatch   bool      `json:"is_match"`
	CreatedAt time.Time `json:"created_at"`
}

type IncomingLikesResponse struct {
	Items []IncomingLikeResponse `json:"items"`
}

type MatchItemResponse struct {
	UserID          int64     `json:"user_id"`
	Name            string    `json:"name"`
	ProfileImageURL string    `json:"profile_image_url"`
	MatchedAt       time.Time `json:"matched_at"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}

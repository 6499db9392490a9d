package model

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID           uuid.UUID `json:"id"`
	Participants [2]int64  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c Conversation) Pair() Pair {
	return NewPair(c.Participants[0], c.Participants[1])
}

func (c Conversation) HasParticipant(userID int64) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

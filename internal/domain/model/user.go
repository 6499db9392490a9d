package model

import (
	"encoding/json"
	"time"
)

type User struct {
	ID              int64           `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	Bio             string          `json:"bio"`
	Gender          string          `json:"gender"`
	Location        string          `json:"location"`
	Birthdate       *time.Time      `json:"birthdate,omitempty"`
	ProfileImageURL string          `json:"profile_image_url"`
	Preferences     json.RawMessage `json:"preferences,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

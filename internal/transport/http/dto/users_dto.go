package dto

import (
	"encoding/json"
	"time"
)

type CreateUserRequest struct {
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	Bio             string          `json:"bio"`
	Gender          string          `json:"gender"`
	Location        string          `json:"location"`
	Birthdate       string          `json:"birthdate"`
	ProfileImageURL string          `json:"profile_image_url"`
	Preferences     json.RawMessage `json:"preferences"`
}

type UpdateUserRequest struct {
	Name            *string         `json:"name"`
	Bio             *string         `json:"bio"`
	ProfileImageURL *string         `json:"profile_image_url"`
	Preferences     json.RawMessage `json:"preferences"`
}

type UserResponse struct {
	ID              int64           `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	Bio             string          `json:"bio"`
	Gender          string          `json:"gender"`
	Location        string          `json:"location"`
	Birthdate       *string         `json:"birthdate"`
	ProfileImageURL string          `json:"profile_image_url"`
	Preferences     json.RawMessage `json:"preferences,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Package users keeps user profiles: registration, lookup and partial updates.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchapp/internal/domain/apperr"
	"github.com/ivankudzin/matchapp/internal/domain/model"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
)

const (
	maxNameLength = 100
	maxBioLength  = 1000
)

type UserStore interface {
	Create(ctx context.Context, params pgrepo.CreateUserParams) (model.User, error)
	GetByID(ctx context.Context, tx pgx.Tx, userID int64) (model.User, error)
	Update(ctx context.Context, userID int64, params pgrepo.UpdateUserParams) (model.User, error)
}

type Service struct {
	store UserStore
	now   func() time.Time
}

type CreateInput struct {
	Email           string
	Name            string
	Bio             string
	Gender          string
	Location        string
	Birthdate       *time.Time
	ProfileImageURL string
	Preferences     json.RawMessage
}

// UpdateInput fields left nil are not changed.
type UpdateInput struct {
	Name            *string
	Bio             *string
	ProfileImageURL *string
	Preferences     json.RawMessage
}

func NewService(store UserStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.User, error) {
	if s.store == nil {
		return model.User{}, fmt.Errorf("user store is nil")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return model.User{}, fmt.Errorf("%w: invalid email", apperr.ErrValidation)
	}
	name := strings.TrimSpace(in.Name)
	if err := checkLength("name", name, maxNameLength); err != nil {
		return model.User{}, err
	}
	bio := strings.TrimSpace(in.Bio)
	if err := checkLength("bio", bio, maxBioLength); err != nil {
		return model.User{}, err
	}
	if in.Birthdate != nil && in.Birthdate.After(s.now()) {
		return model.User{}, fmt.Errorf("%w: birthdate is in the future", apperr.ErrValidation)
	}
	if err := checkPreferences(in.Preferences); err != nil {
		return model.User{}, err
	}

	user, err := s.store.Create(ctx, pgrepo.CreateUserParams{
		Email:           email,
		Name:            name,
		Bio:             bio,
		Gender:          strings.TrimSpace(in.Gender),
		Location:        strings.TrimSpace(in.Location),
		Birthdate:       in.Birthdate,
		ProfileImageURL: strings.TrimSpace(in.ProfileImageURL),
		Preferences:     in.Preferences,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrEmailTaken) {
			return model.User{}, fmt.Errorf("%w: email already registered", apperr.ErrValidation)
		}
		return model.User{}, apperr.Dependency("create user", err)
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, userID int64) (model.User, error) {
	if userID <= 0 {
		return model.User{}, fmt.Errorf("%w: invalid user id", apperr.ErrValidation)
	}

	user, err := s.store.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return model.User{}, fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
		}
		return model.User{}, apperr.Dependency("get user", err)
	}
	return user, nil
}

func (s *Service) Update(ctx context.Context, userID int64, in UpdateInput) (model.User, error) {
	if userID <= 0 {
		return model.User{}, fmt.Errorf("%w: invalid user id", apperr.ErrValidation)
	}

	params := pgrepo.UpdateUserParams{Preferences: in.Preferences}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := checkLength("name", name, maxNameLength); err != nil {
			return model.User{}, err
		}
		params.Name = &name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if err := checkLength("bio", bio, maxBioLength); err != nil {
			return model.User{}, err
		}
		params.Bio = &bio
	}
	if in.ProfileImageURL != nil {
		url := strings.TrimSpace(*in.ProfileImageURL)
		params.ProfileImageURL = &url
	}
	if err := checkPreferences(in.Preferences); err != nil {
		return model.User{}, err
	}

	user, err := s.store.Update(ctx, userID, params)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return model.User{}, fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
		}
		return model.User{}, apperr.Dependency("update user", err)
	}
	return user, nil
}

func checkLength(field, value string, limit int) error {
	if len([]rune(value)) > limit {
		return fmt.Errorf("%w: %s exceeds %d characters", apperr.ErrValidation, field, limit)
	}
	return nil
}

func checkPreferences(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: preferences must be a JSON object", apperr.ErrValidation)
	}
	return nil
}

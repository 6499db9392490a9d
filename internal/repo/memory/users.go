package memory

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchapp/internal/domain/model"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
)

type UserStore struct {
	s *Store
}

func (u *UserStore) Create(_ context.Context, params pgrepo.CreateUserParams) (model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(params.Email))
	for _, existing := range s.users {
		if existing.Email == email {
			return model.User{}, pgrepo.ErrEmailTaken
		}
	}

	s.nextUserID++
	now := s.now()
	user := model.User{
		ID:              s.nextUserID,
		Email:           email,
		Name:            params.Name,
		Bio:             params.Bio,
		Gender:          params.Gender,
		Location:        params.Location,
		Birthdate:       params.Birthdate,
		ProfileImageURL: params.ProfileImageURL,
		Preferences:     params.Preferences,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.users[user.ID] = user
	return user, nil
}

func (u *UserStore) GetByID(_ context.Context, _ pgx.Tx, userID int64) (model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UserLookupErr != nil {
		return model.User{}, s.UserLookupErr
	}
	user, ok := s.users[userID]
	if !ok {
		return model.User{}, pgrepo.ErrUserNotFound
	}
	return user, nil
}

func (u *UserStore) Update(_ context.Context, userID int64, params pgrepo.UpdateUserParams) (model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return model.User{}, pgrepo.ErrUserNotFound
	}
	if params.Name != nil {
		user.Name = *params.Name
	}
	if params.Bio != nil {
		user.Bio = *params.Bio
	}
	if params.ProfileImageURL != nil {
		user.ProfileImageURL = *params.ProfileImageURL
	}
	if len(params.Preferences) > 0 {
		user.Preferences = params.Preferences
	}
	user.UpdatedAt = s.now()
	s.users[userID] = user
	return user, nil
}

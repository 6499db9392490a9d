package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchapp/internal/domain/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

type CreateUserParams struct {
	Email           string
	Name            string
	Bio             string
	Gender          string
	Location        string
	Birthdate       *time.Time
	ProfileImageURL string
	Preferences     json.RawMessage
}

// UpdateUserParams carries a partial profile update; nil fields are left untouched.
type UpdateUserParams struct {
	Name            *string
	Bio             *string
	ProfileImageURL *string
	Preferences     json.RawMessage
}

const userColumns = `id, email, name, bio, gender, location, birthdate, profile_image_url, preferences, created_at, updated_at`

func (r *UserRepo) Create(ctx context.Context, params CreateUserParams) (model.User, error) {
	if params.Email == "" {
		return model.User{}, fmt.Errorf("email is required")
	}
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO users (
	email,
	name,
	bio,
	gender,
	location,
	birthdate,
	profile_image_url,
	preferences,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING `+userColumns,
		params.Email,
		params.Name,
		params.Bio,
		params.Gender,
		params.Location,
		params.Birthdate,
		params.ProfileImageURL,
		nullableJSON(params.Preferences),
	)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetByID resolves a user; tx may be nil to read outside a transaction.
func (r *UserRepo) GetByID(ctx context.Context, tx pgx.Tx, userID int64) (model.User, error) {
	if userID <= 0 {
		return model.User{}, ErrUserNotFound
	}
	q, err := pick(r.pool, tx)
	if err != nil {
		return model.User{}, err
	}

	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) Update(ctx context.Context, userID int64, params UpdateUserParams) (model.User, error) {
	if userID <= 0 {
		return model.User{}, ErrUserNotFound
	}
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}

	user, err := scanUser(r.pool.QueryRow(ctx, `
UPDATE users SET
	name = COALESCE($2, name),
	bio = COALESCE($3, bio),
	profile_image_url = COALESCE($4, profile_image_url),
	preferences = COALESCE($5, preferences),
	updated_at = NOW()
WHERE id = $1
RETURNING `+userColumns,
		userID,
		params.Name,
		params.Bio,
		params.ProfileImageURL,
		nullableJSON(params.Preferences),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		user        model.User
		preferences []byte
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Bio,
		&user.Gender,
		&user.Location,
		&user.Birthdate,
		&user.ProfileImageURL,
		&preferences,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return model.User{}, err
	}
	if len(preferences) > 0 {
		user.Preferences = json.RawMessage(preferences)
	}
	return user, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

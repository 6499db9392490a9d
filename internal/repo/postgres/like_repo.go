package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchapp/internal/domain/model"
)

type LikeRepo struct {
	pool *pgxpool.Pool
}

func NewLikeRepo(pool *pgxpool.Pool) *LikeRepo {
	return &LikeRepo{pool: pool}
}

type MatchedUserRecord struct {
	UserID          int64
	Name            string
	ProfileImageURL string
	MatchedAt       time.Time
}

// Insert records sender->receiver. An existing edge is returned unchanged with created=false.
func (r *LikeRepo) Insert(ctx context.Context, tx pgx.Tx, senderID, receiverID int64) (model.Like, bool, error) {
	if senderID <= 0 || receiverID <= 0 {
		return model.Like{}, false, fmt.Errorf("invalid like payload")
	}
	if tx == nil {
		return model.Like{}, false, fmt.Errorf("transaction is required")
	}

	var (
		like    model.Like
		created bool
	)
	err := tx.QueryRow(ctx, `
WITH inserted AS (
	INSERT INTO likes (
		sender_id,
		receiver_id,
		is_match,
		created_at
	) VALUES ($1, $2, FALSE, NOW())
	ON CONFLICT (sender_id, receiver_id) DO NOTHING
	RETURNING id, sender_id, receiver_id, is_match, created_at
)
SELECT id, sender_id, receiver_id, is_match, created_at, TRUE FROM inserted
UNION ALL
SELECT id, sender_id, receiver_id, is_match, created_at, FALSE
FROM likes
WHERE sender_id = $1 AND receiver_id = $2
	AND NOT EXISTS (SELECT 1 FROM inserted)
LIMIT 1
`, senderID, receiverID).Scan(
		&like.ID,
		&like.SenderID,
		&like.ReceiverID,
		&like.IsMatch,
		&like.CreatedAt,
		&created,
	)
	if err != nil {
		return model.Like{}, false, fmt.Errorf("insert like: %w", err)
	}

	return like, created, nil
}

func (r *LikeRepo) Exists(ctx context.Context, tx pgx.Tx, senderID, receiverID int64) (bool, error) {
	if senderID <= 0 || receiverID <= 0 {
		return false, fmt.Errorf("invalid like lookup payload")
	}
	q, err := pick(r.pool, tx)
	if err != nil {
		return false, err
	}

	var one int
	err = q.QueryRow(ctx, `
SELECT 1
FROM likes
WHERE sender_id = $1 AND receiver_id = $2
LIMIT 1
`, senderID, receiverID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup like: %w", err)
	}

	return true, nil
}

// MarkMatched flags both directed edges of the pair as a match.
func (r *LikeRepo) MarkMatched(ctx context.Context, tx pgx.Tx, pair model.Pair) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE likes
SET is_match = TRUE
WHERE (sender_id = $1 AND receiver_id = $2)
	OR (sender_id = $2 AND receiver_id = $1)
`, pair.Low, pair.High); err != nil {
		return fmt.Errorf("mark likes matched: %w", err)
	}
	return nil
}

func (r *LikeRepo) ListIncoming(ctx context.Context, receiverID int64, limit int) ([]model.Like, error) {
	if receiverID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 50
	}
	if r.pool == nil {
		return []model.Like{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, sender_id, receiver_id, is_match, created_at
FROM likes
WHERE receiver_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, receiverID, limit)
	if err != nil {
		return nil, fmt.Errorf("list incoming likes: %w", err)
	}
	defer rows.Close()

	items := make([]model.Like, 0, limit)
	for rows.Next() {
		var like model.Like
		if err := rows.Scan(&like.ID, &like.SenderID, &like.ReceiverID, &like.IsMatch, &like.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incoming like: %w", err)
		}
		items = append(items, like)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate incoming likes: %w", rows.Err())
	}

	return items, nil
}

func (r *LikeRepo) ListMatchedUsers(ctx context.Context, userID int64, limit int) ([]MatchedUserRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []MatchedUserRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	u.id,
	u.name,
	u.profile_image_url,
	GREATEST(l.created_at, back.created_at)
FROM likes l
JOIN likes back ON back.sender_id = l.receiver_id AND back.receiver_id = l.sender_id
JOIN users u ON u.id = l.sender_id
WHERE
	l.receiver_id = $1
	AND l.is_match = TRUE
ORDER BY 4 DESC, u.id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matched users: %w", err)
	}
	defer rows.Close()

	items := make([]MatchedUserRecord, 0, limit)
	for rows.Next() {
		var rec MatchedUserRecord
		if err := rows.Scan(&rec.UserID, &rec.Name, &rec.ProfileImageURL, &rec.MatchedAt); err != nil {
			return nil, fmt.Errorf("scan matched user: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate matched users: %w", rows.Err())
	}

	return items, nil
}

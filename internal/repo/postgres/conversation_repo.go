package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchapp/internal/domain/model"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation for pair already exists")
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// Create inserts the conversation and both participant rows. A second
// conversation for the same pair violates conversations_pair_key and is
// reported as ErrConversationExists.
func (r *ConversationRepo) Create(ctx context.Context, tx pgx.Tx, id uuid.UUID, pair model.Pair, now time.Time) (model.Conversation, error) {
	if pair.Low <= 0 || pair.High <= 0 || pair.Low == pair.High {
		return model.Conversation{}, fmt.Errorf("invalid conversation pair")
	}
	if tx == nil {
		return model.Conversation{}, fmt.Errorf("transaction is required")
	}

	var conv model.Conversation
	err := tx.QueryRow(ctx, `
INSERT INTO conversations (
	id,
	user_low_id,
	user_high_id,
	created_at
) VALUES ($1, $2, $3, $4)
RETURNING id, user_low_id, user_high_id, created_at
`, id, pair.Low, pair.High, now).Scan(
		&conv.ID,
		&conv.Participants[0],
		&conv.Participants[1],
		&conv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Conversation{}, ErrConversationExists
		}
		return model.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO conversation_participants (
	conversation_id,
	user_id,
	joined_at
) VALUES ($1, $2, $4), ($1, $3, $4)
`, conv.ID, pair.Low, pair.High, now); err != nil {
		return model.Conversation{}, fmt.Errorf("add conversation participants: %w", err)
	}

	return conv, nil
}

func (r *ConversationRepo) FindByPair(ctx context.Context, tx pgx.Tx, pair model.Pair) (model.Conversation, error) {
	q, err := pick(r.pool, tx)
	if err != nil {
		return model.Conversation{}, err
	}

	var conv model.Conversation
	err = q.QueryRow(ctx, `
SELECT id, user_low_id, user_high_id, created_at
FROM conversations
WHERE user_low_id = $1 AND user_high_id = $2
`, pair.Low, pair.High).Scan(
		&conv.ID,
		&conv.Participants[0],
		&conv.Participants[1],
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, ErrConversationNotFound
		}
		return model.Conversation{}, fmt.Errorf("find conversation by pair: %w", err)
	}
	return conv, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Conversation, error) {
	if r.pool == nil {
		return model.Conversation{}, fmt.Errorf("postgres pool is nil")
	}

	var conv model.Conversation
	err := r.pool.QueryRow(ctx, `
SELECT id, user_low_id, user_high_id, created_at
FROM conversations
WHERE id = $1
`, id).Scan(
		&conv.ID,
		&conv.Participants[0],
		&conv.Participants[1],
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, ErrConversationNotFound
		}
		return model.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]model.Conversation, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []model.Conversation{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT c.id, c.user_low_id, c.user_high_id, c.created_at
FROM conversation_participants p
JOIN conversations c ON c.id = p.conversation_id
WHERE p.user_id = $1
ORDER BY c.created_at DESC, c.id
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]model.Conversation, 0, limit)
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.Participants[0], &conv.Participants[1], &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		items = append(items, conv)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conversations: %w", rows.Err())
	}

	return items, nil
}

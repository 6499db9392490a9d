package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchapp/internal/domain/model"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.SenderID <= 0 || msg.ReceiverID <= 0 || msg.Content == "" {
		return model.Message{}, fmt.Errorf("invalid message payload")
	}
	if r.pool == nil {
		return model.Message{}, fmt.Errorf("postgres pool is nil")
	}

	out := msg
	if err := r.pool.QueryRow(ctx, `
INSERT INTO messages (
	conversation_id,
	sender_id,
	receiver_id,
	content,
	created_at
) VALUES ($1, $2, $3, $4, NOW())
RETURNING id, created_at
`, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content).Scan(&out.ID, &out.CreatedAt); err != nil {
		return model.Message{}, fmt.Errorf("create message: %w", err)
	}
	return out, nil
}

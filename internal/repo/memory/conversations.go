package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchapp/internal/domain/model"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
)

type ConversationStore struct {
	s *Store
}

func (c *ConversationStore) Create(ctx context.Context, _ pgx.Tx, id uuid.UUID, pair model.Pair, now time.Time) (model.Conversation, error) {
	if pair.Low <= 0 || pair.High <= 0 || pair.Low == pair.High {
		return model.Conversation{}, fmt.Errorf("invalid conversation pair")
	}

	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ConversationCreate != nil {
		if err := s.ConversationCreate(pair); err != nil {
			return model.Conversation{}, err
		}
	}
	if _, ok := s.byPair[pair]; ok {
		return model.Conversation{}, pgrepo.ErrConversationExists
	}

	conv := model.Conversation{
		ID:           id,
		Participants: [2]int64{pair.Low, pair.High},
		CreatedAt:    now,
	}
	s.conversations[id] = conv
	s.byPair[pair] = id
	s.record(ctx, func() {
		delete(s.conversations, id)
		delete(s.byPair, pair)
	})
	return conv, nil
}

func (c *ConversationStore) FindByPair(_ context.Context, _ pgx.Tx, pair model.Pair) (model.Conversation, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[pair]
	if !ok {
		return model.Conversation{}, pgrepo.ErrConversationNotFound
	}
	return s.conversations[id], nil
}

func (c *ConversationStore) GetByID(_ context.Context, id uuid.UUID) (model.Conversation, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return model.Conversation{}, pgrepo.ErrConversationNotFound
	}
	return conv, nil
}

func (c *ConversationStore) ListForUser(_ context.Context, userID int64, limit int) ([]model.Conversation, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			items = append(items, conv)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

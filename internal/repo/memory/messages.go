package memory

import (
	"context"
	"fmt"

	"github.com/ivankudzin/matchapp/internal/domain/model"
)

type MessageStore struct {
	s *Store
}

func (m *MessageStore) Create(_ context.Context, msg model.Message) (model.Message, error) {
	if msg.SenderID <= 0 || msg.ReceiverID <= 0 || msg.Content == "" {
		return model.Message{}, fmt.Errorf("invalid message payload")
	}

	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return model.Message{}, fmt.Errorf("conversation %s does not exist", msg.ConversationID)
	}

	s.nextMessageID++
	msg.ID = s.nextMessageID
	msg.CreatedAt = s.now()
	s.messages = append(s.messages, msg)
	return msg, nil
}

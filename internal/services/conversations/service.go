// Package conversations provisions the shared conversation of a matched pair
// and stores the messages exchanged in it.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchapp/internal/domain/apperr"
	"github.com/ivankudzin/matchapp/internal/domain/model"
	"github.com/ivankudzin/matchapp/internal/infra/metrics"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
)

type ConversationStore interface {
	Create(ctx context.Context, tx pgx.Tx, id uuid.UUID, pair model.Pair, now time.Time) (model.Conversation, error)
	FindByPair(ctx context.Context, tx pgx.Tx, pair model.Pair) (model.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Conversation, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]model.Conversation, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg model.Message) (model.Message, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, tx pgx.Tx, userID int64) (model.User, error)
}

type MessageNotifier interface {
	NotifyMessageReceived(ctx context.Context, userID int64, conversationID uuid.UUID, messageID int64)
}

type Config struct {
	ListLimitDefault int
	MessageMaxLength int
}

type Dependencies struct {
	Conversations ConversationStore
	Messages      MessageStore
	Users         UserLookup
	Notifier      MessageNotifier
	Now           func() time.Time
	NewID         func() uuid.UUID
}

type Service struct {
	conversations ConversationStore
	messages      MessageStore
	users         UserLookup
	notifier      MessageNotifier
	now           func() time.Time
	newID         func() uuid.UUID
	cfg           Config
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.ListLimitDefault <= 0 {
		cfg.ListLimitDefault = 100
	}
	if cfg.MessageMaxLength <= 0 {
		cfg.MessageMaxLength = 4000
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.New
	}

	return &Service{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		users:         deps.Users,
		notifier:      deps.Notifier,
		now:           now,
		newID:         newID,
		cfg:           cfg,
	}
}

// Provision creates the conversation for a and b inside tx. A conversation
// that already exists for the pair is reported as apperr.ErrConflict.
func (s *Service) Provision(ctx context.Context, tx pgx.Tx, a, b int64) (model.Conversation, error) {
	if a <= 0 || b <= 0 || a == b {
		return model.Conversation{}, fmt.Errorf("%w: conversation needs two distinct users", apperr.ErrValidation)
	}
	if s.conversations == nil {
		return model.Conversation{}, fmt.Errorf("conversation store is nil")
	}

	pair := model.NewPair(a, b)
	conv, err := s.conversations.Create(ctx, tx, s.newID(), pair, s.now().UTC())
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationExists) {
			metrics.ProvisionConflicts.Inc()
			return model.Conversation{}, fmt.Errorf("%w: conversation for pair %s", apperr.ErrConflict, pair)
		}
		return model.Conversation{}, apperr.Dependency("create conversation", err)
	}

	metrics.ConversationsProvisioned.Inc()
	return conv, nil
}

// FindByPair returns the conversation of a and b, if one was provisioned.
func (s *Service) FindByPair(ctx context.Context, tx pgx.Tx, a, b int64) (model.Conversation, bool, error) {
	conv, err := s.conversations.FindByPair(ctx, tx, model.NewPair(a, b))
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return model.Conversation{}, false, nil
		}
		return model.Conversation{}, false, apperr.Dependency("find conversation", err)
	}
	return conv, true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Conversation, error) {
	if id == uuid.Nil {
		return model.Conversation{}, fmt.Errorf("%w: conversation id is required", apperr.ErrValidation)
	}

	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return model.Conversation{}, fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, id)
		}
		return model.Conversation{}, apperr.Dependency("get conversation", err)
	}
	return conv, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64, limit int) ([]model.Conversation, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: invalid user id", apperr.ErrValidation)
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.cfg.ListLimitDefault {
		limit = s.cfg.ListLimitDefault
	}
	items, err := s.conversations.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Dependency("list conversations", err)
	}
	return items, nil
}

// SendMessage stores a message from senderID to the other participant and
// pushes message_received to that participant.
func (s *Service) SendMessage(ctx context.Context, conversationID uuid.UUID, senderID int64, content string) (model.Message, error) {
	content = strings.TrimSpace(content)
	if senderID <= 0 {
		return model.Message{}, fmt.Errorf("%w: invalid sender id", apperr.ErrValidation)
	}
	if content == "" {
		return model.Message{}, fmt.Errorf("%w: message content is required", apperr.ErrValidation)
	}
	if utf8.RuneCountInString(content) > s.cfg.MessageMaxLength {
		return model.Message{}, fmt.Errorf("%w: message exceeds %d characters", apperr.ErrValidation, s.cfg.MessageMaxLength)
	}
	if s.messages == nil {
		return model.Message{}, fmt.Errorf("message store is nil")
	}

	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return model.Message{}, err
	}
	if !conv.HasParticipant(senderID) {
		return model.Message{}, fmt.Errorf("%w: user %d is not a participant", apperr.ErrValidation, senderID)
	}

	msg, err := s.messages.Create(ctx, model.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     conv.Pair().Other(senderID),
		Content:        content,
	})
	if err != nil {
		return model.Message{}, apperr.Dependency("create message", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyMessageReceived(ctx, msg.ReceiverID, conv.ID, msg.ID)
	}
	return msg, nil
}

func (s *Service) ensureUser(ctx context.Context, userID int64) error {
	if s.users == nil {
		return nil
	}
	if _, err := s.users.GetByID(ctx, nil, userID); err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
		}
		return apperr.Dependency("load user", err)
	}
	return nil
}

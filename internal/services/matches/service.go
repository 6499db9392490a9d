// Package matches turns like submissions into matches. Each submission runs
// in one transaction serialized on the unordered user pair, so two users
// liking each other at the same time still produce a single conversation.
package matches

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchapp/internal/domain/apperr"
	"github.com/ivankudzin/matchapp/internal/domain/model"
	"github.com/ivankudzin/matchapp/internal/infra/logger"
	"github.com/ivankudzin/matchapp/internal/infra/metrics"
)

const (
	outcomeOneSided        = "one_sided"
	outcomeMatchedNew      = "matched_new"
	outcomeMatchedExisting = "matched_existing"
)

type PairTx interface {
	WithPairTx(ctx context.Context, pair model.Pair, fn func(context.Context, pgx.Tx) error) error
}

type Ledger interface {
	Record(ctx context.Context, tx pgx.Tx, senderID, receiverID int64) (model.Like, bool, error)
	PairState(ctx context.Context, tx pgx.Tx, a, b int64) (model.PairState, error)
	MarkMatched(ctx context.Context, tx pgx.Tx, pair model.Pair) error
}

type Provisioner interface {
	FindByPair(ctx context.Context, tx pgx.Tx, a, b int64) (model.Conversation, bool, error)
	Provision(ctx context.Context, tx pgx.Tx, a, b int64) (model.Conversation, error)
}

type Notifier interface {
	NotifyLikeReceived(ctx context.Context, receiverID int64)
	NotifyConversationCreated(ctx context.Context, userID int64, conversationID uuid.UUID)
}

// RateLimiter is consulted before a like and charged only for likes that
// created a new edge.
type RateLimiter interface {
	RetryAfterLike(ctx context.Context, userID int64) (int64, error)
	RecordLike(ctx context.Context, userID int64) error
}

type Config struct {
	// ProvisionRetries is how many times a submission is replayed after a
	// pair-uniqueness conflict before giving up.
	ProvisionRetries int
}

type Dependencies struct {
	Tx            PairTx
	Ledger        Ledger
	Conversations Provisioner
	Notifier      Notifier
	Limiter       RateLimiter
	Logger        *zap.Logger
}

type Service struct {
	tx            PairTx
	ledger        Ledger
	conversations Provisioner
	notifier      Notifier
	limiter       RateLimiter
	log           *zap.Logger
	cfg           Config
}

type Result struct {
	LikeID              int64
	LikeCreated         bool
	Matched             bool
	ConversationID      uuid.UUID
	ConversationCreated bool
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.ProvisionRetries < 0 {
		cfg.ProvisionRetries = 0
	}
	return &Service{
		tx:            deps.Tx,
		ledger:        deps.Ledger,
		conversations: deps.Conversations,
		notifier:      deps.Notifier,
		limiter:       deps.Limiter,
		log:           logger.OrNop(deps.Logger),
		cfg:           cfg,
	}
}

// SubmitLike records senderID's like of receiverID. When the receiver has
// already liked the sender the pair's conversation is returned, provisioning
// it on first detection. Notifications go out only after commit.
func (s *Service) SubmitLike(ctx context.Context, senderID, receiverID int64) (Result, error) {
	if senderID <= 0 || receiverID <= 0 {
		return Result{}, fmt.Errorf("%w: user ids must be positive", apperr.ErrValidation)
	}
	if senderID == receiverID {
		return Result{}, fmt.Errorf("%w: cannot like yourself", apperr.ErrValidation)
	}
	if s.tx == nil || s.ledger == nil || s.conversations == nil {
		return Result{}, fmt.Errorf("match service dependencies are not configured")
	}

	if err := s.checkRate(ctx, senderID); err != nil {
		return Result{}, err
	}

	pair := model.NewPair(senderID, receiverID)

	var (
		res Result
		err error
	)
	for attempt := 0; ; attempt++ {
		res, err = s.detect(ctx, pair, senderID, receiverID)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return Result{}, err
		}
		if attempt >= s.cfg.ProvisionRetries {
			s.log.Error("conversation provisioning kept conflicting",
				zap.Int64("sender_id", senderID),
				zap.Int64("receiver_id", receiverID),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return Result{}, fmt.Errorf("%w: provision conversation for pair %s: %v", apperr.ErrDependencyFailure, pair, err)
		}
		s.log.Warn("retrying like after provisioning conflict",
			zap.Int64("sender_id", senderID),
			zap.Int64("receiver_id", receiverID),
			zap.Error(err),
		)
	}

	if res.LikeCreated {
		s.countLike(ctx, senderID)
	}
	s.afterCommit(ctx, senderID, receiverID, res)
	return res, nil
}

func (s *Service) checkRate(ctx context.Context, senderID int64) error {
	if s.limiter == nil {
		return nil
	}
	retryAfter, err := s.limiter.RetryAfterLike(ctx, senderID)
	if err != nil {
		// fail open
		s.log.Warn("like rate limiter unavailable", zap.Int64("sender_id", senderID), zap.Error(err))
		return nil
	}
	if retryAfter > 0 {
		return apperr.TooFastError{RetryAfterSec: retryAfter}
	}
	return nil
}

func (s *Service) countLike(ctx context.Context, senderID int64) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordLike(context.WithoutCancel(ctx), senderID); err != nil {
		s.log.Warn("count like against rate windows", zap.Int64("sender_id", senderID), zap.Error(err))
	}
}

func (s *Service) detect(ctx context.Context, pair model.Pair, senderID, receiverID int64) (Result, error) {
	var res Result
	err := s.tx.WithPairTx(ctx, pair, func(txCtx context.Context, tx pgx.Tx) error {
		res = Result{}

		like, created, err := s.ledger.Record(txCtx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		res.LikeID = like.ID
		res.LikeCreated = created

		state, err := s.ledger.PairState(txCtx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if state != model.PairStateMutual {
			return nil
		}
		res.Matched = true

		existing, ok, err := s.conversations.FindByPair(txCtx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if ok {
			res.ConversationID = existing.ID
			return nil
		}

		conv, err := s.conversations.Provision(txCtx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if err := s.ledger.MarkMatched(txCtx, tx, pair); err != nil {
			return err
		}
		res.ConversationID = conv.ID
		res.ConversationCreated = true
		return nil
	})
	if err != nil {
		return Result{}, apperr.Dependency("like transaction", err)
	}
	return res, nil
}

func (s *Service) afterCommit(ctx context.Context, senderID, receiverID int64, res Result) {
	switch {
	case res.ConversationCreated:
		metrics.MatchOutcomes.WithLabelValues(outcomeMatchedNew).Inc()
		s.log.Info("users matched",
			zap.Int64("sender_id", senderID),
			zap.Int64("receiver_id", receiverID),
			zap.String("conversation_id", res.ConversationID.String()),
		)
	case res.Matched:
		metrics.MatchOutcomes.WithLabelValues(outcomeMatchedExisting).Inc()
	default:
		metrics.MatchOutcomes.WithLabelValues(outcomeOneSided).Inc()
	}

	if s.notifier == nil {
		return
	}
	switch {
	case res.ConversationCreated:
		s.notifier.NotifyConversationCreated(ctx, senderID, res.ConversationID)
		s.notifier.NotifyConversationCreated(ctx, receiverID, res.ConversationID)
	case !res.Matched && res.LikeCreated:
		s.notifier.NotifyLikeReceived(ctx, receiverID)
	}
}

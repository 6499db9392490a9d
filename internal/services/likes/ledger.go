// Package likes records directed like edges and answers reciprocity queries.
package likes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchapp/internal/domain/apperr"
	"github.com/ivankudzin/matchapp/internal/domain/model"
	"github.com/ivankudzin/matchapp/internal/infra/metrics"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
)

type LikeStore interface {
	Insert(ctx context.Context, tx pgx.Tx, senderID, receiverID int64) (model.Like, bool, error)
	Exists(ctx context.Context, tx pgx.Tx, senderID, receiverID int64) (bool, error)
	MarkMatched(ctx context.Context, tx pgx.Tx, pair model.Pair) error
	ListIncoming(ctx context.Context, receiverID int64, limit int) ([]model.Like, error)
	ListMatchedUsers(ctx context.Context, userID int64, limit int) ([]pgrepo.MatchedUserRecord, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, tx pgx.Tx, userID int64) (model.User, error)
}

type Config struct {
	ListLimitDefault int
}

type Ledger struct {
	likes LikeStore
	users UserLookup
	cfg   Config
}

type Dependencies struct {
	Likes LikeStore
	Users UserLookup
}

type MatchedUser struct {
	UserID          int64
	Name            string
	ProfileImageURL string
	MatchedAt       time.Time
}

func NewLedger(deps Dependencies, cfg Config) *Ledger {
	if cfg.ListLimitDefault <= 0 {
		cfg.ListLimitDefault = 100
	}
	return &Ledger{likes: deps.Likes, users: deps.Users, cfg: cfg}
}

// Record stores sender->receiver inside tx. Both users must exist. Liking
// the same user again returns the stored edge with created=false.
func (l *Ledger) Record(ctx context.Context, tx pgx.Tx, senderID, receiverID int64) (model.Like, bool, error) {
	if senderID <= 0 || receiverID <= 0 {
		return model.Like{}, false, fmt.Errorf("%w: user ids must be positive", apperr.ErrValidation)
	}
	if senderID == receiverID {
		return model.Like{}, false, fmt.Errorf("%w: cannot like yourself", apperr.ErrValidation)
	}
	if l.likes == nil || l.users == nil {
		return model.Like{}, false, fmt.Errorf("like ledger dependencies are not configured")
	}

	for _, id := range []int64{senderID, receiverID} {
		if err := l.ensureUser(ctx, tx, id); err != nil {
			return model.Like{}, false, err
		}
	}

	like, created, err := l.likes.Insert(ctx, tx, senderID, receiverID)
	if err != nil {
		return model.Like{}, false, apperr.Dependency("record like", err)
	}

	if created {
		metrics.LikesRecorded.WithLabelValues("created").Inc()
	} else {
		metrics.LikesRecorded.WithLabelValues("existing").Inc()
	}
	return like, created, nil
}

func (l *Ledger) ensureUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	if _, err := l.users.GetByID(ctx, tx, userID); err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
		}
		return apperr.Dependency("load user", err)
	}
	return nil
}

// HasLiked reports whether an edge a->b exists.
func (l *Ledger) HasLiked(ctx context.Context, tx pgx.Tx, a, b int64) (bool, error) {
	ok, err := l.likes.Exists(ctx, tx, a, b)
	if err != nil {
		return false, apperr.Dependency("check like", err)
	}
	return ok, nil
}

func (l *Ledger) PairState(ctx context.Context, tx pgx.Tx, a, b int64) (model.PairState, error) {
	pair := model.NewPair(a, b)
	lowLikesHigh, err := l.HasLiked(ctx, tx, pair.Low, pair.High)
	if err != nil {
		return model.PairStateNone, err
	}
	highLikesLow, err := l.HasLiked(ctx, tx, pair.High, pair.Low)
	if err != nil {
		return model.PairStateNone, err
	}
	return model.PairStateFrom(lowLikesHigh, highLikesLow), nil
}

func (l *Ledger) MarkMatched(ctx context.Context, tx pgx.Tx, pair model.Pair) error {
	if err := l.likes.MarkMatched(ctx, tx, pair); err != nil {
		return apperr.Dependency("mark likes matched", err)
	}
	return nil
}

// Incoming lists edges whose receiver is userID, newest first.
func (l *Ledger) Incoming(ctx context.Context, userID int64, limit int) ([]model.Like, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: invalid user id", apperr.ErrValidation)
	}
	if err := l.ensureUser(ctx, nil, userID); err != nil {
		return nil, err
	}

	items, err := l.likes.ListIncoming(ctx, userID, l.limit(limit))
	if err != nil {
		return nil, apperr.Dependency("list incoming likes", err)
	}
	return items, nil
}

// Matches lists users whose edges with userID are marked as a match.
func (l *Ledger) Matches(ctx context.Context, userID int64, limit int) ([]MatchedUser, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: invalid user id", apperr.ErrValidation)
	}
	if err := l.ensureUser(ctx, nil, userID); err != nil {
		return nil, err
	}

	rows, err := l.likes.ListMatchedUsers(ctx, userID, l.limit(limit))
	if err != nil {
		return nil, apperr.Dependency("list matches", err)
	}

	items := make([]MatchedUser, 0, len(rows))
	for _, row := range rows {
		items = append(items, MatchedUser{
			UserID:          row.UserID,
			Name:            row.Name,
			ProfileImageURL: row.ProfileImageURL,
			MatchedAt:       row.MatchedAt,
		})
	}
	return items, nil
}

func (l *Ledger) limit(limit int) int {
	if limit <= 0 || limit > l.cfg.ListLimitDefault {
		return l.cfg.ListLimitDefault
	}
	return limit
}

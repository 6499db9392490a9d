// Package memory is an in-process implementation of the persistence stores.
// Pair transactions are serialized per pair and rolled back through an undo
// journal carried on the context, so it reproduces the transactional
// behaviour the services rely on without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchapp/internal/domain/model"
)

type Store struct {
	mu        sync.Mutex
	pairLocks map[model.Pair]*sync.Mutex

	users      map[int64]model.User
	nextUserID int64

	likes      map[[2]int64]model.Like
	nextLikeID int64

	conversations map[uuid.UUID]model.Conversation
	byPair        map[model.Pair]uuid.UUID

	messages      []model.Message
	nextMessageID int64

	commits   int
	rollbacks int

	// Now stamps created rows. Defaults to the wall clock.
	Now func() time.Time

	// Fault hooks. Each is consulted under the store lock.
	UserLookupErr      error
	ConversationCreate func(pair model.Pair) error
}

func New() *Store {
	return &Store{
		pairLocks:     map[model.Pair]*sync.Mutex{},
		users:         map[int64]model.User{},
		likes:         map[[2]int64]model.Like{},
		conversations: map[uuid.UUID]model.Conversation{},
		byPair:        map[model.Pair]uuid.UUID{},
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type txKey struct{}

type journal struct {
	undo []func()
}

// record registers an undo step for the transaction in ctx, if any.
// Callers hold s.mu.
func (s *Store) record(ctx context.Context, fn func()) {
	if j, ok := ctx.Value(txKey{}).(*journal); ok {
		j.undo = append(j.undo, fn)
	}
}

func (s *Store) pairLock(pair model.Pair) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.pairLocks[pair]
	if !ok {
		l = &sync.Mutex{}
		s.pairLocks[pair] = l
	}
	return l
}

// WithPairTx matches postgres.PairTxRunner: fn runs while holding the pair
// lock and every write it makes is undone when it returns an error.
func (s *Store) WithPairTx(ctx context.Context, pair model.Pair, fn func(context.Context, pgx.Tx) error) error {
	l := s.pairLock(pair)
	l.Lock()
	defer l.Unlock()

	j := &journal{}
	err := fn(context.WithValue(ctx, txKey{}, j), nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func (s *Store) Users() *UserStore                 { return &UserStore{s: s} }
func (s *Store) Likes() *LikeStore                 { return &LikeStore{s: s} }
func (s *Store) Conversations() *ConversationStore { return &ConversationStore{s: s} }
func (s *Store) Messages() *MessageStore           { return &MessageStore{s: s} }

// Stats reports committed and rolled back pair transactions.
func (s *Store) Stats() (commits, rollbacks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits, s.rollbacks
}

func (s *Store) LikeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.likes)
}

func (s *Store) ConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

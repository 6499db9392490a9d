package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchapp/internal/domain/model"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
)

type LikeStore struct {
	s *Store
}

func (l *LikeStore) Insert(ctx context.Context, _ pgx.Tx, senderID, receiverID int64) (model.Like, bool, error) {
	if senderID <= 0 || receiverID <= 0 || senderID == receiverID {
		return model.Like{}, false, fmt.Errorf("invalid like payload")
	}

	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]int64{senderID, receiverID}
	if existing, ok := s.likes[key]; ok {
		return existing, false, nil
	}

	s.nextLikeID++
	like := model.Like{
		ID:         s.nextLikeID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		CreatedAt:  s.now(),
	}
	s.likes[key] = like
	s.record(ctx, func() { delete(s.likes, key) })
	return like, true, nil
}

func (l *LikeStore) Exists(_ context.Context, _ pgx.Tx, senderID, receiverID int64) (bool, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.likes[[2]int64{senderID, receiverID}]
	return ok, nil
}

func (l *LikeStore) MarkMatched(ctx context.Context, _ pgx.Tx, pair model.Pair) error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range [][2]int64{{pair.Low, pair.High}, {pair.High, pair.Low}} {
		like, ok := s.likes[key]
		if !ok || like.IsMatch {
			continue
		}
		like.IsMatch = true
		s.likes[key] = like
		s.record(ctx, func() {
			if cur, ok := s.likes[key]; ok {
				cur.IsMatch = false
				s.likes[key] = cur
			}
		})
	}
	return nil
}

func (l *LikeStore) ListIncoming(_ context.Context, receiverID int64, limit int) ([]model.Like, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Like, 0)
	for _, like := range s.likes {
		if like.ReceiverID == receiverID {
			items = append(items, like)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (l *LikeStore) ListMatchedUsers(_ context.Context, userID int64, limit int) ([]pgrepo.MatchedUserRecord, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]pgrepo.MatchedUserRecord, 0)
	for _, like := range s.likes {
		if like.SenderID != userID || !like.IsMatch {
			continue
		}
		other := s.users[like.ReceiverID]
		matchedAt := like.CreatedAt
		if back, ok := s.likes[[2]int64{like.ReceiverID, userID}]; ok && back.CreatedAt.After(matchedAt) {
			matchedAt = back.CreatedAt
		}
		items = append(items, pgrepo.MatchedUserRecord{
			UserID:          like.ReceiverID,
			Name:            other.Name,
			ProfileImageURL: other.ProfileImageURL,
			MatchedAt:       matchedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].MatchedAt.Equal(items[j].MatchedAt) {
			return items[i].MatchedAt.After(items[j].MatchedAt)
		}
		return items[i].UserID > items[j].UserID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

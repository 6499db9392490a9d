package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchapp/internal/domain/model"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
)

func TestPairTxRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	pair := model.NewPair(1, 2)
	boom := errors.New("boom")

	err := store.WithPairTx(ctx, pair, func(txCtx context.Context, tx pgx.Tx) error {
		if _, _, err := store.Likes().Insert(txCtx, tx, 1, 2); err != nil {
			return err
		}
		if _, _, err := store.Likes().Insert(txCtx, tx, 2, 1); err != nil {
			return err
		}
		if err := store.Likes().MarkMatched(txCtx, tx, pair); err != nil {
			return err
		}
		if _, err := store.Conversations().Create(txCtx, tx, uuid.New(), pair, time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if store.LikeCount() != 0 || store.ConversationCount() != 0 {
		t.Fatalf("expected rollback, got likes=%d conversations=%d", store.LikeCount(), store.ConversationCount())
	}
	if commits, rollbacks := store.Stats(); commits != 0 || rollbacks != 1 {
		t.Fatalf("unexpected tx stats: commits=%d rollbacks=%d", commits, rollbacks)
	}
}

func TestPairTxRollbackKeepsEarlierCommits(t *testing.T) {
	store := New()
	ctx := context.Background()
	pair := model.NewPair(1, 2)

	if err := store.WithPairTx(ctx, pair, func(txCtx context.Context, tx pgx.Tx) error {
		_, _, err := store.Likes().Insert(txCtx, tx, 1, 2)
		return err
	}); err != nil {
		t.Fatalf("first tx: %v", err)
	}

	_ = store.WithPairTx(ctx, pair, func(txCtx context.Context, tx pgx.Tx) error {
		like, created, err := store.Likes().Insert(txCtx, tx, 1, 2)
		if err != nil {
			return err
		}
		if created || like.ID != 1 {
			t.Fatalf("expected existing edge, got created=%v id=%d", created, like.ID)
		}
		return errors.New("abort")
	})

	if ok, _ := store.Likes().Exists(ctx, nil, 1, 2); !ok {
		t.Fatalf("committed edge must survive a later rollback")
	}
}

func TestConversationCreateRejectsSecondForPair(t *testing.T) {
	store := New()
	ctx := context.Background()
	pair := model.NewPair(3, 9)

	if _, err := store.Conversations().Create(ctx, nil, uuid.New(), pair, time.Now()); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.Conversations().Create(ctx, nil, uuid.New(), pair, time.Now())
	if !errors.Is(err, pgrepo.ErrConversationExists) {
		t.Fatalf("expected ErrConversationExists, got %v", err)
	}
}

func TestMatchedUsersNewestMatchFirst(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store.Now = func() time.Time { return clock }

	var ids []int64
	for _, name := range []string{"me", "early", "late", "tie-a", "tie-b"} {
		u, err := store.Users().Create(ctx, pgrepo.CreateUserParams{Email: name + "@example.com", Name: name})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		ids = append(ids, u.ID)
	}
	me, early, late, tieA, tieB := ids[0], ids[1], ids[2], ids[3], ids[4]

	match := func(other int64, at time.Time) {
		t.Helper()
		clock = at
		pair := model.NewPair(me, other)
		if err := store.WithPairTx(ctx, pair, func(txCtx context.Context, tx pgx.Tx) error {
			if _, _, err := store.Likes().Insert(txCtx, tx, me, other); err != nil {
				return err
			}
			if _, _, err := store.Likes().Insert(txCtx, tx, other, me); err != nil {
				return err
			}
			return store.Likes().MarkMatched(txCtx, tx, pair)
		}); err != nil {
			t.Fatalf("match with %d: %v", other, err)
		}
	}
	match(late, base.Add(3*time.Hour))
	match(early, base.Add(time.Hour))
	match(tieA, base.Add(2*time.Hour))
	match(tieB, base.Add(2*time.Hour))

	got, err := store.Likes().ListMatchedUsers(ctx, me, 10)
	if err != nil {
		t.Fatalf("list matched users: %v", err)
	}
	want := []int64{late, tieB, tieA, early}
	if len(got) != len(want) {
		t.Fatalf("unexpected matches: %+v", got)
	}
	for i, id := range want {
		if got[i].UserID != id {
			t.Fatalf("position %d: got user %d, want %d (all: %+v)", i, got[i].UserID, id, got)
		}
	}
}

package matches

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/matchapp/internal/domain/apperr"
	"github.com/ivankudzin/matchapp/internal/domain/model"
	"github.com/ivankudzin/matchapp/internal/repo/memory"
	pgrepo "github.com/ivankudzin/matchapp/internal/repo/postgres"
	redrepo "github.com/ivankudzin/matchapp/internal/repo/redis"
	"github.com/ivankudzin/matchapp/internal/services/conversations"
	"github.com/ivankudzin/matchapp/internal/services/likes"
	"github.com/ivankudzin/matchapp/internal/services/notify"
	ratesvc "github.com/ivankudzin/matchapp/internal/services/rate"
)

func TestOneSidedLikeNotifiesReceiverOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	u1, u2 := env.user("u1"), env.user("u2")

	res, err := env.svc.SubmitLike(context.Background(), u1, u2)
	if err != nil {
		t.Fatalf("submit like: %v", err)
	}
	if res.Matched || res.ConversationID != uuid.Nil || res.LikeID == 0 || !res.LikeCreated {
		t.Fatalf("unexpected one-sided result: %+v", res)
	}

	events := env.notifier.snapshot()
	if len(events) != 1 || events[0] != (event{kind: model.EventLikeReceived, userID: u2}) {
		t.Fatalf("expected single like_received to %d, got %+v", u2, events)
	}
}

func TestMutualLikeProvisionsConversationAndNotifiesBoth(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u1, u2 := env.user("u1"), env.user("u2")

	first, err := env.svc.SubmitLike(ctx, u1, u2)
	if err != nil || first.Matched {
		t.Fatalf("first like: res=%+v err=%v", first, err)
	}

	second, err := env.svc.SubmitLike(ctx, u2, u1)
	if err != nil {
		t.Fatalf("second like: %v", err)
	}
	if !second.Matched || !second.ConversationCreated || second.ConversationID == uuid.Nil {
		t.Fatalf("expected new match, got %+v", second)
	}

	events := env.notifier.snapshot()
	want := []event{
		{kind: model.EventLikeReceived, userID: u2},
		{kind: model.EventConversationCreated, userID: u2, conversationID: second.ConversationID},
		{kind: model.EventConversationCreated, userID: u1, conversationID: second.ConversationID},
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: got %+v want %+v", i, events[i], want[i])
		}
	}

	for _, id := range []int64{u1, u2} {
		convs, err := env.conversations.ListForUser(ctx, id, 0)
		if err != nil {
			t.Fatalf("list conversations for %d: %v", id, err)
		}
		if len(convs) != 1 || convs[0].ID != second.ConversationID {
			t.Fatalf("expected conversation %s for %d, got %+v", second.ConversationID, id, convs)
		}
		if convs[0].Pair() != model.NewPair(u1, u2) {
			t.Fatalf("conversation participants must be exactly {%d,%d}, got %v", u1, u2, convs[0].Participants)
		}

		matched, err := env.ledger.Matches(ctx, id, 0)
		if err != nil || len(matched) != 1 {
			t.Fatalf("expected one match for %d, got %+v (%v)", id, matched, err)
		}
	}
}

func TestReplayedLikesAreIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u1, u2 := env.user("u1"), env.user("u2")

	first, err := env.svc.SubmitLike(ctx, u1, u2)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	replayOneSided, err := env.svc.SubmitLike(ctx, u1, u2)
	if err != nil {
		t.Fatalf("replay one-sided: %v", err)
	}
	if replayOneSided.LikeCreated || replayOneSided.LikeID != first.LikeID || replayOneSided.Matched {
		t.Fatalf("unexpected one-sided replay: %+v", replayOneSided)
	}

	matched, err := env.svc.SubmitLike(ctx, u2, u1)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	before := len(env.notifier.snapshot())

	for _, sender := range []int64{u2, u1, u2} {
		again, err := env.svc.SubmitLike(ctx, sender, model.NewPair(u1, u2).Other(sender))
		if err != nil {
			t.Fatalf("replay from %d: %v", sender, err)
		}
		if !again.Matched || again.ConversationCreated || again.ConversationID != matched.ConversationID {
			t.Fatalf("replay must return existing conversation %s, got %+v", matched.ConversationID, again)
		}
	}

	if env.store.ConversationCount() != 1 {
		t.Fatalf("expected exactly one conversation, got %d", env.store.ConversationCount())
	}
	if env.store.LikeCount() != 2 {
		t.Fatalf("expected two like edges, got %d", env.store.LikeCount())
	}
	if after := len(env.notifier.snapshot()); after != before {
		t.Fatalf("replays must not notify, got %d new events", after-before)
	}
}

func TestLikeValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	u1 := env.user("u1")

	tests := []struct {
		name     string
		sender   int64
		receiver int64
		want     error
	}{
		{name: "self like", sender: u1, receiver: u1, want: apperr.ErrValidation},
		{name: "non positive receiver", sender: u1, receiver: -1, want: apperr.ErrValidation},
		{name: "unknown receiver", sender: u1, receiver: 999, want: apperr.ErrNotFound},
		{name: "unknown sender", sender: 999, receiver: u1, want: apperr.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.SubmitLike(context.Background(), tc.sender, tc.receiver)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if env.store.LikeCount() != 0 || env.store.ConversationCount() != 0 || len(env.notifier.snapshot()) != 0 {
		t.Fatalf("rejected likes must leave no trace")
	}
}

func TestConcurrentMutualLikesCreateOneConversation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	const pairs = 25
	type submission struct {
		res Result
		err error
	}
	results := make([][2]submission, pairs)
	users := make([][2]int64, pairs)
	for i := range users {
		users[i] = [2]int64{env.user(fmt.Sprintf("a%d", i)), env.user(fmt.Sprintf("b%d", i))}
	}

	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		for dir := 0; dir < 2; dir++ {
			wg.Add(1)
			go func(i, dir int) {
				defer wg.Done()
				sender, receiver := users[i][dir], users[i][1-dir]
				res, err := env.svc.SubmitLike(ctx, sender, receiver)
				results[i][dir] = submission{res: res, err: err}
			}(i, dir)
		}
	}
	wg.Wait()

	for i, pair := range results {
		created := 0
		matched := 0
		for _, sub := range pair {
			if sub.err != nil {
				t.Fatalf("pair %d: submit like: %v", i, sub.err)
			}
			if sub.res.ConversationCreated {
				created++
			}
			if sub.res.Matched {
				matched++
			}
		}
		if created != 1 || matched != 1 {
			t.Fatalf("pair %d: expected exactly one matching submission, got created=%d matched=%d", i, created, matched)
		}
	}

	if env.store.ConversationCount() != pairs {
		t.Fatalf("expected %d conversations, got %d", pairs, env.store.ConversationCount())
	}
	if got := env.notifier.count(model.EventConversationCreated); got != 2*pairs {
		t.Fatalf("expected %d conversation_created events, got %d", 2*pairs, got)
	}
	if got := env.notifier.count(model.EventLikeReceived); got != pairs {
		t.Fatalf("expected %d like_received events, got %d", pairs, got)
	}
}

func TestConcurrentDuplicateCompletingLike(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u1, u2 := env.user("u1"), env.user("u2")

	if _, err := env.svc.SubmitLike(ctx, u1, u2); err != nil {
		t.Fatalf("first like: %v", err)
	}

	const workers = 8
	ids := make(chan uuid.UUID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.svc.SubmitLike(ctx, u2, u1)
			if err != nil {
				t.Errorf("completing like: %v", err)
				return
			}
			ids <- res.ConversationID
		}()
	}
	wg.Wait()
	close(ids)

	var first uuid.UUID
	for id := range ids {
		if first == uuid.Nil {
			first = id
		}
		if id != first {
			t.Fatalf("all submissions must see the same conversation, got %s and %s", first, id)
		}
	}
	if env.store.ConversationCount() != 1 {
		t.Fatalf("expected one conversation, got %d", env.store.ConversationCount())
	}
	if got := env.notifier.count(model.EventConversationCreated); got != 2 {
		t.Fatalf("expected exactly two conversation_created events, got %d", got)
	}
}

func TestProvisionConflictIsRetriedOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u1, u2 := env.user("u1"), env.user("u2")

	conflicts := 1
	env.store.ConversationCreate = func(model.Pair) error {
		if conflicts > 0 {
			conflicts--
			return pgrepo.ErrConversationExists
		}
		return nil
	}

	if _, err := env.svc.SubmitLike(ctx, u1, u2); err != nil {
		t.Fatalf("first like: %v", err)
	}
	res, err := env.svc.SubmitLike(ctx, u2, u1)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if !res.ConversationCreated || !res.LikeCreated {
		t.Fatalf("retried submission must report a fresh like and conversation, got %+v", res)
	}
	if _, rollbacks := env.store.Stats(); rollbacks != 1 {
		t.Fatalf("expected the conflicting attempt to roll back, got %d rollbacks", rollbacks)
	}
}

func TestRepeatedConflictSurfacesDependencyFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u1, u2 := env.user("u1"), env.user("u2")

	if _, err := env.svc.SubmitLike(ctx, u1, u2); err != nil {
		t.Fatalf("first like: %v", err)
	}
	env.store.ConversationCreate = func(model.Pair) error { return pgrepo.ErrConversationExists }

	_, err := env.svc.SubmitLike(ctx, u2, u1)
	if !errors.Is(err, apperr.ErrDependencyFailure) || errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected dependency failure without conflict, got %v", err)
	}
	assertNoPhantomMatch(t, env, u1, u2)

	env.store.ConversationCreate = nil
	res, err := env.svc.SubmitLike(ctx, u2, u1)
	if err != nil || !res.ConversationCreated {
		t.Fatalf("pair must stay retryable: res=%+v err=%v", res, err)
	}
}

func TestProvisionFailureLeavesNoPhantomMatch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u1, u2 := env.user("u1"), env.user("u2")

	if _, err := env.svc.SubmitLike(ctx, u1, u2); err != nil {
		t.Fatalf("first like: %v", err)
	}
	env.notifier.reset()
	env.store.ConversationCreate = func(model.Pair) error { return errors.New("connection refused") }

	_, err := env.svc.SubmitLike(ctx, u2, u1)
	if !errors.Is(err, apperr.ErrDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
	assertNoPhantomMatch(t, env, u1, u2)
	if len(env.notifier.snapshot()) != 0 {
		t.Fatalf("failed submission must not notify")
	}
}

func TestRateLimitedSender(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	env := newTestEnv(t, ratesvc.NewLimiter(redrepo.NewWindowRepo(client), 0, 1))
	ctx := context.Background()
	u1, u2, u3 := env.user("u1"), env.user("u2"), env.user("u3")

	if _, err := env.svc.SubmitLike(ctx, u1, u2); err != nil {
		t.Fatalf("first like: %v", err)
	}
	_, err := env.svc.SubmitLike(ctx, u1, u3)
	tf, ok := apperr.IsTooFast(err)
	if !ok || tf.RetryAfter() <= 0 {
		t.Fatalf("expected TooFastError, got %v", err)
	}
	if env.store.LikeCount() != 1 {
		t.Fatalf("throttled like must not be stored")
	}
}

func TestRejectedLikeDoesNotUseQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	env := newTestEnv(t, ratesvc.NewLimiter(redrepo.NewWindowRepo(client), 0, 1))
	ctx := context.Background()
	u1, u2 := env.user("u1"), env.user("u2")

	if _, err := env.svc.SubmitLike(ctx, u1, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown receiver, got %v", err)
	}
	if _, err := env.svc.SubmitLike(ctx, u1, u2); err != nil {
		t.Fatalf("like after rejected submission must not be throttled: %v", err)
	}
}

func TestReplayedLikeDoesNotUseQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	env := newTestEnv(t, ratesvc.NewLimiter(redrepo.NewWindowRepo(client), 0, 2))
	ctx := context.Background()
	u1, u2, u3 := env.user("u1"), env.user("u2"), env.user("u3")

	for i := 0; i < 3; i++ {
		if _, err := env.svc.SubmitLike(ctx, u1, u2); err != nil {
			t.Fatalf("like #%d: %v", i+1, err)
		}
	}
	if _, err := env.svc.SubmitLike(ctx, u1, u3); err != nil {
		t.Fatalf("second distinct like must fit the window: %v", err)
	}
	if _, err := env.svc.SubmitLike(ctx, u2, u3); err != nil {
		t.Fatalf("other sender must not be limited: %v", err)
	}
	_, err := env.svc.SubmitLike(ctx, u1, env.user("u4"))
	if _, ok := apperr.IsTooFast(err); !ok {
		t.Fatalf("expected TooFastError after two new likes, got %v", err)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	env := newTestEnv(t, brokenLimiter{})
	u1, u2 := env.user("u1"), env.user("u2")

	if _, err := env.svc.SubmitLike(context.Background(), u1, u2); err != nil {
		t.Fatalf("limiter outage must not block likes: %v", err)
	}
}

func TestNotificationFailureDoesNotAffectResult(t *testing.T) {
	store := memory.New()
	env := newTestEnvWithNotifier(t, store, nil, notify.NewDispatcher(failingPublisher{}, notify.Config{}, nil))
	ctx := context.Background()
	u1, u2 := env.user("u1"), env.user("u2")

	if _, err := env.svc.SubmitLike(ctx, u1, u2); err != nil {
		t.Fatalf("first like: %v", err)
	}
	res, err := env.svc.SubmitLike(ctx, u2, u1)
	if err != nil || !res.ConversationCreated {
		t.Fatalf("push outage must not fail the match: res=%+v err=%v", res, err)
	}
	if store.ConversationCount() != 1 {
		t.Fatalf("conversation must be committed despite push failure")
	}
}

func assertNoPhantomMatch(t *testing.T, env *testEnv, u1, u2 int64) {
	t.Helper()
	if env.store.ConversationCount() != 0 {
		t.Fatalf("expected no conversation, got %d", env.store.ConversationCount())
	}
	matches, err := env.ledger.Matches(context.Background(), u1, 0)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no recorded match, got %+v", matches)
	}
	if ok, _ := env.ledger.HasLiked(context.Background(), nil, u2, u1); ok {
		t.Fatalf("completing like must roll back with the failed transaction")
	}
}

type testEnv struct {
	t             *testing.T
	store         *memory.Store
	ledger        *likes.Ledger
	conversations *conversations.Service
	notifier      *recordingNotifier
	svc           *Service
}

func newTestEnv(t *testing.T, limiter RateLimiter) *testEnv {
	t.Helper()
	return newTestEnvWithNotifier(t, memory.New(), limiter, &recordingNotifier{})
}

func newTestEnvWithNotifier(t *testing.T, store *memory.Store, limiter RateLimiter, notifier Notifier) *testEnv {
	t.Helper()

	ledger := likes.NewLedger(likes.Dependencies{Likes: store.Likes(), Users: store.Users()}, likes.Config{})
	convs := conversations.NewService(conversations.Dependencies{
		Conversations: store.Conversations(),
		Messages:      store.Messages(),
		Users:         store.Users(),
	}, conversations.Config{})

	recorder, ok := notifier.(*recordingNotifier)
	if !ok {
		recorder = &recordingNotifier{}
	}

	return &testEnv{
		t:             t,
		store:         store,
		ledger:        ledger,
		conversations: convs,
		notifier:      recorder,
		svc: NewService(Dependencies{
			Tx:            store,
			Ledger:        ledger,
			Conversations: convs,
			Notifier:      notifier,
			Limiter:       limiter,
		}, Config{ProvisionRetries: 1}),
	}
}

func (e *testEnv) user(name string) int64 {
	e.t.Helper()
	u, err := e.store.Users().Create(context.Background(), pgrepo.CreateUserParams{Email: name + "@example.com", Name: name})
	if err != nil {
		e.t.Fatalf("create user %s: %v", name, err)
	}
	return u.ID
}

type event struct {
	kind           string
	userID         int64
	conversationID uuid.UUID
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) NotifyLikeReceived(_ context.Context, receiverID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: model.EventLikeReceived, userID: receiverID})
}

func (n *recordingNotifier) NotifyConversationCreated(_ context.Context, userID int64, conversationID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: model.EventConversationCreated, userID: userID, conversationID: conversationID})
}

func (n *recordingNotifier) snapshot() []event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]event(nil), n.events...)
}

func (n *recordingNotifier) count(kind string) int {
	total := 0
	for _, e := range n.snapshot() {
		if e.kind == kind {
			total++
		}
	}
	return total
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

type brokenLimiter struct{}

func (brokenLimiter) RetryAfterLike(context.Context, int64) (int64, error) {
	return 0, errors.New("redis unavailable")
}

func (brokenLimiter) RecordLike(context.Context, int64) error {
	return errors.New("redis unavailable")
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, string, any) error {
	return errors.New("push down")
}

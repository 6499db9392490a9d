package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ivankudzin/matchapp/internal/domain/model"
	"github.com/ivankudzin/matchapp/internal/infra/metrics"
	"github.com/ivankudzin/matchapp/internal/infra/pubsub"
)

func TestNotifyUsesPerUserChannels(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, Config{}, nil)
	convID := uuid.New()

	d.NotifyLikeReceived(context.Background(), 7)
	d.NotifyConversationCreated(context.Background(), 8, convID)
	d.NotifyMessageReceived(context.Background(), 9, convID, 41)

	calls := pub.snapshot()
	if len(calls) != 3 {
		t.Fatalf("expected 3 publishes, got %d", len(calls))
	}

	want := []struct {
		channel string
		event   string
	}{
		{"users.7", model.EventLikeReceived},
		{"users.8", model.EventConversationCreated},
		{"users.9", model.EventMessageReceived},
	}
	for i, w := range want {
		if calls[i].channel != w.channel || calls[i].event != w.event {
			t.Fatalf("call %d: got %s/%s want %s/%s", i, calls[i].channel, calls[i].event, w.channel, w.event)
		}
	}

	created, ok := calls[1].payload.(model.ConversationCreatedPayload)
	if !ok || created.ConversationID != convID.String() {
		t.Fatalf("unexpected conversation payload: %#v", calls[1].payload)
	}
}

func TestNotifyFailureIsSwallowedAndLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pub := &recordingPublisher{err: errors.New("push down")}
	d := NewDispatcher(pub, Config{FailureThreshold: 100}, zap.New(core))

	before := testutil.ToFloat64(metrics.Notifications.WithLabelValues(model.EventLikeReceived, statusFailed))
	d.NotifyLikeReceived(context.Background(), 3)
	after := testutil.ToFloat64(metrics.Notifications.WithLabelValues(model.EventLikeReceived, statusFailed))

	if after-before != 1 {
		t.Fatalf("expected failed notification counter to grow by 1, got %v", after-before)
	}
	if logs.FilterMessage("notification delivery failed").Len() != 1 {
		t.Fatalf("expected delivery failure to be logged")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("push down")}
	d := NewDispatcher(pub, Config{FailureThreshold: 2, BreakerTimeout: time.Minute}, nil)

	for i := 0; i < 5; i++ {
		d.NotifyLikeReceived(context.Background(), 3)
	}

	if got := len(pub.snapshot()); got != 2 {
		t.Fatalf("expected breaker to stop publishing after 2 failures, got %d attempts", got)
	}
}

func TestPublishIgnoresCallerCancellation(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.NotifyLikeReceived(ctx, 5)

	calls := pub.snapshot()
	if len(calls) != 1 || calls[0].ctxErr != nil {
		t.Fatalf("expected live publish context, got %+v", calls)
	}
}

func TestNotifyOverRedisTransport(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	sub, err := pubsub.NewRedisSubscriber(client).Subscribe(context.Background(), "users.12")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Close() }()

	d := NewDispatcher(pubsub.NewRedisPublisher(client), Config{}, nil)
	d.NotifyLikeReceived(context.Background(), 12)

	select {
	case raw := <-sub.C:
		var env struct {
			Event   string                    `json:"event"`
			Payload model.LikeReceivedPayload `json:"payload"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Event != model.EventLikeReceived || env.Payload.Message != likeReceivedMessage {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for notification")
	}
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	d.NotifyLikeReceived(context.Background(), 1)
	NewDispatcher(nil, Config{}, nil).NotifyLikeReceived(context.Background(), 1)
}

type publishCall struct {
	channel string
	event   string
	payload any
	ctxErr  error
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{channel: channel, event: event, payload: payload, ctxErr: ctx.Err()})
	return p.err
}

func (p *recordingPublisher) snapshot() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

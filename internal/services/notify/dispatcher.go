// Package notify pushes pipeline events to per-user channels. Delivery is
// best-effort: failures are logged and counted but never returned.
package notify

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchapp/internal/domain/model"
	"github.com/ivankudzin/matchapp/internal/infra/logger"
	"github.com/ivankudzin/matchapp/internal/infra/metrics"
)

const likeReceivedMessage = "You have a new like"

const (
	statusSent        = "sent"
	statusFailed      = "failed"
	statusBreakerOpen = "breaker_open"
)

type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type Config struct {
	ChannelPrefix    string
	PublishTimeout   time.Duration
	FailureThreshold uint32
	BreakerInterval  time.Duration
	BreakerTimeout   time.Duration
}

type Dispatcher struct {
	pub     Publisher
	cfg     Config
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger
}

func NewDispatcher(pub Publisher, cfg Config, log *zap.Logger) *Dispatcher {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "users."
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	log = logger.OrNop(log)

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notify-publisher",
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("notification breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Dispatcher{
		pub:     pub,
		cfg:     cfg,
		breaker: breaker,
		log:     log,
	}
}

// Channel is the logical channel a user's client listens on.
func (d *Dispatcher) Channel(userID int64) string {
	return d.cfg.ChannelPrefix + strconv.FormatInt(userID, 10)
}

func (d *Dispatcher) NotifyLikeReceived(ctx context.Context, receiverID int64) {
	d.dispatch(ctx, receiverID, model.EventLikeReceived, model.LikeReceivedPayload{
		Message: likeReceivedMessage,
	})
}

func (d *Dispatcher) NotifyConversationCreated(ctx context.Context, userID int64, conversationID uuid.UUID) {
	d.dispatch(ctx, userID, model.EventConversationCreated, model.ConversationCreatedPayload{
		ConversationID: conversationID.String(),
	})
}

func (d *Dispatcher) NotifyMessageReceived(ctx context.Context, userID int64, conversationID uuid.UUID, messageID int64) {
	d.dispatch(ctx, userID, model.EventMessageReceived, model.MessageReceivedPayload{
		ConversationID: conversationID.String(),
		MessageID:      messageID,
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, userID int64, event string, payload any) {
	if d == nil || d.pub == nil {
		return
	}

	channel := d.Channel(userID)

	// The caller's request may already be finishing; keep its values but not
	// its cancellation.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.PublishTimeout)
	defer cancel()

	_, err := d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, d.pub.Publish(pubCtx, channel, event, payload)
	})
	switch {
	case err == nil:
		metrics.RecordNotification(event, statusSent)
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordNotification(event, statusBreakerOpen)
		d.log.Warn("notification skipped, publisher breaker open",
			zap.String("event", event),
			zap.String("channel", channel),
		)
	default:
		metrics.RecordNotification(event, statusFailed)
		d.log.Error("notification delivery failed",
			zap.String("event", event),
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}

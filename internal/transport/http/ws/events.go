// Package ws relays a user's notification channel to a websocket client.
package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchapp/internal/infra/logger"
	"github.com/ivankudzin/matchapp/internal/infra/metrics"
	"github.com/ivankudzin/matchapp/internal/infra/pubsub"
	httperrors "github.com/ivankudzin/matchapp/internal/transport/http/errors"
)

const (
	writeWait      = 10 * time.Second
	defaultPing    = 30 * time.Second
	maxInboundSize = 512
)

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (*pubsub.Subscription, error)
}

type ChannelNamer interface {
	Channel(userID int64) string
}

type EventsHandler struct {
	subscriber Subscriber
	channels   ChannelNamer
	log        *zap.Logger
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
}

func NewEventsHandler(subscriber Subscriber, channels ChannelNamer, log *zap.Logger) *EventsHandler {
	return &EventsHandler{
		subscriber: subscriber,
		channels:   channels,
		log:        logger.OrNop(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingPeriod: defaultPing,
	}
}

// Handle serves GET /users/{id}/events. Every envelope published on the
// user's channel is forwarded as one text frame.
func (h *EventsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || userID <= 0 {
		httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: "VALIDATION_ERROR", Message: "invalid user id"})
		return
	}
	if h.subscriber == nil || h.channels == nil {
		httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: "EVENTS_UNAVAILABLE", Message: "event stream is unavailable"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	channel := h.channels.Channel(userID)
	sub, err := h.subscriber.Subscribe(ctx, channel)
	if err != nil {
		h.log.Warn("event subscription failed", zap.String("channel", channel), zap.Error(err))
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{Code: "DEPENDENCY_UNAVAILABLE", Message: "event stream is unavailable"})
		return
	}
	defer func() { _ = sub.Close() }()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.WebsocketSessions.Inc()
	defer metrics.WebsocketSessions.Dec()

	h.log.Debug("event stream opened", zap.Int64("user_id", userID))
	h.pump(conn, sub, readLoop(conn, h.pingPeriod))
	h.log.Debug("event stream closed", zap.Int64("user_id", userID))
}

// readLoop drains client frames so control frames are processed. The
// returned channel closes when the client goes away.
func readLoop(conn *websocket.Conn, pingPeriod time.Duration) <-chan struct{} {
	done := make(chan struct{})
	pongWait := pingPeriod + writeWait

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func (h *EventsHandler) pump(conn *websocket.Conn, sub *pubsub.Subscription, clientGone <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case payload, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream ended"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package pubsub carries user-channel events over Redis pub/sub or NATS.
package pubsub

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/matchapp/internal/domain/model"
)

// Encode wraps an event into the JSON envelope sent on every user channel.
func Encode(event string, payload any, now time.Time) ([]byte, error) {
	if strings.TrimSpace(event) == "" {
		return nil, fmt.Errorf("event name is required")
	}
	data, err := json.Marshal(model.Envelope{
		ID:      uuid.NewString(),
		Event:   event,
		Payload: payload,
		SentAt:  now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Subscription streams raw envelopes received on one channel until closed.
type Subscription struct {
	C <-chan []byte

	closeFn func() error
	once    sync.Once
	err     error
}

func (s *Subscription) Close() error {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.err = s.closeFn()
		}
	})
	return s.err
}

package pubsub

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NATSOptions struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// ConnectNATS opens the shared NATS connection used by publisher and subscribers.
func ConnectNATS(opts NATSOptions, log *zap.Logger) (*natsgo.Conn, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	nc, err := natsgo.Connect(opts.URL,
		natsgo.Name(opts.Name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(opts.MaxReconnects),
		natsgo.ReconnectWait(opts.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("nats async error", zap.String("subject", subject), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

type NATSPublisher struct {
	conn *natsgo.Conn
	now  func() time.Time
}

func NewNATSPublisher(conn *natsgo.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn, now: time.Now}
}

func (p *NATSPublisher) Publish(ctx context.Context, subject, event string, payload any) error {
	if p.conn == nil {
		return fmt.Errorf("nats connection is nil")
	}
	if subject == "" {
		return fmt.Errorf("subject is required")
	}

	data, err := Encode(event, payload, p.now())
	if err != nil {
		return err
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush %s: %w", subject, err)
	}
	return nil
}

type NATSSubscriber struct {
	conn *natsgo.Conn
}

func NewNATSSubscriber(conn *natsgo.Conn) *NATSSubscriber {
	return &NATSSubscriber{conn: conn}
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, subject string) (*Subscription, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("nats connection is nil")
	}
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}

	in := make(chan *natsgo.Msg, 64)
	sub, err := s.conn.ChanSubscribe(subject, in)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats subscribe flush %s: %w", subject, err)
	}

	out := make(chan []byte, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg := <-in:
				select {
				case out <- msg.Data:
				case <-done:
					return
				}
			}
		}
	}()

	return &Subscription{
		C: out,
		closeFn: func() error {
			err := sub.Unsubscribe()
			close(done)
			return err
		},
	}, nil
}

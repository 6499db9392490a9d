package pubsub

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type RedisPublisher struct {
	client *goredis.Client
	now    func() time.Time
}

func NewRedisPublisher(client *goredis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, now: time.Now}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	if p.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if channel == "" {
		return fmt.Errorf("channel is required")
	}

	data, err := Encode(event, payload, p.now())
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

type RedisSubscriber struct {
	client *goredis.Client
}

func NewRedisSubscriber(client *goredis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if channel == "" {
		return nil, fmt.Errorf("channel is required")
	}

	ps := s.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	in := ps.Channel()
	out := make(chan []byte, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				}
			}
		}
	}()

	return &Subscription{
		C: out,
		closeFn: func() error {
			close(done)
			return ps.Close()
		},
	}, nil
}

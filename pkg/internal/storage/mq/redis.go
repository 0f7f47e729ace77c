//go:build !no_redis

package mq

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/vistoria/pkg/configs"
)

// DefaultChannelBufferSize 默认通道缓冲区大小.
const DefaultChannelBufferSize = 100

// redisEnvelope 保留 watermill 消息的 UUID 与 metadata.
type redisEnvelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPublisher Redis Pub/Sub Publisher.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber Redis Pub/Sub Subscriber；每次 Subscribe 使用独立的 PubSub.
type RedisSubscriber struct {
	client  *redis.Client
	subs    []*redis.PubSub
	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	logger  watermill.LoggerAdapter
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

func redisFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	newClient := func() *redis.Client {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	pubClient := newClient()
	if err := pubClient.Ping(ctx).Err(); err != nil {
		_ = pubClient.Close()

		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	pub := &RedisPublisher{client: pubClient}
	sub := &RedisSubscriber{client: newClient(), closeCh: make(chan struct{}), logger: logger}

	return pub, sub, nil
}

// Publish 实现 Publisher 接口.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		data, err := sonic.Marshal(redisEnvelope{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}

		if err := p.client.Publish(msg.Context(), topic, data).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close 实现 Publisher 接口.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Subscribe 实现 Subscriber 接口.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("subscriber closed")
	}

	ps := s.client.Subscribe(ctx, topic)
	s.subs = append(s.subs, ps)

	out := make(chan *message.Message, DefaultChannelBufferSize)

	go func() {
		defer close(out)

		in := ps.Channel()

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}

				var env redisEnvelope
				if err := sonic.UnmarshalString(raw.Payload, &env); err != nil {
					s.logger.Error("drop malformed redis message", err, watermill.LogFields{"topic": topic})

					continue
				}

				msg := message.NewMessage(env.UUID, env.Payload)
				for k, v := range env.Metadata {
					msg.Metadata.Set(k, v)
				}

				select {
				case out <- msg:
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}

				// Pub/Sub 不支持重投，等待处理结果仅用于背压
				select {
				case <-msg.Acked():
				case <-msg.Nacked():
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close 实现 Subscriber 接口.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	close(s.closeCh)

	for _, ps := range s.subs {
		_ = ps.Close()
	}

	return s.client.Close()
}

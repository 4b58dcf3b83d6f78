package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/threadlog/internal/logging"
)

const redisPublishTimeout = 2 * time.Second

// RedisRelay publishes change events on a Redis channel so every server instance
// sees them, and feeds what it receives into the local Hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logging.Named(logger, "realtime"),
	}
}

// Publish sends ev through Redis. When Redis is unreachable the event is still
// delivered to local subscribers.
func (r *RedisRelay) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("failed to encode change event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("redis publish failed, delivering locally",
			zap.String("channel", r.channel),
			zap.String("blog_id", ev.BlogID),
			zap.Error(err))
		r.hub.Publish(ev)
	}
}

// Run relays channel messages into the hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// 等待订阅确认，连接失败时立即返回
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				r.logger.Warn("dropping malformed change event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			r.hub.Publish(ev)
		}
	}
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}

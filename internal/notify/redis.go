package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBus shares notifications between gateway instances through a Redis
// pub/sub channel.
type RedisBus struct {
	rdb     redis.UniversalClient
	channel string
}

func NewRedisBus(rdb redis.UniversalClient, channel string) *RedisBus {
	if channel == "" {
		channel = "arandu:notifications"
	}
	return &RedisBus{rdb: rdb, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, n Notification) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis notification bus not initialized")
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe blocks until ctx ends or the subscription closes.
func (b *RedisBus) Subscribe(ctx context.Context, onMsg func(Notification)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis notification bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok || m == nil {
				return nil
			}
			var n Notification
			if err := json.Unmarshal([]byte(m.Payload), &n); err != nil {
				slog.Warn("bad notification payload", "error", err)
				continue
			}
			onMsg(n)
		}
	}
}

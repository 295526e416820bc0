package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// RedisBus implements Bus on Redis Pub/Sub, one channel per recipient user.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisBus creates a Redis-backed bus.
func NewRedisBus(client *redis.Client, logger zerolog.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger}
}

func eventChannel(userID uuid.UUID) string {
	return fmt.Sprintf("events:messages:%s", userID)
}

// Publish delivers the event to both participants' channels.
func (b *RedisBus) Publish(ctx context.Context, ev models.MessageEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	for _, userID := range []uuid.UUID{ev.InvestorUserID, ev.AgentUserID} {
		if err := b.client.Publish(ctx, eventChannel(userID), data).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe returns a channel of events addressed to userID until ctx is
// canceled.
func (b *RedisBus) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan models.MessageEvent, error) {
	sub := b.client.Subscribe(ctx, eventChannel(userID))

	// Force the subscription to be established before returning so a
	// publish immediately after Subscribe is not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan models.MessageEvent, 16)

	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.MessageEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn().Err(err).Msg("dropping malformed message event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

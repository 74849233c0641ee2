// Package relay carries hub events between instances over Redis pub/sub.
// Every instance publishes to the channel and forwards whatever it receives
// to its local hub, including its own events.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-groupchat/internal/ws"
)

// Local is the hub side of the relay.
type Local interface {
	PublishRaw(ctx context.Context, room string, data []byte, exceptConnID string) error
}

type frame struct {
	Room   string          `json:"room"`
	Except string          `json:"except,omitempty"`
	Data   json.RawMessage `json:"data"`
}

type Redis struct {
	client  *redis.Client
	channel string
	local   Local
	log     *slog.Logger
}

func NewRedis(client *redis.Client, channel string, local Local, log *slog.Logger) *Redis {
	return &Redis{client: client, channel: channel, local: local, log: log}
}

func (r *Redis) Publish(ctx context.Context, room, event string, payload any) error {
	return r.PublishExcept(ctx, room, event, payload, "")
}

func (r *Redis) PublishExcept(ctx context.Context, room, event string, payload any, exceptConnID string) error {
	const op = "relay.Redis.Publish"

	data, err := ws.Encode(room, event, payload)
	if err != nil {
		return fmt.Errorf("%s: encode %s: %w", op, event, err)
	}

	msg, err := json.Marshal(frame{Room: room, Except: exceptConnID, Data: data})
	if err != nil {
		return fmt.Errorf("%s: encode frame: %w", op, err)
	}

	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Run subscribes to the channel and feeds the local hub until ctx is done.
// ready, if not nil, is closed once the subscription is active.
func (r *Redis) Run(ctx context.Context, ready chan<- struct{}) error {
	const op = "relay.Redis.Run"

	log := r.log.With(slog.String("op", op), slog.String("channel", r.channel))

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("%s: subscribe: %w", op, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var f frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil || f.Room == "" {
				log.Warn("dropping malformed frame", sl.Err(err))
				continue
			}

			if err := r.local.PublishRaw(ctx, f.Room, f.Data, f.Except); err != nil {
				log.Error("failed to forward frame", slog.String("room", f.Room), sl.Err(err))
			}
		}
	}
}

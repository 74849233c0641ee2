package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/hodatay-groupchat/internal/ws"
	"github.com/kgellert/hodatay-groupchat/internal/ws/hub"
	"github.com/kgellert/hodatay-groupchat/internal/ws/relay"
)

type instance struct {
	hub   *hub.Hub
	relay *relay.Redis
}

func startInstance(t *testing.T, ctx context.Context, addr string) instance {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	h := hub.NewHub(log)
	go h.Run(ctx)

	rl := relay.NewRedis(client, "groupchat:events", h, log)
	ready := make(chan struct{})
	go func() { _ = rl.Run(ctx, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}
	return instance{hub: h, relay: rl}
}

func receive(t *testing.T, c *hub.Connection) ws.Envelope {
	t.Helper()
	select {
	case data := <-c.Outbound():
		var env ws.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
	return ws.Envelope{}
}

func TestRedis_Relay(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a := startInstance(t, ctx, mr.Addr())
	b := startInstance(t, ctx, mr.Addr())

	alice := hub.NewConnection(nil, "alice", 8)
	bob := hub.NewConnection(nil, "bob", 8)
	require.NoError(t, a.hub.Join(ctx, alice, ws.GroupRoom("g1")))
	require.NoError(t, b.hub.Join(ctx, bob, ws.GroupRoom("g1")))

	t.Run("should reach connections on every instance", func(t *testing.T) {
		r := require.New(t)

		r.NoError(a.relay.Publish(ctx, ws.GroupRoom("g1"), ws.EventNewMessage, map[string]string{"id": "m1"}))

		for _, c := range []*hub.Connection{alice, bob} {
			env := receive(t, c)
			r.Equal(ws.EventNewMessage, env.Event)
			r.Equal("group:g1", env.Room)
			r.JSONEq(`{"id":"m1"}`, string(env.Payload))
		}
	})

	t.Run("should honour the excluded connection across instances", func(t *testing.T) {
		r := require.New(t)

		r.NoError(b.relay.PublishExcept(ctx, ws.GroupRoom("g1"), ws.EventTyping, ws.TypingPayload{UserID: "bob"}, bob.ID()))
		r.NoError(b.relay.Publish(ctx, ws.GroupRoom("g1"), ws.EventNewMessage, nil))

		r.Equal(ws.EventTyping, receive(t, alice).Event)
		r.Equal(ws.EventNewMessage, receive(t, alice).Event)
		r.Equal(ws.EventNewMessage, receive(t, bob).Event)
	})
}

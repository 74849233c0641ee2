package hub_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kgellert/hodatay-groupchat/internal/ws"
	"github.com/kgellert/hodatay-groupchat/internal/ws/hub"
)

func startHub(t *testing.T) *hub.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func connect(t *testing.T, h *hub.Hub, userID string, buffer int) *hub.Connection {
	t.Helper()
	c := hub.NewConnection(nil, userID, buffer)
	require.NoError(t, h.Register(context.Background(), c))
	return c
}

func next(t *testing.T, c *hub.Connection) ws.Envelope {
	t.Helper()
	select {
	case frame, ok := <-c.Outbound():
		require.True(t, ok, "connection closed")
		var env ws.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
	return ws.Envelope{}
}

func silent(t *testing.T, c *hub.Connection) {
	t.Helper()
	select {
	case frame := <-c.Outbound():
		t.Fatalf("unexpected frame %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("should deliver only to members of the room", func(t *testing.T) {
		r := require.New(t)
		h := startHub(t)
		alice := connect(t, h, "alice", 8)
		bob := connect(t, h, "bob", 8)
		carol := connect(t, h, "carol", 8)

		r.NoError(h.Join(ctx, alice, ws.GroupRoom("g1")))
		r.NoError(h.Join(ctx, bob, ws.GroupRoom("g1"), ws.RegionRoom("north")))
		r.NoError(h.Join(ctx, carol, ws.GroupRoom("g2")))

		r.NoError(h.Publish(ctx, ws.GroupRoom("g1"), ws.EventNewMessage, map[string]string{"id": "m1"}))

		for _, c := range []*hub.Connection{alice, bob} {
			env := next(t, c)
			r.Equal(ws.EventNewMessage, env.Event)
			r.Equal("group:g1", env.Room)
			r.JSONEq(`{"id":"m1"}`, string(env.Payload))
		}
		silent(t, carol)

		r.NoError(h.Publish(ctx, ws.RegionRoom("north"), ws.EventRiskUpdate, map[string]int{"score": 70}))
		r.Equal(ws.EventRiskUpdate, next(t, bob).Event)
		silent(t, alice)
	})

	t.Run("should keep publish order within a room", func(t *testing.T) {
		r := require.New(t)
		h := startHub(t)
		alice := connect(t, h, "alice", 64)
		r.NoError(h.Join(ctx, alice, "group:g1"))

		for i := range 20 {
			r.NoError(h.Publish(ctx, "group:g1", ws.EventNewMessage, i))
		}
		for i := range 20 {
			var got int
			r.NoError(json.Unmarshal(next(t, alice).Payload, &got))
			r.Equal(i, got)
		}
	})

	t.Run("should skip the excluded connection", func(t *testing.T) {
		r := require.New(t)
		h := startHub(t)
		alice := connect(t, h, "alice", 8)
		bob := connect(t, h, "bob", 8)
		r.NoError(h.Join(ctx, alice, "group:g1"))
		r.NoError(h.Join(ctx, bob, "group:g1"))

		r.NoError(h.PublishExcept(ctx, "group:g1", ws.EventTyping, ws.TypingPayload{UserID: "alice"}, alice.ID()))

		r.Equal(ws.EventTyping, next(t, bob).Event)
		silent(t, alice)
	})

	t.Run("should drop events for a full queue without blocking others", func(t *testing.T) {
		r := require.New(t)
		h := startHub(t)
		slow := connect(t, h, "slow", 1)
		fast := connect(t, h, "fast", 8)
		r.NoError(h.Join(ctx, slow, "group:g1"))
		r.NoError(h.Join(ctx, fast, "group:g1"))

		for i := range 3 {
			r.NoError(h.Publish(ctx, "group:g1", ws.EventNewMessage, i))
		}
		for range 3 {
			next(t, fast)
		}

		next(t, slow)
		silent(t, slow)
	})

	t.Run("should accept publishes to empty rooms", func(t *testing.T) {
		h := startHub(t)
		require.NoError(t, h.Publish(ctx, "group:nobody", ws.EventNewMessage, nil))
	})
}

func TestHub_Membership(t *testing.T) {
	ctx := context.Background()

	t.Run("should stop delivery after leave", func(t *testing.T) {
		r := require.New(t)
		h := startHub(t)
		alice := connect(t, h, "alice", 8)
		r.NoError(h.Join(ctx, alice, "group:g1"))
		r.NoError(h.Leave(ctx, alice, "group:g1"))

		r.NoError(h.Publish(ctx, "group:g1", ws.EventNewMessage, nil))
		silent(t, alice)

		n, err := h.Members(ctx, "group:g1")
		r.NoError(err)
		r.Zero(n)
	})

	t.Run("should tear down every room on unregister", func(t *testing.T) {
		r := require.New(t)
		h := startHub(t)
		alice := connect(t, h, "alice", 8)
		r.NoError(h.Join(ctx, alice, "group:g1", "region:north"))

		n, err := h.Members(ctx, "region:north")
		r.NoError(err)
		r.Equal(1, n)

		r.NoError(h.Unregister(ctx, alice))

		for _, room := range []string{"group:g1", "region:north"} {
			n, err := h.Members(ctx, room)
			r.NoError(err)
			r.Zero(n)
		}

		_, ok := <-alice.Outbound()
		r.False(ok)

		r.NoError(h.Join(ctx, alice, "group:g1"))
		n, err = h.Members(ctx, "group:g1")
		r.NoError(err)
		r.Zero(n)
	})

	t.Run("should reply to a single connection", func(t *testing.T) {
		r := require.New(t)
		h := startHub(t)
		alice := connect(t, h, "alice", 8)
		bob := connect(t, h, "bob", 8)
		r.NoError(h.Join(ctx, alice, "group:g1"))
		r.NoError(h.Join(ctx, bob, "group:g1"))

		r.NoError(h.Reply(ctx, alice, ws.EventJoined, ws.RoomPayload{Room: "group:g1", GroupID: "g1"}))

		env := next(t, alice)
		r.Equal(ws.EventJoined, env.Event)
		r.Empty(env.Room)
		silent(t, bob)
	})

	t.Run("should refuse commands once stopped", func(t *testing.T) {
		r := require.New(t)
		ctx, cancel := context.WithCancel(context.Background())
		h := hub.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
		done := make(chan struct{})
		go func() {
			h.Run(ctx)
			close(done)
		}()

		alice := hub.NewConnection(nil, "alice", 8)
		r.NoError(h.Join(context.Background(), alice, "group:g1"))

		cancel()
		<-done

		_, ok := <-alice.Outbound()
		r.False(ok)
		r.ErrorIs(h.Publish(context.Background(), "group:g1", ws.EventNewMessage, nil), hub.ErrClosed)
	})
}

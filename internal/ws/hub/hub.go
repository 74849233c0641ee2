// Package hub fans events out to the WebSocket connections joined to a room.
// All room state is owned by the goroutine running Run; every other method
// only sends commands to it.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kgellert/hodatay-groupchat/internal/ws"
)

var ErrClosed = errors.New("hub is closed")

type membershipCmd struct {
	c     *Connection
	rooms []string
	done  chan struct{}
}

type broadcastCmd struct {
	room    string
	payload []byte
	except  string
}

type directCmd struct {
	c       *Connection
	payload []byte
}

type membersQuery struct {
	room  string
	reply chan int
}

type Hub struct {
	log *slog.Logger

	register   chan membershipCmd
	unregister chan membershipCmd
	join       chan membershipCmd
	leave      chan membershipCmd
	broadcast  chan broadcastCmd
	direct     chan directCmd
	members    chan membersQuery
	done       chan struct{}

	rooms map[string]map[*Connection]struct{}
	conns map[*Connection]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		register:   make(chan membershipCmd, 64),
		unregister: make(chan membershipCmd, 64),
		join:       make(chan membershipCmd, 64),
		leave:      make(chan membershipCmd, 64),
		broadcast:  make(chan broadcastCmd, 256),
		direct:     make(chan directCmd, 256),
		members:    make(chan membersQuery),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Connection]struct{}),
		conns:      make(map[*Connection]struct{}),
	}
}

// Run processes commands until ctx is cancelled, then closes every
// connection queue.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.conns {
			c.CloseSend()
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-h.register:
			if !cmd.c.gone {
				h.conns[cmd.c] = struct{}{}
			}
			close(cmd.done)

		case cmd := <-h.unregister:
			h.drop(cmd.c)
			close(cmd.done)

		case cmd := <-h.join:
			if !cmd.c.gone {
				h.conns[cmd.c] = struct{}{}
				for _, room := range cmd.rooms {
					members := h.rooms[room]
					if members == nil {
						members = make(map[*Connection]struct{})
						h.rooms[room] = members
					}
					members[cmd.c] = struct{}{}
					cmd.c.rooms[room] = struct{}{}
				}
			}
			close(cmd.done)

		case cmd := <-h.leave:
			for _, room := range cmd.rooms {
				h.removeFromRoom(cmd.c, room)
			}
			close(cmd.done)

		case b := <-h.broadcast:
			for c := range h.rooms[b.room] {
				if b.except != "" && c.id == b.except {
					continue
				}
				if !c.Send(b.payload) {
					h.log.Debug("send queue full, event dropped",
						slog.String("room", b.room),
						slog.String("conn_id", c.id),
						slog.String("user_id", c.userID),
					)
				}
			}

		case d := <-h.direct:
			if !d.c.gone {
				d.c.Send(d.payload)
			}

		case q := <-h.members:
			q.reply <- len(h.rooms[q.room])
		}
	}
}

func (h *Hub) drop(c *Connection) {
	if c.gone {
		return
	}
	c.gone = true
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	delete(h.conns, c)
	c.CloseSend()
}

func (h *Hub) removeFromRoom(c *Connection, room string) {
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, c)
	delete(c.rooms, room)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) Register(ctx context.Context, c *Connection) error {
	return h.membership(ctx, h.register, c, nil)
}

// Unregister removes c from every room and closes its queue.
func (h *Hub) Unregister(ctx context.Context, c *Connection) error {
	return h.membership(ctx, h.unregister, c, nil)
}

// Join adds c to rooms. Events published after Join returns reach c.
func (h *Hub) Join(ctx context.Context, c *Connection, rooms ...string) error {
	return h.membership(ctx, h.join, c, rooms)
}

func (h *Hub) Leave(ctx context.Context, c *Connection, rooms ...string) error {
	return h.membership(ctx, h.leave, c, rooms)
}

func (h *Hub) membership(ctx context.Context, ch chan membershipCmd, c *Connection, rooms []string) error {
	if h.closed() {
		return ErrClosed
	}

	cmd := membershipCmd{c: c, rooms: rooms, done: make(chan struct{})}
	select {
	case ch <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}

	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
}

func (h *Hub) Publish(ctx context.Context, room, event string, payload any) error {
	return h.PublishExcept(ctx, room, event, payload, "")
}

func (h *Hub) PublishExcept(ctx context.Context, room, event string, payload any, exceptConnID string) error {
	data, err := ws.Encode(room, event, payload)
	if err != nil {
		return fmt.Errorf("hub: encode %s: %w", event, err)
	}
	return h.PublishRaw(ctx, room, data, exceptConnID)
}

// PublishRaw enqueues an already encoded envelope.
func (h *Hub) PublishRaw(ctx context.Context, room string, data []byte, exceptConnID string) error {
	if h.closed() {
		return ErrClosed
	}

	select {
	case h.broadcast <- broadcastCmd{room: room, payload: data, except: exceptConnID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
}

// Reply sends an event to c alone.
func (h *Hub) Reply(ctx context.Context, c *Connection, event string, payload any) error {
	data, err := ws.Encode("", event, payload)
	if err != nil {
		return fmt.Errorf("hub: encode %s: %w", event, err)
	}
	if h.closed() {
		return ErrClosed
	}

	select {
	case h.direct <- directCmd{c: c, payload: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
}

// Members returns how many connections are joined to room.
func (h *Hub) Members(ctx context.Context, room string) (int, error) {
	if h.closed() {
		return 0, ErrClosed
	}

	q := membersQuery{room: room, reply: make(chan int, 1)}
	select {
	case h.members <- q:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.done:
		return 0, ErrClosed
	}
	return <-q.reply, nil
}

func (h *Hub) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

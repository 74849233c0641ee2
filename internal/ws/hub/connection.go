package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const DefaultSendBuffer = 128

// Connection is one client socket. Its rooms and gone fields are owned by
// the hub goroutine.
type Connection struct {
	id        string
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	rooms     map[string]struct{}
	gone      bool
	closeOnce sync.Once
}

// NewConnection wraps conn. A nil conn is allowed for connections that are
// only read through Outbound.
func NewConnection(conn *websocket.Conn, userID string, buffer int) *Connection {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Connection{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, buffer),
		rooms:  make(map[string]struct{}),
	}
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }

// Outbound yields the frames queued for the client. It is closed when the
// hub drops the connection.
func (c *Connection) Outbound() <-chan []byte { return c.send }

// Send queues b without blocking. A full queue drops the frame.
func (c *Connection) Send(b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Connection) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

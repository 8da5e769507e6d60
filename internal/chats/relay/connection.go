package relay

import (
	"sync"
	"time"

	"carrental/pkg/model"
)

const (
	FrameJoinedChat     = "joined_chat"
	FrameReceiveMessage = "receive_message"
	FrameChatUpdated    = "chat_updated"
	FrameError          = "error"
	FramePong           = "pong"
)

// Frame is one outbound item on a connection queue.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type JoinedChat struct {
	RoomID  string               `json:"room_id"`
	History []*model.ChatMessage `json:"history"`
}

type ChatUpdated struct {
	RoomID      string    `json:"room_id"`
	LastMessage string    `json:"last_message"`
	Timestamp   time.Time `json:"timestamp"`
	From        string    `json:"from"`
	To          string    `json:"to"`
}

type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Connection is one live session of a user. Its outbound queue is bounded
// and is closed exactly once, by Disconnect.
type Connection struct {
	ID     string
	UserID string

	send chan Frame

	mu     sync.Mutex
	room   string
	peer   string
	closed bool
}

func newConnection(id, userID string, buffer int) *Connection {
	return &Connection{
		ID:     id,
		UserID: userID,
		send:   make(chan Frame, buffer),
	}
}

// Outbound is drained by the transport writer. It is closed on disconnect.
func (c *Connection) Outbound() <-chan Frame {
	return c.send
}

// Room returns the room the connection last joined.
func (c *Connection) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Push enqueues a frame without blocking. It returns false when the queue is
// full or closed.
func (c *Connection) Push(f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// joined returns the current room and the other participant in it.
func (c *Connection) joined() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.peer
}

func (c *Connection) setRoom(roomID, peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = roomID
	c.peer = peerID
}

func (c *Connection) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

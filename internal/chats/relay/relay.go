// Package relay fans chat messages out to the live connections of a room.
// A message is appended to the store before anyone sees it, and a per-room
// lock spans append and enqueue so every connection observes the store order.
package relay

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	chatserrors "carrental/internal/chats/errors"
	"carrental/internal/chats/registry"
	"carrental/internal/chats/repository"
	"carrental/internal/events"
	"carrental/internal/metrics"
	"carrental/pkg/clock"
	"carrental/pkg/logger"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"

	"github.com/google/uuid"
)

const (
	DefaultSendBuffer = 64
	MaxMessageLength  = 4000
)

type Relay struct {
	registry  *registry.Registry
	messages  repository.MessageRepository
	publisher events.Publisher
	clock     clock.Clock
	log       *logger.Logger
	buffer    int

	mu        sync.RWMutex
	conns     map[string]*Connection
	users     map[string]map[string]*Connection
	roomLocks map[string]*sync.Mutex
}

func New(
	reg *registry.Registry,
	messages repository.MessageRepository,
	publisher events.Publisher,
	clk clock.Clock,
	log *logger.Logger,
	buffer int,
) *Relay {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Relay{
		registry:  reg,
		messages:  messages,
		publisher: publisher,
		clock:     clk,
		log:       log,
		buffer:    buffer,
		conns:     make(map[string]*Connection),
		users:     make(map[string]map[string]*Connection),
		roomLocks: make(map[string]*sync.Mutex),
	}
}

// Connect registers a new session for userID.
func (r *Relay) Connect(userID string) (*Connection, error) {
	userID = sanitizer.NormalizeID(userID)
	if !registry.ValidUserID(userID) {
		return nil, chatserrors.ErrInvalidParticipants
	}

	conn := newConnection(uuid.New().String(), userID, r.buffer)

	r.mu.Lock()
	r.conns[conn.ID] = conn
	sessions, ok := r.users[userID]
	if !ok {
		sessions = make(map[string]*Connection)
		r.users[userID] = sessions
	}
	sessions[conn.ID] = conn
	r.mu.Unlock()

	metrics.ChatConnections.Inc()
	r.log.Debug("Chat connection opened", "conn_id", conn.ID, "user_id", userID)
	return conn, nil
}

// Join subscribes conn to the room it shares with otherUserID and returns
// the full history. Messages sent concurrently show up either in the history
// or on the queue, never both.
func (r *Relay) Join(ctx context.Context, conn *Connection, otherUserID string) (string, []*model.ChatMessage, error) {
	if conn.Closed() {
		return "", nil, chatserrors.ErrConnectionClosed
	}

	peerID := sanitizer.NormalizeID(otherUserID)
	roomID, err := registry.RoomID(conn.UserID, peerID)
	if err != nil {
		return "", nil, err
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	history, err := r.messages.History(ctx, roomID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load room history: %w", err)
	}

	r.registry.Subscribe(roomID, conn.ID)
	if conn.Closed() {
		r.registry.Unsubscribe(roomID, conn.ID)
		return "", nil, chatserrors.ErrConnectionClosed
	}
	conn.setRoom(roomID, peerID)

	r.log.Debug("Chat room joined", "conn_id", conn.ID, "room_id", roomID, "history", len(history))
	return roomID, history, nil
}

// Send appends body to the connection's room and delivers it to every
// connection of that room, the sender's own sessions included.
func (r *Relay) Send(ctx context.Context, conn *Connection, body string) (*model.ChatMessage, error) {
	body = sanitizer.NormalizeMessageBody(body)
	if body == "" {
		return nil, chatserrors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, chatserrors.ErrMessageTooLong
	}

	roomID, peerID := conn.joined()
	if roomID == "" || !r.registry.IsMember(roomID, conn.ID) {
		return nil, chatserrors.ErrNotJoined
	}

	msg := &model.ChatMessage{
		RoomID:    roomID,
		SenderID:  conn.UserID,
		Body:      body,
		Timestamp: r.clock.Now(),
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	if err := r.messages.Append(ctx, msg); err != nil {
		lock.Unlock()
		metrics.ChatMessages.WithLabelValues(metrics.ResultError).Inc()
		r.log.Error("Failed to append chat message", "room_id", roomID, "sender_id", conn.UserID, "error", err)
		return nil, fmt.Errorf("%w: %w", chatserrors.ErrDeliveryFailed, err)
	}
	dead := r.broadcastLocked(roomID, Frame{Type: FrameReceiveMessage, Data: msg})
	lock.Unlock()

	metrics.ChatMessages.WithLabelValues(metrics.ResultOK).Inc()
	r.drop(dead)
	r.notifyParticipants(ctx, msg, peerID)
	return msg, nil
}

func (r *Relay) broadcastLocked(roomID string, f Frame) []*Connection {
	var dead []*Connection
	for _, connID := range r.registry.Members(roomID) {
		peer := r.connection(connID)
		if peer == nil {
			r.registry.Unsubscribe(roomID, connID)
			continue
		}
		if !peer.Push(f) {
			dead = append(dead, peer)
		}
	}
	return dead
}

// notifyParticipants pushes a chat_updated notice to every session of the
// sender and the recipient, joined to the room or not, and emits the append
// event. The recipient is the peer named at join time.
func (r *Relay) notifyParticipants(ctx context.Context, msg *model.ChatMessage, to string) {
	notice := Frame{Type: FrameChatUpdated, Data: ChatUpdated{
		RoomID:      msg.RoomID,
		LastMessage: msg.Body,
		Timestamp:   msg.Timestamp,
		From:        msg.SenderID,
		To:          to,
	}}

	var dead []*Connection
	for _, peer := range r.sessionsOf(msg.SenderID, to) {
		if !peer.Push(notice) {
			dead = append(dead, peer)
		}
	}
	r.drop(dead)

	payload := events.ChatMessageAppended{Message: *msg, Participants: participantsOf(msg.SenderID, to)}
	if err := r.publisher.Publish(ctx, events.TypeChatMessageAppended, msg.RoomID, payload); err != nil {
		r.log.Warn("Failed to publish chat event", "room_id", msg.RoomID, "seq", msg.Seq, "error", err)
	}
}

// Disconnect removes every membership of conn and closes its queue. Calling
// it more than once is harmless.
func (r *Relay) Disconnect(conn *Connection) {
	rooms := r.registry.UnsubscribeAll(conn.ID)

	r.mu.Lock()
	delete(r.conns, conn.ID)
	if sessions, ok := r.users[conn.UserID]; ok {
		delete(sessions, conn.ID)
		if len(sessions) == 0 {
			delete(r.users, conn.UserID)
		}
	}
	r.mu.Unlock()

	if conn.close() {
		metrics.ChatConnections.Dec()
		r.log.Debug("Chat connection closed", "conn_id", conn.ID, "user_id", conn.UserID, "rooms", rooms)
	}
}

// Members returns the live connection ids of roomID.
func (r *Relay) Members(roomID string) []string {
	return r.registry.Members(roomID)
}

func (r *Relay) drop(dead []*Connection) {
	for _, c := range dead {
		if c.Closed() {
			continue
		}
		metrics.ChatDroppedPeers.Inc()
		r.log.Warn("Dropping slow chat connection", "conn_id", c.ID, "user_id", c.UserID)
		r.Disconnect(c)
	}
}

func (r *Relay) connection(connID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connID]
}

func (r *Relay) sessionsOf(userIDs ...string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Connection
	for _, id := range userIDs {
		for _, c := range r.users[id] {
			out = append(out, c)
		}
	}
	return out
}

func participantsOf(a, b string) []string {
	if b < a {
		a, b = b, a
	}
	return []string{a, b}
}

func (r *Relay) roomLock(roomID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		r.roomLocks[roomID] = lock
	}
	return lock
}

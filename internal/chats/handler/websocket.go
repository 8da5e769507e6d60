package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	chatserrors "carrental/internal/chats/errors"
	"carrental/internal/chats/registry"
	"carrental/internal/chats/relay"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"
	"carrental/pkg/middleware"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	opTimeout      = 10 * time.Second
)

const (
	inboundJoinChat    = "join_chat"
	inboundSendMessage = "send_message"
	inboundPing        = "ping"
)

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type joinChat struct {
	SelfID  string `json:"self_id"`
	OtherID string `json:"other_id"`
}

type sendMessage struct {
	Body string `json:"body"`
}

// ChatSocketHandler serves the chat channel. One reader and one writer
// goroutine run per connection; only the writer touches the socket for
// writes.
type ChatSocketHandler struct {
	relay          *relay.Relay
	allowedOrigins []string
	log            *logger.Logger
	upgrader       websocket.Upgrader
}

func NewChatSocketHandler(r *relay.Relay, allowedOrigins []string, log *logger.Logger) *ChatSocketHandler {
	h := &ChatSocketHandler{
		relay:          r,
		allowedOrigins: allowedOrigins,
		log:            log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkOrigin accepts any origin when none are configured.
func (h *ChatSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin)
}

func (h *ChatSocketHandler) Serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := middleware.DefaultUserExtractor(r)
	if userID == "" {
		if err := httputil.WriteError(w, apperrors.InvalidInput("user_id is required")); err != nil {
			h.log.Error("failed to write error response", "handler", "Serve", "operation", "WriteError", "error", err)
		}
		return
	}
	if !registry.ValidUserID(userID) {
		if err := httputil.WriteError(w, apperrors.Validation("user_id", chatserrors.ErrInvalidParticipants.Error())); err != nil {
			h.log.Error("failed to write error response", "handler", "Serve", "operation", "WriteError", "error", err)
		}
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	conn, err := h.relay.Connect(userID)
	if err != nil {
		_ = ws.Close()
		return
	}

	log := h.log.With("conn_id", conn.ID, "user_id", conn.UserID)
	go h.writePump(ws, conn, log)
	h.readPump(ws, conn, log)
}

func (h *ChatSocketHandler) readPump(ws *websocket.Conn, conn *relay.Connection, log *logger.Logger) {
	defer func() {
		h.relay.Disconnect(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error("failed to set read deadline", "error", err)
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("unexpected websocket close", "error", err)
			}
			return
		}
		h.dispatch(conn, msg, log)
	}
}

func (h *ChatSocketHandler) dispatch(conn *relay.Connection, msg inbound, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch msg.Type {
	case inboundPing:
		conn.Push(relay.Frame{Type: relay.FramePong})

	case inboundJoinChat:
		var req joinChat
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.pushError(conn, apperrors.InvalidInput("join_chat payload is malformed"))
			return
		}
		if req.SelfID != "" && req.SelfID != conn.UserID {
			h.pushError(conn, chatserrors.ErrForeignParticipant)
			return
		}
		roomID, history, err := h.relay.Join(ctx, conn, req.OtherID)
		if err != nil {
			log.Warn("join_chat failed", "other_id", req.OtherID, "error", err)
			h.pushError(conn, err)
			return
		}
		conn.Push(relay.Frame{Type: relay.FrameJoinedChat, Data: relay.JoinedChat{RoomID: roomID, History: history}})

	case inboundSendMessage:
		var req sendMessage
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.pushError(conn, apperrors.InvalidInput("send_message payload is malformed"))
			return
		}
		if _, err := h.relay.Send(ctx, conn, req.Body); err != nil {
			h.pushError(conn, err)
		}

	default:
		h.pushError(conn, apperrors.InvalidInput("unknown message type: "+msg.Type))
	}
}

func (h *ChatSocketHandler) writePump(ws *websocket.Conn, conn *relay.Connection, log *logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case frame, ok := <-conn.Outbound():
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error("failed to set write deadline", "error", err)
				return
			}
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(frame); err != nil {
				log.Warn("failed to write frame", "type", frame.Type, "error", err)
				return
			}

		case <-ticker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *ChatSocketHandler) pushError(conn *relay.Connection, err error) {
	appErr := toAppError(err)
	conn.Push(relay.Frame{Type: relay.FrameError, Data: relay.ErrorFrame{
		Code:    appErr.Code,
		Message: appErr.Message,
	}})
}

func toAppError(err error) *apperrors.AppError {
	switch {
	case apperrors.IsAppError(err):
		return apperrors.AsAppError(err)
	case errors.Is(err, chatserrors.ErrDeliveryFailed):
		return apperrors.DeliveryFailed(err)
	case errors.Is(err, chatserrors.ErrInvalidParticipants),
		errors.Is(err, chatserrors.ErrForeignParticipant):
		return apperrors.Validation("other_id", err.Error())
	case errors.Is(err, chatserrors.ErrEmptyMessage),
		errors.Is(err, chatserrors.ErrMessageTooLong):
		return apperrors.Validation("body", err.Error())
	case errors.Is(err, chatserrors.ErrNotJoined):
		return apperrors.Conflict(err.Error())
	case errors.Is(err, chatserrors.ErrConnectionClosed):
		return apperrors.Unavailable("Chat connection")
	default:
		return apperrors.TransientStore(err)
	}
}

func (h *ChatSocketHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/ws/chat", h.Serve)
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chatserrors "carrental/internal/chats/errors"
	"carrental/internal/chats/registry"
	"carrental/internal/chats/relay"
	"carrental/internal/chats/repository"
	"carrental/internal/events"
	"carrental/pkg/clock"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newChatServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := relay.New(
		registry.New(),
		repository.NewMemoryMessageRepository(),
		events.NewNoopPublisher(),
		clock.NewRealClock(),
		logger.Discard(),
		16,
	)
	router := httprouter.New()
	NewChatSocketHandler(r, nil, logger.Discard()).RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?user_id=" + userID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(inbound{Type: typ, Data: raw}))
}

// next reads frames until one of the given type arrives.
func next(t *testing.T, ws *websocket.Conn, typ string) outbound {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f outbound
		require.NoError(t, ws.ReadJSON(&f))
		if f.Type == typ {
			return f
		}
	}
}

func TestChatSocket_JoinSendReceive(t *testing.T) {
	srv := newChatServer(t)

	renter := dial(t, srv, "renter")
	owner := dial(t, srv, "owner")

	send(t, renter, inboundJoinChat, joinChat{SelfID: "renter", OtherID: "owner"})
	joined := next(t, renter, relay.FrameJoinedChat)
	var jc relay.JoinedChat
	require.NoError(t, json.Unmarshal(joined.Data, &jc))
	assert.Equal(t, "owner_renter", jc.RoomID)
	assert.Empty(t, jc.History)

	send(t, owner, inboundJoinChat, joinChat{SelfID: "owner", OtherID: "renter"})
	next(t, owner, relay.FrameJoinedChat)

	send(t, renter, inboundSendMessage, sendMessage{Body: "Can I pick it up at 9?"})

	for _, ws := range []*websocket.Conn{renter, owner} {
		f := next(t, ws, relay.FrameReceiveMessage)
		var msg struct {
			RoomID   string `json:"room_id"`
			SenderID string `json:"sender_id"`
			Body     string `json:"body"`
		}
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		assert.Equal(t, "owner_renter", msg.RoomID)
		assert.Equal(t, "renter", msg.SenderID)
		assert.Equal(t, "Can I pick it up at 9?", msg.Body)
	}

	// A reconnecting client gets the stored history on join.
	again := dial(t, srv, "renter")
	send(t, again, inboundJoinChat, joinChat{SelfID: "renter", OtherID: "owner"})
	require.NoError(t, json.Unmarshal(next(t, again, relay.FrameJoinedChat).Data, &jc))
	require.Len(t, jc.History, 1)
	assert.Equal(t, "Can I pick it up at 9?", jc.History[0].Body)
}

func TestChatSocket_ErrorsAndPing(t *testing.T) {
	srv := newChatServer(t)
	ws := dial(t, srv, "renter")

	send(t, ws, inboundSendMessage, sendMessage{Body: "before join"})
	var ef relay.ErrorFrame
	require.NoError(t, json.Unmarshal(next(t, ws, relay.FrameError).Data, &ef))
	assert.Equal(t, apperrors.CodeConflict, ef.Code)

	send(t, ws, inboundJoinChat, joinChat{SelfID: "someone-else", OtherID: "owner"})
	require.NoError(t, json.Unmarshal(next(t, ws, relay.FrameError).Data, &ef))
	assert.Equal(t, apperrors.CodeValidation, ef.Code)

	require.NoError(t, ws.WriteJSON(inbound{Type: inboundPing}))
	next(t, ws, relay.FramePong)
}

func TestChatSocket_RequiresUser(t *testing.T) {
	srv := newChatServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestChatSocket_RejectsUserIDWithRoomSeparator(t *testing.T) {
	srv := newChatServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	header := http.Header{}
	header.Set("X-User-ID", "a_b")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{chatserrors.ErrDeliveryFailed, apperrors.CodeDeliveryFailed},
		{chatserrors.ErrInvalidParticipants, apperrors.CodeValidation},
		{chatserrors.ErrEmptyMessage, apperrors.CodeValidation},
		{chatserrors.ErrNotJoined, apperrors.CodeConflict},
		{chatserrors.ErrConnectionClosed, apperrors.CodeUnavailable},
		{apperrors.InvalidInput("x"), apperrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		if got := toAppError(tt.err).Code; got != tt.code {
			t.Errorf("toAppError(%v) = %s, want %s", tt.err, got, tt.code)
		}
	}
}

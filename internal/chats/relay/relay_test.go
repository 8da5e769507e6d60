package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	chatserrors "carrental/internal/chats/errors"
	"carrental/internal/chats/registry"
	"carrental/internal/chats/repository"
	"carrental/internal/events"
	"carrental/pkg/clock"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	repository.MessageRepository
	appendErr error
}

func (s *failingStore) Append(context.Context, *model.ChatMessage) error {
	return s.appendErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType+":"+key)
	return nil
}

func (p *recordingPublisher) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newTestRelay(store repository.MessageRepository, buffer int) (*Relay, *recordingPublisher) {
	pub := &recordingPublisher{}
	clk := clock.NewMockClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	return New(registry.New(), store, pub, clk, logger.Discard(), buffer), pub
}

func drain(c *Connection) []Frame {
	var out []Frame
	for {
		select {
		case f, ok := <-c.Outbound():
			if !ok {
				return out
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func framesOfType(frames []Frame, typ string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func TestRelay_JoinReplaysHistory(t *testing.T) {
	store := repository.NewMemoryMessageRepository()
	r, _ := newTestRelay(store, 16)
	ctx := context.Background()

	renter, err := r.Connect("renter")
	require.NoError(t, err)
	roomID, history, err := r.Join(ctx, renter, "owner")
	require.NoError(t, err)
	assert.Equal(t, "owner_renter", roomID)
	assert.Empty(t, history)

	_, err = r.Send(ctx, renter, "Is the car free this weekend?")
	require.NoError(t, err)

	// Owner connects later and sees the same room and the stored message.
	owner, err := r.Connect("owner")
	require.NoError(t, err)
	ownerRoom, history, err := r.Join(ctx, owner, "renter")
	require.NoError(t, err)
	assert.Equal(t, roomID, ownerRoom)
	require.Len(t, history, 1)
	assert.Equal(t, "Is the car free this weekend?", history[0].Body)
	assert.Equal(t, "renter", history[0].SenderID)
}

func TestRelay_SendFansOutToEveryMemberIncludingSender(t *testing.T) {
	r, pub := newTestRelay(repository.NewMemoryMessageRepository(), 16)
	ctx := context.Background()

	renter, _ := r.Connect("renter")
	renterTab, _ := r.Connect("renter")
	owner, _ := r.Connect("owner")
	for _, c := range []*Connection{renter, renterTab} {
		_, _, err := r.Join(ctx, c, "owner")
		require.NoError(t, err)
	}
	_, _, err := r.Join(ctx, owner, "renter")
	require.NoError(t, err)

	msg, err := r.Send(ctx, renter, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, int64(1), msg.Seq)

	for _, c := range []*Connection{renter, renterTab, owner} {
		received := framesOfType(drain(c), FrameReceiveMessage)
		require.Len(t, received, 1, "conn %s", c.ID)
		assert.Equal(t, "hello", received[0].Data.(*model.ChatMessage).Body)
	}

	assert.Equal(t, []string{events.TypeChatMessageAppended + ":owner_renter"}, pub.snapshot())
}

func TestRelay_ChatUpdatedReachesParticipantsOutsideTheRoom(t *testing.T) {
	r, _ := newTestRelay(repository.NewMemoryMessageRepository(), 16)
	ctx := context.Background()

	renter, _ := r.Connect("renter")
	_, _, err := r.Join(ctx, renter, "owner")
	require.NoError(t, err)
	ownerInbox, _ := r.Connect("owner")
	stranger, _ := r.Connect("stranger")

	_, err = r.Send(ctx, renter, "ping")
	require.NoError(t, err)

	inbox := drain(ownerInbox)
	assert.Empty(t, framesOfType(inbox, FrameReceiveMessage))
	updates := framesOfType(inbox, FrameChatUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, ChatUpdated{
		RoomID:      "owner_renter",
		LastMessage: "ping",
		Timestamp:   time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		From:        "renter",
		To:          "owner",
	}, updates[0].Data)

	assert.Empty(t, drain(stranger))
}

func TestRelay_SendFailureDeliversNothing(t *testing.T) {
	storeErr := errors.New("connection reset")
	store := &failingStore{MessageRepository: repository.NewMemoryMessageRepository(), appendErr: storeErr}
	r, pub := newTestRelay(store, 16)
	ctx := context.Background()

	renter, _ := r.Connect("renter")
	owner, _ := r.Connect("owner")
	_, _, err := r.Join(ctx, renter, "owner")
	require.NoError(t, err)
	_, _, err = r.Join(ctx, owner, "renter")
	require.NoError(t, err)

	_, err = r.Send(ctx, renter, "lost?")
	require.Error(t, err)
	assert.ErrorIs(t, err, chatserrors.ErrDeliveryFailed)
	assert.ErrorIs(t, err, storeErr)

	assert.Empty(t, drain(renter))
	assert.Empty(t, drain(owner))
	assert.Empty(t, pub.snapshot())
}

func TestRelay_SendValidation(t *testing.T) {
	r, _ := newTestRelay(repository.NewMemoryMessageRepository(), 16)
	ctx := context.Background()

	conn, _ := r.Connect("renter")
	_, err := r.Send(ctx, conn, "hello")
	assert.ErrorIs(t, err, chatserrors.ErrNotJoined)

	_, _, err = r.Join(ctx, conn, "owner")
	require.NoError(t, err)

	_, err = r.Send(ctx, conn, "   ")
	assert.ErrorIs(t, err, chatserrors.ErrEmptyMessage)

	long := make([]rune, MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = r.Send(ctx, conn, string(long))
	assert.ErrorIs(t, err, chatserrors.ErrMessageTooLong)

	_, _, err = r.Join(ctx, conn, "renter")
	assert.ErrorIs(t, err, chatserrors.ErrInvalidParticipants)

	_, err = r.Connect("  ")
	assert.ErrorIs(t, err, chatserrors.ErrInvalidParticipants)
}

func TestRelay_PerRoomOrderingUnderConcurrentSenders(t *testing.T) {
	store := repository.NewMemoryMessageRepository()
	r, _ := newTestRelay(store, 512)
	ctx := context.Background()

	a, _ := r.Connect("a")
	b, _ := r.Connect("b")
	observer, _ := r.Connect("a")
	for _, c := range []*Connection{a, observer} {
		_, _, err := r.Join(ctx, c, "b")
		require.NoError(t, err)
	}
	_, _, err := r.Join(ctx, b, "a")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Send(ctx, a, fmt.Sprintf("a-%d", i))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Send(ctx, b, fmt.Sprintf("b-%d", i))
		}(i)
	}
	wg.Wait()

	history, err := store.History(ctx, "a_b")
	require.NoError(t, err)
	require.Len(t, history, 100)

	for _, c := range []*Connection{a, b, observer} {
		received := framesOfType(drain(c), FrameReceiveMessage)
		require.Len(t, received, 100)
		for i, f := range received {
			assert.Equal(t, history[i].Seq, f.Data.(*model.ChatMessage).Seq, "conn %s position %d", c.ID, i)
		}
	}
}

func TestRelay_SlowPeerIsDropped(t *testing.T) {
	r, _ := newTestRelay(repository.NewMemoryMessageRepository(), 2)
	ctx := context.Background()

	sender, _ := r.Connect("renter")
	slow, _ := r.Connect("owner")
	_, _, err := r.Join(ctx, sender, "owner")
	require.NoError(t, err)
	_, _, err = r.Join(ctx, slow, "renter")
	require.NoError(t, err)

	_, err = r.Send(ctx, sender, "one")
	require.NoError(t, err)
	drain(sender)

	// Each send queues a message and a chat_updated notice; the slow peer
	// never drains, so the second send overflows its queue.
	_, err = r.Send(ctx, sender, "two")
	require.NoError(t, err, "a slow peer must not fail the sender")

	assert.True(t, slow.Closed())
	assert.Equal(t, []string{sender.ID}, r.Members("owner_renter"))
}

func TestRelay_DisconnectIsIdempotent(t *testing.T) {
	r, _ := newTestRelay(repository.NewMemoryMessageRepository(), 4)
	ctx := context.Background()

	conn, _ := r.Connect("renter")
	_, _, err := r.Join(ctx, conn, "owner")
	require.NoError(t, err)

	r.Disconnect(conn)
	r.Disconnect(conn)

	assert.True(t, conn.Closed())
	assert.Empty(t, r.Members("owner_renter"))
	assert.False(t, conn.Push(Frame{Type: FramePong}))

	_, _, err = r.Join(ctx, conn, "owner")
	assert.ErrorIs(t, err, chatserrors.ErrConnectionClosed)
}

func TestRelay_RefusesUserIDsContainingTheRoomSeparator(t *testing.T) {
	r, _ := newTestRelay(repository.NewMemoryMessageRepository(), 4)
	ctx := context.Background()

	_, err := r.Connect("a_b")
	assert.ErrorIs(t, err, chatserrors.ErrInvalidParticipants)

	conn, err := r.Connect("a")
	require.NoError(t, err)
	_, _, err = r.Join(ctx, conn, "b_c")
	assert.ErrorIs(t, err, chatserrors.ErrInvalidParticipants)
	assert.Zero(t, r.registry.RoomCount())
}

func TestRelay_ChatUpdatedOnlyReachesSenderAndJoinedPeer(t *testing.T) {
	r, _ := newTestRelay(repository.NewMemoryMessageRepository(), 16)
	ctx := context.Background()

	sender, _ := r.Connect("a")
	peer, _ := r.Connect("b-c")
	lookalike, _ := r.Connect("b")
	_, _, err := r.Join(ctx, sender, "b-c")
	require.NoError(t, err)

	_, err = r.Send(ctx, sender, "private note")
	require.NoError(t, err)

	updates := framesOfType(drain(peer), FrameChatUpdated)
	require.Len(t, updates, 1)
	notice := updates[0].Data.(ChatUpdated)
	assert.Equal(t, "a", notice.From)
	assert.Equal(t, "b-c", notice.To)
	assert.Equal(t, "a_b-c", notice.RoomID)

	assert.Len(t, framesOfType(drain(sender), FrameChatUpdated), 1)
	assert.Empty(t, drain(lookalike))
}

func TestRelay_BroadcastPrunesMembershipsOfGoneConnections(t *testing.T) {
	r, _ := newTestRelay(repository.NewMemoryMessageRepository(), 16)
	ctx := context.Background()

	renter, _ := r.Connect("renter")
	_, _, err := r.Join(ctx, renter, "owner")
	require.NoError(t, err)

	// A membership left behind by a connection that disconnected mid-join.
	r.registry.Subscribe("owner_renter", "gone")

	_, err = r.Send(ctx, renter, "still there?")
	require.NoError(t, err)
	assert.Equal(t, []string{renter.ID}, r.Members("owner_renter"))
}

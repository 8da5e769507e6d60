package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	chatserrors "carrental/internal/chats/errors"
	"carrental/pkg/model"

	"github.com/google/uuid"
)

type memoryMessageRepository struct {
	mu    sync.RWMutex
	rooms map[string][]*model.ChatMessage
	seqs  map[string]int64
}

// NewMemoryMessageRepository returns a process-local chat log.
func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepository{
		rooms: make(map[string][]*model.ChatMessage),
		seqs:  make(map[string]int64),
	}
}

func (r *memoryMessageRepository) Append(ctx context.Context, msg *model.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seqs[msg.RoomID]++
	msg.Seq = r.seqs[msg.RoomID]
	msg.ID = uuid.New().String()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.Timestamp = msg.Timestamp.Truncate(time.Millisecond)

	stored := *msg
	r.rooms[msg.RoomID] = append(r.rooms[msg.RoomID], &stored)
	return nil
}

func (r *memoryMessageRepository) History(ctx context.Context, roomID string) ([]*model.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.ChatMessage, 0, len(r.rooms[roomID]))
	for _, m := range r.rooms[roomID] {
		c := *m
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

type memorySummaryRepository struct {
	mu    sync.RWMutex
	rooms map[string]*model.ChatSummary
}

func NewMemorySummaryRepository() SummaryRepository {
	return &memorySummaryRepository{rooms: make(map[string]*model.ChatSummary)}
}

func (r *memorySummaryRepository) Apply(ctx context.Context, msg *model.ChatMessage, participants []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rooms[msg.RoomID]
	if !ok {
		s = &model.ChatSummary{RoomID: msg.RoomID, Unread: map[string]int{}}
		r.rooms[msg.RoomID] = s
	} else if msg.Seq <= s.LastSeq {
		return nil
	}

	s.Participants = slices.Clone(participants)
	s.LastMessage = msg.Body
	s.LastSenderID = msg.SenderID
	s.LastSeq = msg.Seq
	s.UpdatedAt = msg.Timestamp
	for _, p := range participants {
		if p != msg.SenderID {
			s.Unread[p]++
		}
	}
	return nil
}

func (r *memorySummaryRepository) ListByUser(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.ChatSummary{}
	for _, s := range r.rooms {
		if slices.Contains(s.Participants, userID) {
			c := *s
			c.Participants = slices.Clone(s.Participants)
			c.Unread = make(map[string]int, len(s.Unread))
			for k, v := range s.Unread {
				c.Unread[k] = v
			}
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *memorySummaryRepository) MarkRead(ctx context.Context, roomID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rooms[roomID]
	if !ok || !slices.Contains(s.Participants, userID) {
		return chatserrors.ErrRoomNotFound
	}
	s.Unread[userID] = 0
	return nil
}

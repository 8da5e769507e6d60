package service

import (
	"context"
	"errors"

	chatserrors "carrental/internal/chats/errors"
	"carrental/internal/chats/registry"
	"carrental/internal/chats/repository"
	"carrental/pkg/config"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"
)

// ChatService serves the read side of chat: room history and chat lists.
type ChatService interface {
	History(ctx context.Context, roomID string) ([]*model.ChatMessage, error)
	Summaries(ctx context.Context, userID string) ([]*model.ChatSummary, error)
	MarkRead(ctx context.Context, roomID, userID string) error
}

type chatService struct {
	messages  repository.MessageRepository
	summaries repository.SummaryRepository
	cfg       *config.Config
}

func NewChatService(
	messages repository.MessageRepository,
	summaries repository.SummaryRepository,
	cfg *config.Config,
) ChatService {
	return &chatService{
		messages:  messages,
		summaries: summaries,
		cfg:       cfg,
	}
}

func (s *chatService) History(ctx context.Context, roomID string) ([]*model.ChatMessage, error) {
	roomID = sanitizer.NormalizeID(roomID)
	if _, _, ok := registry.Participants(roomID); !ok {
		return nil, apperrors.InvalidInput("room_id must name two distinct users")
	}

	history, err := s.messages.History(ctx, roomID)
	if err != nil {
		s.cfg.Log.Error("Failed to load chat history", "room_id", roomID, "error", err)
		return nil, apperrors.TransientStore(err)
	}
	return history, nil
}

func (s *chatService) Summaries(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	userID = sanitizer.NormalizeID(userID)
	if userID == "" {
		return nil, apperrors.InvalidInput("user_id cannot be empty")
	}

	summaries, err := s.summaries.ListByUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list chat summaries", "user_id", userID, "error", err)
		return nil, apperrors.TransientStore(err)
	}
	return summaries, nil
}

func (s *chatService) MarkRead(ctx context.Context, roomID, userID string) error {
	roomID, userID = sanitizer.NormalizeID(roomID), sanitizer.NormalizeID(userID)
	a, b, ok := registry.Participants(roomID)
	if !ok {
		return apperrors.InvalidInput("room_id must name two distinct users")
	}
	if userID != a && userID != b {
		return apperrors.Validation("user_id", chatserrors.ErrForeignParticipant.Error())
	}

	if err := s.summaries.MarkRead(ctx, roomID, userID); err != nil {
		if errors.Is(err, chatserrors.ErrRoomNotFound) {
			return apperrors.NotFoundWithID("Chat room", roomID)
		}
		s.cfg.Log.Error("Failed to mark chat read", "room_id", roomID, "user_id", userID, "error", err)
		return apperrors.TransientStore(err)
	}
	return nil
}

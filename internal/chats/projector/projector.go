// Package projector folds chat.message_appended events into the per-user
// chat summaries.
package projector

import (
	"context"

	"carrental/internal/chats/repository"
	"carrental/internal/events"
	"carrental/pkg/kafka"
	"carrental/pkg/logger"
)

type Projector struct {
	summaries repository.SummaryRepository
	log       *logger.Logger
}

func New(summaries repository.SummaryRepository, log *logger.Logger) *Projector {
	return &Projector{summaries: summaries, log: log}
}

// Handle is a kafka.MessageHandler. Events of other types are acknowledged
// untouched.
func (p *Projector) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.GetEventType() != events.TypeChatMessageAppended {
		return nil
	}

	var ev events.ChatMessageAppended
	if err := msg.DecodeValue(&ev); err != nil {
		return err
	}
	if ev.Message.RoomID == "" || len(ev.Participants) != 2 {
		return kafka.NewPermanentError("malformed chat event", nil)
	}

	if err := p.summaries.Apply(ctx, &ev.Message, ev.Participants); err != nil {
		return kafka.NewTransientError("failed to apply chat summary", err)
	}

	p.log.Debug("Chat summary updated",
		"room_id", ev.Message.RoomID,
		"seq", ev.Message.Seq,
		"event_id", msg.GetEventID(),
	)
	return nil
}

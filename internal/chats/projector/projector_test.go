package projector

import (
	"context"
	"errors"
	"testing"
	"time"

	"carrental/internal/chats/repository"
	"carrental/internal/events"
	"carrental/pkg/kafka"
	"carrental/pkg/logger"
	"carrental/pkg/model"
)

type failingSummaries struct {
	repository.SummaryRepository
}

func (failingSummaries) Apply(context.Context, *model.ChatMessage, []string) error {
	return errors.New("server selection timeout")
}

func chatEvent(t *testing.T, seq int64, body string) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().
		WithKey("owner_renter").
		WithEventType(events.TypeChatMessageAppended).
		WithValue(events.ChatMessageAppended{
			Message: model.ChatMessage{
				RoomID:    "owner_renter",
				SenderID:  "renter",
				Body:      body,
				Seq:       seq,
				Timestamp: time.Date(2024, 6, 1, 10, int(seq), 0, 0, time.UTC),
			},
			Participants: []string{"owner", "renter"},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return msg
}

func TestProjector_Handle(t *testing.T) {
	summaries := repository.NewMemorySummaryRepository()
	p := New(summaries, logger.Discard())
	ctx := context.Background()

	first := chatEvent(t, 1, "hi")
	second := chatEvent(t, 2, "are you there?")

	for _, msg := range []kafka.Message{first, second, first} {
		if err := p.Handle(ctx, msg); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	list, err := summaries.ListByUser(ctx, "owner")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d summaries, want 1", len(list))
	}
	if list[0].LastMessage != "are you there?" {
		t.Errorf("LastMessage = %q", list[0].LastMessage)
	}
	if got := list[0].UnreadFor("owner"); got != 2 {
		t.Errorf("owner unread = %d, want 2 (redelivery must not double count)", got)
	}
}

func TestProjector_IgnoresOtherEvents(t *testing.T) {
	p := New(failingSummaries{}, logger.Discard())
	msg, err := kafka.NewMessage().
		WithKey("car-1").
		WithEventType(events.TypeCarReserved).
		WithValue(events.CarAvailabilityChanged{CarID: "car-1"}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Handle(context.Background(), msg); err != nil {
		t.Errorf("Handle() error = %v, want nil", err)
	}
}

func TestProjector_ErrorClassification(t *testing.T) {
	p := New(failingSummaries{}, logger.Discard())

	err := p.Handle(context.Background(), chatEvent(t, 1, "hi"))
	if kafka.ClassifyError(err) != kafka.ErrorTypeTransient {
		t.Errorf("store failure should be retried, got %v", err)
	}

	bad := kafka.Message{
		Value:   []byte("{not json"),
		Headers: map[string]string{kafka.HeaderEventType: events.TypeChatMessageAppended},
	}
	err = p.Handle(context.Background(), bad)
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("undecodable event should be parked, got %v", err)
	}
}

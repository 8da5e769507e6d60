package model

import "time"

type ChatMessage struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	RoomID    string    `json:"room_id" bson:"room_id"`
	SenderID  string    `json:"sender_id" bson:"sender_id"`
	Body      string    `json:"body" bson:"body"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Seq       int64     `json:"seq" bson:"seq"`
}

// ChatSummary is the per-room row behind a user's chat list.
type ChatSummary struct {
	RoomID       string         `json:"room_id" bson:"_id"`
	Participants []string       `json:"participants" bson:"participants"`
	LastMessage  string         `json:"last_message" bson:"last_message"`
	LastSenderID string         `json:"last_sender_id" bson:"last_sender_id"`
	LastSeq      int64          `json:"last_seq" bson:"last_seq"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updated_at"`
	Unread       map[string]int `json:"unread" bson:"unread"`
}

// UnreadFor returns the unread count for one participant.
func (s *ChatSummary) UnreadFor(userID string) int {
	if s.Unread == nil {
		return 0
	}
	return s.Unread[userID]
}

package errors

import "errors"

var (
	ErrInvalidParticipants = errors.New("chat participants must be two distinct non-empty user ids")

	ErrDeliveryFailed = errors.New("message could not be stored")

	ErrNotJoined = errors.New("connection has not joined a chat room")

	ErrEmptyMessage = errors.New("message body cannot be empty")

	ErrConnectionClosed = errors.New("connection is closed")

	ErrForeignParticipant = errors.New("connection user is not a participant of the room")

	ErrRoomNotFound = errors.New("chat room not found")

	ErrMessageTooLong = errors.New("message body exceeds the maximum length")
)

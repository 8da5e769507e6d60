// Package events defines the domain events emitted after state changes and
// the publishers that carry them, either over Kafka or in-process.
package events

import (
	"time"

	"carrental/pkg/model"
)

const (
	TypeBookingCreated      = "booking.created"
	TypeCarReserved         = "car.reserved"
	TypeCarReleased         = "car.released"
	TypeChatMessageAppended = "chat.message_appended"
)

const (
	ReasonBooking = "booking"
	ReasonCancel  = "cancel"
	ReasonSweep   = "sweep"
)

type BookingCreated struct {
	BookingID string    `json:"booking_id"`
	CarID     string    `json:"car_id"`
	RenterID  string    `json:"renter_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	From      time.Time `json:"from"`
	Until     time.Time `json:"until"`
	Price     float64   `json:"price"`
}

// CarAvailabilityChanged is the payload of both car.reserved and car.released.
type CarAvailabilityChanged struct {
	CarID        string     `json:"car_id"`
	Availability string     `json:"availability"`
	From         *time.Time `json:"from,omitempty"`
	Until        *time.Time `json:"until,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

type ChatMessageAppended struct {
	Message      model.ChatMessage `json:"message"`
	Participants []string          `json:"participants"`
}

package model

import (
	"testing"
	"time"
)

func TestCar_Reservable(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		car  Car
		want bool
	}{
		{"free car", Car{Availability: AvailabilityFree}, true},
		{"active reservation", Car{Availability: AvailabilityReserved, ReservedUntil: &future}, false},
		{"lapsed reservation", Car{Availability: AvailabilityReserved, ReservedUntil: &past}, true},
		{"until equals now is still held", Car{Availability: AvailabilityReserved, ReservedUntil: &now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.car.Reservable(now); got != tt.want {
				t.Errorf("Reservable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChatSummary_UnreadFor(t *testing.T) {
	var s ChatSummary
	if s.UnreadFor("u1") != 0 {
		t.Error("nil unread map should read as zero")
	}
	s.Unread = map[string]int{"u1": 3}
	if s.UnreadFor("u1") != 3 || s.UnreadFor("u2") != 0 {
		t.Errorf("unexpected unread counts: %v", s.Unread)
	}
}

package validator

import (
	"testing"
	"time"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/pkg/logger"
	"carrental/pkg/model"
)

func validRequest() *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		CarID:    "car-1",
		RenterID: "renter-1",
		From:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Until:    time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		Renter: model.Renter{
			Name:           "Aisyah binti Ahmad",
			IdentityNumber: "900101-14-5678",
			Phone:          "012-3456789",
			Email:          "aisyah@example.com",
		},
		PaymentMethod: "FPX",
	}
}

func TestBookingValidator_Validate(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	tests := []struct {
		name      string
		mutate    func(r *model.CreateBookingRequest)
		wantField string
	}{
		{name: "valid", mutate: func(*model.CreateBookingRequest) {}},
		{name: "eight digit phone", mutate: func(r *model.CreateBookingRequest) { r.Renter.Phone = "011-23456789" }},
		{name: "same day window", mutate: func(r *model.CreateBookingRequest) { r.Until = r.From }},
		{name: "card payment", mutate: func(r *model.CreateBookingRequest) { r.PaymentMethod = "card" }},
		{name: "missing car", mutate: func(r *model.CreateBookingRequest) { r.CarID = "" }, wantField: "car_id"},
		{name: "missing renter", mutate: func(r *model.CreateBookingRequest) { r.RenterID = "" }, wantField: "renter_id"},
		{name: "same day with times out of order", mutate: func(r *model.CreateBookingRequest) {
			r.From = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
			r.Until = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		}},
		{name: "missing until", mutate: func(r *model.CreateBookingRequest) { r.Until = time.Time{} }, wantField: "until"},
		{name: "missing from", mutate: func(r *model.CreateBookingRequest) { r.From = time.Time{} }, wantField: "from"},
		{name: "name with digits", mutate: func(r *model.CreateBookingRequest) { r.Renter.Name = "R2D2" }, wantField: "renter.name"},
		{name: "identity without dashes", mutate: func(r *model.CreateBookingRequest) { r.Renter.IdentityNumber = "900101145678" }, wantField: "renter.identity_number"},
		{name: "phone without prefix", mutate: func(r *model.CreateBookingRequest) { r.Renter.Phone = "03-12345678" }, wantField: "renter.phone"},
		{name: "phone too short", mutate: func(r *model.CreateBookingRequest) { r.Renter.Phone = "012-345678" }, wantField: "renter.phone"},
		{name: "email without domain dot", mutate: func(r *model.CreateBookingRequest) { r.Renter.Email = "a@b" }, wantField: "renter.email"},
		{name: "unknown payment method", mutate: func(r *model.CreateBookingRequest) { r.PaymentMethod = "bitcoin" }, wantField: "payment_method"},
		{
			name: "first offending field wins",
			mutate: func(r *model.CreateBookingRequest) {
				r.Renter.Email = "nope"
				r.Renter.Name = "123"
				r.PaymentMethod = "barter"
			},
			wantField: "renter.name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := v.Validate(req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			verr, ok := bookingserrors.AsValidationError(err)
			if !ok {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q (message %q)", verr.Field, tt.wantField, verr.Message)
			}
			if verr.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

package model

import "time"

const DefaultPaymentMethod = "FPX"

type Renter struct {
	Name           string `json:"name" bson:"name" validate:"required,min=2,max=100,person_name"`
	IdentityNumber string `json:"identity_number" bson:"identity_number" validate:"required,identity_number"`
	Phone          string `json:"phone" bson:"phone" validate:"required,local_phone"`
	Email          string `json:"email" bson:"email" validate:"required,max=254,simple_email"`
}

type Booking struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty"`
	CarID         string    `json:"car_id" bson:"car_id"`
	RenterID      string    `json:"renter_id" bson:"renter_id"`
	OwnerID       string    `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	CarModel      string    `json:"car_model,omitempty" bson:"car_model,omitempty"`
	StartDate     time.Time `json:"start_date" bson:"start_date"`
	EndDate       time.Time `json:"end_date" bson:"end_date"`
	Price         float64   `json:"price" bson:"price"`
	PaymentMethod string    `json:"payment_method" bson:"payment_method"`
	Renter        Renter    `json:"renter" bson:"renter"`
	CreatedAt     time.Time `json:"booking_date" bson:"booking_date"`
}

type CreateBookingRequest struct {
	CarID         string    `json:"car_id" validate:"required"`
	RenterID      string    `json:"renter_id" validate:"required"`
	From          time.Time `json:"from" validate:"required"`
	Until         time.Time `json:"until" validate:"required"`
	Renter        Renter    `json:"renter"`
	PaymentMethod string    `json:"payment_method" validate:"required,oneof=FPX card cash ewallet"`
}

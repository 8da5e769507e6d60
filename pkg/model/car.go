package model

import "time"

const (
	AvailabilityFree     = "free"
	AvailabilityReserved = "reserved"
)

type Car struct {
	ID            string     `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID       string     `json:"owner_id" bson:"owner_id"`
	OwnerName     string     `json:"owner_name" bson:"owner_name"`
	Model         string     `json:"model" bson:"model"`
	Price         float64    `json:"price" bson:"price"`
	Category      string     `json:"category" bson:"category"`
	FuelType      string     `json:"fuel_type,omitempty" bson:"fuel_type,omitempty"`
	Mileage       int        `json:"mileage,omitempty" bson:"mileage,omitempty"`
	Image         string     `json:"image,omitempty" bson:"image,omitempty"`
	Description   string     `json:"description,omitempty" bson:"description,omitempty"`
	Availability  string     `json:"availability" bson:"availability"`
	ReservedFrom  *time.Time `json:"unavailable_from,omitempty" bson:"unavailable_from"`
	ReservedUntil *time.Time `json:"unavailable_until,omitempty" bson:"unavailable_until"`
}

func (c *Car) IsReserved() bool {
	return c.Availability == AvailabilityReserved
}

// ReservationLapsed reports whether a reserved car's window ended before now.
func (c *Car) ReservationLapsed(now time.Time) bool {
	return c.IsReserved() && c.ReservedUntil != nil && c.ReservedUntil.Before(now)
}

// Reservable reports whether a reserve at now may take the car.
func (c *Car) Reservable(now time.Time) bool {
	return !c.IsReserved() || c.ReservationLapsed(now)
}

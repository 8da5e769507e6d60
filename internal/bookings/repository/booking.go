package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/pkg/config"
	mongodb "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "bookings"

// BookingRepository stores immutable booking records.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// LatestByRenter returns ErrNotFound when the renter has no bookings.
	LatestByRenter(ctx context.Context, renterID string) (*model.Booking, error)
	// ListByRenter returns the renter's bookings, newest first.
	ListByRenter(ctx context.Context, renterID string) ([]*model.Booking, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

var newestFirst = bson.D{
	{Key: "booking_date", Value: -1},
	{Key: "_id", Value: -1},
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	booking.CreatedAt = booking.CreatedAt.Truncate(time.Millisecond)

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = mongodb.HexID(result.InsertedID)
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, mongodb.IDFilter(id)).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) LatestByRenter(ctx context.Context, renterID string) (*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx,
		bson.M{"renter_id": renterID},
		options.FindOne().SetSort(newestFirst),
	).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find latest booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx,
		bson.M{"renter_id": renterID},
		options.Find().SetSort(newestFirst),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

package repository

import (
	"context"
	"sort"
	"sync"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/pkg/model"

	"github.com/google/uuid"
)

type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings []*model.Booking
	byID     map[string]*model.Booking
}

func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{byID: make(map[string]*model.Booking)}
}

func (r *memoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	booking.ID = uuid.New().String()
	stored := *booking
	r.bookings = append(r.bookings, &stored)
	r.byID[stored.ID] = &stored
	return nil
}

func (r *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (r *memoryBookingRepository) LatestByRenter(ctx context.Context, renterID string) (*model.Booking, error) {
	list, err := r.ListByRenter(ctx, renterID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return list[0], nil
}

// ListByRenter orders by booking date, newest first; equal dates keep the
// later insert first.
func (r *memoryBookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Booking{}
	for i := len(r.bookings) - 1; i >= 0; i-- {
		if b := r.bookings[i]; b.RenterID == renterID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	carserrors "carrental/internal/cars/errors"
	"carrental/pkg/model"

	"github.com/google/uuid"
)

// memoryCarRepository serializes availability changes with one mutex per car,
// mirroring the document-level atomicity of the Mongo implementation.
type memoryCarRepository struct {
	mu    sync.RWMutex
	cars  map[string]*model.Car
	locks map[string]*sync.Mutex
}

func NewMemoryCarRepository() CarRepository {
	return &memoryCarRepository{
		cars:  make(map[string]*model.Car),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *memoryCarRepository) Create(ctx context.Context, car *model.Car) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if car.ID == "" {
		car.ID = uuid.New().String()
	}
	if car.Availability == "" {
		car.Availability = model.AvailabilityFree
	}
	r.cars[car.ID] = cloneCar(car)
	r.locks[car.ID] = &sync.Mutex{}
	return nil
}

func (r *memoryCarRepository) FindByID(ctx context.Context, id string) (*model.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock, ok := r.lockFor(id)
	if !ok {
		return nil, carserrors.ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	return cloneCar(r.get(id)), nil
}

func (r *memoryCarRepository) FindByCategory(ctx context.Context, category string) ([]*model.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	ids := make([]string, 0, len(r.cars))
	for id, c := range r.cars {
		if category == "" || c.Category == category {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	out := make([]*model.Car, 0, len(ids))
	for _, id := range ids {
		if car, err := r.FindByID(ctx, id); err == nil {
			out = append(out, car)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryCarRepository) TryReserve(ctx context.Context, id string, from, until, now time.Time) (*model.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock, ok := r.lockFor(id)
	if !ok {
		return nil, carserrors.ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	car := r.get(id)
	if !car.Reservable(now) {
		return nil, carserrors.ErrConflict
	}
	car.Availability = model.AvailabilityReserved
	car.ReservedFrom = &from
	car.ReservedUntil = &until
	return cloneCar(car), nil
}

func (r *memoryCarRepository) Release(ctx context.Context, id string) (*model.Car, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	lock, ok := r.lockFor(id)
	if !ok {
		return nil, false, carserrors.ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()

	car := r.get(id)
	if !car.IsReserved() {
		return cloneCar(car), false, nil
	}
	free(car)
	return cloneCar(car), true, nil
}

func (r *memoryCarRepository) ReleaseIfLapsed(ctx context.Context, id string, now time.Time) (*model.Car, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	lock, ok := r.lockFor(id)
	if !ok {
		return nil, false, nil
	}
	lock.Lock()
	defer lock.Unlock()

	car := r.get(id)
	if !car.ReservationLapsed(now) {
		return nil, false, nil
	}
	free(car)
	return cloneCar(car), true, nil
}

func (r *memoryCarRepository) FindLapsed(ctx context.Context, now time.Time, ids []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ids == nil {
		r.mu.RLock()
		ids = make([]string, 0, len(r.cars))
		for id := range r.cars {
			ids = append(ids, id)
		}
		r.mu.RUnlock()
	}

	var out []string
	for _, id := range ids {
		lock, ok := r.lockFor(id)
		if !ok {
			continue
		}
		lock.Lock()
		if r.get(id).ReservationLapsed(now) {
			out = append(out, id)
		}
		lock.Unlock()
	}
	sort.Strings(out)
	return out, nil
}

func (r *memoryCarRepository) lockFor(id string) (*sync.Mutex, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lock, ok := r.locks[id]
	return lock, ok
}

func (r *memoryCarRepository) get(id string) *model.Car {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cars[id]
}

func free(car *model.Car) {
	car.Availability = model.AvailabilityFree
	car.ReservedFrom = nil
	car.ReservedUntil = nil
}

func cloneCar(c *model.Car) *model.Car {
	out := *c
	if c.ReservedFrom != nil {
		from := *c.ReservedFrom
		out.ReservedFrom = &from
	}
	if c.ReservedUntil != nil {
		until := *c.ReservedUntil
		out.ReservedUntil = &until
	}
	return &out
}

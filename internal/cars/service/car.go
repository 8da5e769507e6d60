package service

import (
	"context"
	"slices"

	"carrental/internal/cars/cache"
	carserrors "carrental/internal/cars/errors"
	"carrental/internal/cars/repository"
	"carrental/pkg/clock"
	"carrental/pkg/config"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"

	"golang.org/x/sync/singleflight"
)

// CarService serves car reads. Every read first sweeps the cars it is about
// to return, so a lapsed reservation is never shown as reserved.
type CarService interface {
	List(ctx context.Context, category string) ([]*model.Car, error)
	GetByID(ctx context.Context, id string) (*model.Car, error)
	Release(ctx context.Context, id string) (*model.Car, error)
}

type carService struct {
	repo   repository.CarRepository
	ledger *Ledger
	cache  cache.ListingCache
	clock  clock.Clock
	cfg    *config.Config
	loads  singleflight.Group
}

func NewCarService(
	repo repository.CarRepository,
	ledger *Ledger,
	listings cache.ListingCache,
	clk clock.Clock,
	cfg *config.Config,
) CarService {
	return &carService{
		repo:   repo,
		ledger: ledger,
		cache:  listings,
		clock:  clk,
		cfg:    cfg,
	}
}

func (s *carService) List(ctx context.Context, category string) ([]*model.Car, error) {
	category = sanitizer.NormalizeCategory(category)

	cars, hit, err := s.cache.Get(ctx, category)
	if err != nil {
		s.cfg.Log.Warn("Listing cache unavailable, reading store", "category", category, "error", err)
	}
	if !hit {
		loaded, err := s.loadCategory(ctx, category)
		if err != nil {
			s.cfg.Log.Error("Failed to list cars", "category", category, "error", err)
			return nil, err
		}
		cars = cloneCars(loaded)
	}

	s.sweepBeforeServe(ctx, cars)
	return cars, nil
}

// loadCategory reads a category from the store and refills the cache.
// Concurrent misses share one read. The read is detached from the caller
// that started it, so one caller going away does not fail the others; each
// caller still stops waiting when its own ctx ends.
func (s *carService) loadCategory(ctx context.Context, category string) ([]*model.Car, error) {
	ch := s.loads.DoChan(category, func() (any, error) {
		loadCtx, cancel := s.detached(ctx)
		defer cancel()

		loaded, err := s.repo.FindByCategory(loadCtx, category)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(loadCtx, category, loaded); err != nil {
			s.cfg.Log.Warn("Failed to fill listing cache", "category", category, "error", err)
		}
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*model.Car), nil
	}
}

func (s *carService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.cfg.ReadTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, s.cfg.ReadTimeout)
}

func (s *carService) GetByID(ctx context.Context, id string) (*model.Car, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, carserrors.ErrNotFound
	}

	car, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.sweepBeforeServe(ctx, []*model.Car{car})
	return car, nil
}

// Release cancels the current reservation of a car.
func (s *carService) Release(ctx context.Context, id string) (*model.Car, error) {
	if err := s.ledger.Release(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, sanitizer.NormalizeID(id))
}

// sweepBeforeServe releases lapsed reservations among cars and presents them
// as free. A car whose release failed is still shown free, since Reserve
// treats a lapsed window as free too.
func (s *carService) sweepBeforeServe(ctx context.Context, cars []*model.Car) {
	now := s.clock.Now()

	var lapsed []string
	for _, c := range cars {
		if c.ReservationLapsed(now) {
			lapsed = append(lapsed, c.ID)
		}
	}
	if len(lapsed) == 0 {
		return
	}

	if _, err := s.ledger.SweepCars(ctx, lapsed, now); err != nil {
		s.cfg.Log.Warn("Sweep before serve failed", "car_ids", lapsed, "error", err)
	}
	for _, c := range cars {
		if slices.Contains(lapsed, c.ID) {
			c.Availability = model.AvailabilityFree
			c.ReservedFrom = nil
			c.ReservedUntil = nil
		}
	}
}

func cloneCars(cars []*model.Car) []*model.Car {
	out := make([]*model.Car, len(cars))
	for i, c := range cars {
		cp := *c
		out[i] = &cp
	}
	return out
}

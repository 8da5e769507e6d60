package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carrental/internal/cars/cache"
	carserrors "carrental/internal/cars/errors"
	"carrental/internal/cars/repository"
	"carrental/internal/events"
	"carrental/internal/metrics"
	"carrental/pkg/clock"
	"carrental/pkg/logger"
	"carrental/pkg/model"
)

// Ledger is the only writer of car availability. A car is either free or
// reserved for one window; a reservation whose window has ended counts as
// free even before a sweep flips it back.
type Ledger struct {
	repo      repository.CarRepository
	cache     cache.ListingCache
	publisher events.Publisher
	clock     clock.Clock
	log       *logger.Logger
}

func NewLedger(
	repo repository.CarRepository,
	listings cache.ListingCache,
	publisher events.Publisher,
	clk clock.Clock,
	log *logger.Logger,
) *Ledger {
	return &Ledger{
		repo:      repo,
		cache:     listings,
		publisher: publisher,
		clock:     clk,
		log:       log,
	}
}

// NormalizeWindow widens a window to whole UTC days: from becomes 00:00:00.000
// and until 23:59:59.999.
func NormalizeWindow(from, until time.Time) (time.Time, time.Time, error) {
	f := from.UTC()
	u := until.UTC()
	start := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if start.After(end) {
		return time.Time{}, time.Time{}, carserrors.ErrInvalidWindow
	}
	return start, end, nil
}

// Reserve moves carID from free to reserved for [from, until] in one atomic
// step. Concurrent calls for the same car see exactly one winner; the rest
// get ErrConflict.
func (l *Ledger) Reserve(ctx context.Context, carID string, from, until time.Time) (*model.Car, error) {
	start, end, err := NormalizeWindow(from, until)
	if err != nil {
		metrics.Reservations.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}

	carID = strings.TrimSpace(carID)
	if carID == "" {
		metrics.Reservations.WithLabelValues(metrics.ResultNotFound).Inc()
		return nil, carserrors.ErrNotFound
	}

	car, err := l.repo.TryReserve(ctx, carID, start, end, l.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, carserrors.ErrConflict):
			metrics.Reservations.WithLabelValues(metrics.ResultConflict).Inc()
		case errors.Is(err, carserrors.ErrNotFound):
			metrics.Reservations.WithLabelValues(metrics.ResultNotFound).Inc()
		default:
			metrics.Reservations.WithLabelValues(metrics.ResultError).Inc()
			l.log.Error("Failed to reserve car", "car_id", carID, "error", err)
		}
		return nil, err
	}

	metrics.Reservations.WithLabelValues(metrics.ResultOK).Inc()
	l.log.Info("Car reserved", "car_id", carID, "from", start, "until", end)
	l.afterTransition(ctx, car, events.TypeCarReserved, events.ReasonBooking)
	return car, nil
}

// Release returns carID to free. Releasing a free car is a no-op.
func (l *Ledger) Release(ctx context.Context, carID string) error {
	car, changed, err := l.repo.Release(ctx, strings.TrimSpace(carID))
	if err != nil {
		if !errors.Is(err, carserrors.ErrNotFound) {
			l.log.Error("Failed to release car", "car_id", carID, "error", err)
		}
		return err
	}
	if !changed {
		return nil
	}

	metrics.Releases.WithLabelValues(events.ReasonCancel).Inc()
	l.log.Info("Car released", "car_id", carID)
	l.afterTransition(ctx, car, events.TypeCarReleased, events.ReasonCancel)
	return nil
}

// SweepExpired releases every reservation whose window ended before now and
// returns the ids it released.
func (l *Ledger) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	return l.sweep(ctx, nil, now, metrics.TriggerBackground)
}

// SweepCars is SweepExpired limited to ids.
func (l *Ledger) SweepCars(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	if ids == nil {
		ids = []string{}
	}
	return l.sweep(ctx, ids, now, metrics.TriggerRead)
}

func (l *Ledger) sweep(ctx context.Context, ids []string, now time.Time, trigger string) ([]string, error) {
	started := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues(trigger).Observe(time.Since(started).Seconds())
	}()

	lapsed, err := l.repo.FindLapsed(ctx, now, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for lapsed reservations: %w", err)
	}

	released := []string{}
	var errs []error
	for _, id := range lapsed {
		car, changed, err := l.repo.ReleaseIfLapsed(ctx, id, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("car %s: %w", id, err))
			continue
		}
		if !changed {
			// A reserve or another sweep got there first.
			continue
		}
		released = append(released, id)
		metrics.SweptCars.WithLabelValues(trigger).Inc()
		metrics.Releases.WithLabelValues(events.ReasonSweep).Inc()
		l.afterTransition(ctx, car, events.TypeCarReleased, events.ReasonSweep)
	}

	if len(released) > 0 {
		l.log.Info("Lapsed reservations released", "trigger", trigger, "count", len(released), "car_ids", released)
	}
	return released, errors.Join(errs...)
}

func (l *Ledger) afterTransition(ctx context.Context, car *model.Car, eventType, reason string) {
	if err := l.cache.Invalidate(ctx, car.Category); err != nil {
		l.log.Warn("Failed to invalidate listing cache", "car_id", car.ID, "category", car.Category, "error", err)
	}

	payload := events.CarAvailabilityChanged{
		CarID:        car.ID,
		Availability: car.Availability,
		From:         car.ReservedFrom,
		Until:        car.ReservedUntil,
		Reason:       reason,
	}
	if err := l.publisher.Publish(ctx, eventType, car.ID, payload); err != nil {
		l.log.Warn("Failed to publish availability event", "car_id", car.ID, "event_type", eventType, "error", err)
	}
}

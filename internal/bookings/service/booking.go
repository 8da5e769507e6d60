package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/internal/bookings/repository"
	"carrental/internal/bookings/validator"
	carserrors "carrental/internal/cars/errors"
	carsservice "carrental/internal/cars/service"
	"carrental/internal/events"
	"carrental/internal/metrics"
	"carrental/pkg/clock"
	"carrental/pkg/config"
	"carrental/pkg/model"
	"carrental/pkg/sanitizer"
)

// CarReader loads the car being booked.
type CarReader interface {
	GetByID(ctx context.Context, id string) (*model.Car, error)
}

// AvailabilityLedger is the part of the ledger the coordinator drives.
type AvailabilityLedger interface {
	Reserve(ctx context.Context, carID string, from, until time.Time) (*model.Car, error)
	Release(ctx context.Context, carID string) error
}

type BookingService interface {
	CreateBooking(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error)
	// LatestBooking returns (nil, nil) when the renter has no bookings.
	LatestBooking(ctx context.Context, renterID string) (*model.Booking, error)
	History(ctx context.Context, renterID string) ([]*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	cars      CarReader
	ledger    AvailabilityLedger
	validator *validator.BookingValidator
	publisher events.Publisher
	clock     clock.Clock
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	cars CarReader,
	ledger AvailabilityLedger,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		cars:      cars,
		ledger:    ledger,
		validator: validator,
		publisher: publisher,
		clock:     clk,
		cfg:       cfg,
	}
}

// CreateBooking validates the request, reserves the car and records the
// booking. If the record cannot be written the reservation is released
// again, so a failed booking never leaves the car held.
func (s *bookingService) CreateBooking(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	s.sanitize(req)
	if err := s.validator.Validate(req); err != nil {
		metrics.Bookings.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}

	from, until, err := carsservice.NormalizeWindow(req.From, req.Until)
	if err != nil {
		metrics.Bookings.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, bookingserrors.NewValidationError("until", "until must not be before from")
	}
	if from.Before(startOfDay(s.clock.Now())) {
		metrics.Bookings.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, bookingserrors.NewValidationError("from", "from must not be in the past")
	}

	car, err := s.cars.GetByID(ctx, req.CarID)
	if err != nil {
		if errors.Is(err, carserrors.ErrNotFound) {
			metrics.Bookings.WithLabelValues(metrics.ResultNotFound).Inc()
			return nil, err
		}
		metrics.Bookings.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%w: %w", bookingserrors.ErrTransientStore, err)
	}

	price, err := totalPrice(car.Price, from, until)
	if err != nil {
		metrics.Bookings.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}

	reserved, err := s.ledger.Reserve(ctx, req.CarID, from, until)
	if err != nil {
		switch {
		case errors.Is(err, carserrors.ErrConflict):
			metrics.Bookings.WithLabelValues(metrics.ResultConflict).Inc()
			s.cfg.Log.Info("Booking rejected, car unavailable", "car_id", req.CarID, "renter_id", req.RenterID)
			return nil, fmt.Errorf("%w: %w", bookingserrors.ErrCarUnavailable, err)
		case errors.Is(err, carserrors.ErrNotFound), errors.Is(err, carserrors.ErrInvalidWindow):
			metrics.Bookings.WithLabelValues(metrics.ResultInvalid).Inc()
			return nil, err
		default:
			metrics.Bookings.WithLabelValues(metrics.ResultError).Inc()
			return nil, fmt.Errorf("%w: %w", bookingserrors.ErrTransientStore, err)
		}
	}

	booking := &model.Booking{
		CarID:         reserved.ID,
		RenterID:      req.RenterID,
		OwnerID:       car.OwnerID,
		CarModel:      car.Model,
		StartDate:     from,
		EndDate:       until,
		Price:         price,
		PaymentMethod: req.PaymentMethod,
		Renter:        req.Renter,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, s.compensate(ctx, booking, err)
	}

	metrics.Bookings.WithLabelValues(metrics.ResultOK).Inc()
	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"car_id", booking.CarID,
		"renter_id", booking.RenterID,
		"start_date", booking.StartDate,
		"end_date", booking.EndDate,
		"price", booking.Price,
	)

	payload := events.BookingCreated{
		BookingID: booking.ID,
		CarID:     booking.CarID,
		RenterID:  booking.RenterID,
		OwnerID:   booking.OwnerID,
		From:      booking.StartDate,
		Until:     booking.EndDate,
		Price:     booking.Price,
	}
	if err := s.publisher.Publish(ctx, events.TypeBookingCreated, booking.CarID, payload); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event", "id", booking.ID, "error", err)
	}

	return booking, nil
}

// compensate releases the reservation taken for a booking that could not be
// written. The release runs on a fresh context so a cancelled request still
// rolls back.
func (s *bookingService) compensate(ctx context.Context, booking *model.Booking, persistErr error) error {
	s.cfg.Log.Error("Failed to persist booking, releasing reservation",
		"car_id", booking.CarID,
		"renter_id", booking.RenterID,
		"error", persistErr,
	)

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	err := fmt.Errorf("%w: %w", bookingserrors.ErrTransientStore, persistErr)
	if releaseErr := s.ledger.Release(releaseCtx, booking.CarID); releaseErr != nil {
		metrics.Bookings.WithLabelValues(metrics.ResultError).Inc()
		s.cfg.Log.Error("Compensating release failed, car left reserved",
			"car_id", booking.CarID,
			"error", releaseErr,
		)
		return errors.Join(err, fmt.Errorf("failed to release car %s: %w", booking.CarID, releaseErr))
	}

	metrics.Bookings.WithLabelValues(metrics.ResultCompensated).Inc()
	return err
}

func (s *bookingService) LatestBooking(ctx context.Context, renterID string) (*model.Booking, error) {
	renterID = sanitizer.NormalizeID(renterID)
	if renterID == "" {
		return nil, bookingserrors.NewValidationError("renter_id", "renter_id is required")
	}

	booking, err := s.repo.LatestByRenter(ctx, renterID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, nil
		}
		s.cfg.Log.Error("Failed to load latest booking", "renter_id", renterID, "error", err)
		return nil, fmt.Errorf("%w: %w", bookingserrors.ErrTransientStore, err)
	}
	return booking, nil
}

func (s *bookingService) History(ctx context.Context, renterID string) ([]*model.Booking, error) {
	renterID = sanitizer.NormalizeID(renterID)
	if renterID == "" {
		return nil, bookingserrors.NewValidationError("renter_id", "renter_id is required")
	}

	bookings, err := s.repo.ListByRenter(ctx, renterID)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "renter_id", renterID, "error", err)
		return nil, fmt.Errorf("%w: %w", bookingserrors.ErrTransientStore, err)
	}
	return bookings, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, bookingserrors.ErrNotFound
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to load booking", "id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", bookingserrors.ErrTransientStore, err)
	}
	return booking, nil
}

func (s *bookingService) sanitize(req *model.CreateBookingRequest) {
	req.CarID = sanitizer.NormalizeID(req.CarID)
	req.RenterID = sanitizer.NormalizeID(req.RenterID)
	req.PaymentMethod = sanitizer.NormalizePaymentMethod(req.PaymentMethod)
	req.Renter.Name = sanitizer.NormalizeName(req.Renter.Name)
	req.Renter.IdentityNumber = sanitizer.NormalizeIdentityNumber(req.Renter.IdentityNumber)
	req.Renter.Phone = sanitizer.NormalizePhone(req.Renter.Phone)
	req.Renter.Email = sanitizer.NormalizeEmail(req.Renter.Email)
}

// totalPrice charges every calendar day of the window, both ends included,
// rounded to cents.
func totalPrice(perDay float64, from, until time.Time) (float64, error) {
	days := int(until.Sub(from)/(24*time.Hour)) + 1
	total := math.Round(perDay*float64(days)*100) / 100
	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 {
		return 0, bookingserrors.NewValidationError("price", fmt.Sprintf("total price %v is not a valid amount", total))
	}
	return total, nil
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

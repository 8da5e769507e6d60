package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/internal/bookings/service"
	carserrors "carrental/internal/cars/errors"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// createBookingBody is the wire form of a booking request. Dates arrive as
// strings so both "2025-06-01" and RFC3339 are accepted.
type createBookingBody struct {
	CarID         string       `json:"car_id"`
	RenterID      string       `json:"renter_id"`
	From          string       `json:"from"`
	Until         string       `json:"until"`
	PaymentMethod string       `json:"payment_method"`
	Renter        model.Renter `json:"renter"`
}

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body createBookingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	req, appErr := body.toRequest()
	if appErr != nil {
		h.writeError(w, "Create", appErr)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), req)
	if err != nil {
		h.writeError(w, "Create", toAppError(err, req.CarID))
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Latest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	renterID, err := httputil.RequiredQuery(r, "renter_id")
	if err != nil {
		h.writeError(w, "Latest", err)
		return
	}

	booking, err := h.service.LatestBooking(r.Context(), renterID)
	if err != nil {
		h.writeError(w, "Latest", toAppError(err, ""))
		return
	}
	if booking == nil {
		h.writeError(w, "Latest", apperrors.NotFound("Booking"))
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Latest", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) History(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	renterID, err := httputil.RequiredQuery(r, "renter_id")
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	bookings, err := h.service.History(r.Context(), renterID)
	if err != nil {
		h.writeError(w, "History", toAppError(err, ""))
		return
	}

	if err := httputil.WriteList(w, bookings, len(bookings)); err != nil {
		h.log.Error("failed to write list response", "handler", "History", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			h.writeError(w, "GetByID", apperrors.NotFoundWithID("Booking", id))
			return
		}
		h.writeError(w, "GetByID", toAppError(err, ""))
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (b *createBookingBody) toRequest() (*model.CreateBookingRequest, *apperrors.AppError) {
	from, err := httputil.ParseDate(b.From)
	if err != nil {
		return nil, apperrors.Validation("from", "from must be a date like 2025-06-01")
	}
	until, err := httputil.ParseDate(b.Until)
	if err != nil {
		return nil, apperrors.Validation("until", "until must be a date like 2025-06-05")
	}

	return &model.CreateBookingRequest{
		CarID:         b.CarID,
		RenterID:      b.RenterID,
		From:          from,
		Until:         until,
		PaymentMethod: b.PaymentMethod,
		Renter:        b.Renter,
	}, nil
}

func toAppError(err error, carID string) *apperrors.AppError {
	if verr, ok := bookingserrors.AsValidationError(err); ok {
		return apperrors.Validation(verr.Field, verr.Message)
	}

	switch {
	case apperrors.IsAppError(err):
		return apperrors.AsAppError(err)
	case errors.Is(err, bookingserrors.ErrCarUnavailable):
		return apperrors.CarUnavailable(carID)
	case errors.Is(err, carserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Car", carID)
	case errors.Is(err, carserrors.ErrInvalidWindow):
		return apperrors.Validation("until", err.Error())
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFound("Booking")
	default:
		return apperrors.TransientStore(err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.History)
	router.GET("/api/v1/bookings/latest", h.Latest)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
}

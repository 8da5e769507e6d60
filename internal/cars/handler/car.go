package handler

import (
	"errors"
	"net/http"

	carserrors "carrental/internal/cars/errors"
	"carrental/internal/cars/service"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type CarHandler struct {
	service service.CarService
	log     *logger.Logger
}

func NewCarHandler(service service.CarService, log *logger.Logger) *CarHandler {
	return &CarHandler{
		service: service,
		log:     log,
	}
}

func (h *CarHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cars, err := h.service.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.writeError(w, "List", toAppError(err, ""))
		return
	}

	if err := httputil.WriteList(w, cars, len(cars)); err != nil {
		h.log.Error("failed to write list response", "handler", "List", "operation", "WriteList", "error", err)
	}
}

func (h *CarHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	car, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", toAppError(err, id))
		return
	}

	if err := httputil.WriteSuccess(w, car); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CarHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	car, err := h.service.Release(r.Context(), id)
	if err != nil {
		h.writeError(w, "Release", toAppError(err, id))
		return
	}

	if err := httputil.WriteSuccess(w, car); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CarHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func toAppError(err error, id string) *apperrors.AppError {
	switch {
	case apperrors.IsAppError(err):
		return apperrors.AsAppError(err)
	case errors.Is(err, carserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Car", id)
	case errors.Is(err, carserrors.ErrConflict):
		return apperrors.Conflict(err.Error())
	case errors.Is(err, carserrors.ErrInvalidWindow):
		return apperrors.Validation("until", err.Error())
	default:
		return apperrors.TransientStore(err)
	}
}

func (h *CarHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/cars", h.List)
	router.GET("/api/v1/cars/id/:id", h.GetByID)
	router.POST("/api/v1/cars/id/:id/release", h.Release)
}

package handler

import (
	"encoding/json"
	"net/http"

	"carrental/internal/chats/service"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type ChatHandler struct {
	service service.ChatService
	log     *logger.Logger
}

func NewChatHandler(service service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		log:     log,
	}
}

type markReadRequest struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	roomID, err := httputil.RequiredQuery(r, "room_id")
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	history, err := h.service.History(r.Context(), roomID)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	if err := httputil.WriteList(w, history, len(history)); err != nil {
		h.log.Error("failed to write list response", "handler", "History", "operation", "WriteList", "error", err)
	}
}

func (h *ChatHandler) Summaries(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.RequiredQuery(r, "user_id")
	if err != nil {
		h.writeError(w, "Summaries", err)
		return
	}

	summaries, err := h.service.Summaries(r.Context(), userID)
	if err != nil {
		h.writeError(w, "Summaries", err)
		return
	}

	if err := httputil.WriteList(w, summaries, len(summaries)); err != nil {
		h.log.Error("failed to write list response", "handler", "Summaries", "operation", "WriteList", "error", err)
	}
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "MarkRead", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.MarkRead(r.Context(), req.RoomID, req.UserID); err != nil {
		h.writeError(w, "MarkRead", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ChatHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ChatHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/chats/history", h.History)
	router.GET("/api/v1/chats", h.Summaries)
	router.POST("/api/v1/chats/read", h.MarkRead)
}

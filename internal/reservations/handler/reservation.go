package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"innkeep/internal/reservations/service"
	apperrors "innkeep/pkg/errors"
	httputil "innkeep/pkg/http"
	"innkeep/pkg/logger"
	"innkeep/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

// Create accepts a reservation request. On success the booking row exists in
// pending status; confirmation happens asynchronously on the command queue.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.Reserve(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, booking)
}

type paymentRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// ConfirmPayment hands the confirmation off to the queue and returns 202.
func (h *ReservationHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseID(ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.ConfirmPayment(r.Context(), id, req.AmountCents); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteAccepted(w, map[string]any{"booking_id": id, "status": "processing"})
}

// Cancel hands the cancellation off to the queue and returns 202.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseID(ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteAccepted(w, map[string]any{"booking_id": id, "status": "processing"})
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := parseID(ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, booking)
}

// QueueStats exposes the processing counters for operators.
func (h *ReservationHandler) QueueStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	httputil.WriteSuccess(w, h.service.QueueStats())
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	// httprouter forbids a static sibling next to :id, so the stats route
	// lives under /queue.
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/queue/stats", h.QueueStats)
	router.GET("/api/v1/reservations/:id", h.GetByID)
	router.POST("/api/v1/reservations/:id/payment", h.ConfirmPayment)
	router.DELETE("/api/v1/reservations/:id", h.Cancel)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("Booking ID must be a positive integer")
	}
	return id, nil
}

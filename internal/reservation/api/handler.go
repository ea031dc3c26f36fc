package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"bus-reservation/internal/auth"
	"bus-reservation/internal/logger"
	"bus-reservation/internal/models"
	"bus-reservation/internal/reservation"
	"bus-reservation/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	ReservationService *reservation.Service
	Logger             *logger.Logger
}

func NewHandler(service *reservation.Service, log *logger.Logger) *Handler {
	return &Handler{ReservationService: service, Logger: log}
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", "missing user identity"))
		return
	}

	var req models.CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateReservation: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateReservation: user=%s trip=%s seat=%s", userID, req.TripID, req.SeatID))

	confirmation, err := h.ReservationService.CreateReservation(r.Context(), userID, req)
	if err != nil {
		h.writeReservationError(w, "CreateReservation", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Reservation created", confirmation))
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", "missing user identity"))
		return
	}

	reservationID := chi.URLParam(r, "reservationId")
	h.Logger.Info("API", fmt.Sprintf("CancelReservation: user=%s reservation=%s", userID, reservationID))

	if err := h.ReservationService.CancelReservation(r.Context(), userID, reservationID); err != nil {
		h.writeReservationError(w, "CancelReservation", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Reservation cancelled", nil))
}

func (h *Handler) GetUserReservations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", "missing user identity"))
		return
	}

	reservations, err := h.ReservationService.GetUserReservations(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetUserReservations: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load reservations", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", reservations))
}

// ReconcileTrip recounts a trip's capacity counter. Admin-facing safety
// valve; reports the corrected drift.
func (h *Handler) ReconcileTrip(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	drift, err := h.ReservationService.ReconcileTrip(r.Context(), tripID)
	if err != nil {
		h.writeReservationError(w, "ReconcileTrip", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Reconciliation complete", map[string]int{"drift": drift}))
}

func (h *Handler) writeReservationError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, reservation.ErrNotFound):
		h.Logger.Warn("API", fmt.Sprintf("%s: not found: %v", op, err))
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Reservation or seat not found", err.Error()))
	case errors.Is(err, reservation.ErrSeatUnavailable):
		h.Logger.Info("API", fmt.Sprintf("%s: seat unavailable", op))
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Seat is no longer available", err.Error()))
	case errors.Is(err, reservation.ErrSeatLocked):
		h.Logger.Info("API", fmt.Sprintf("%s: seat locked", op))
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Seat is being booked by someone else", err.Error()))
	case errors.Is(err, reservation.ErrAlreadyCancelled):
		h.Logger.Warn("API", fmt.Sprintf("%s: already cancelled", op))
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Reservation is already cancelled", err.Error()))
	case errors.Is(err, reservation.ErrCapacityInconsistent):
		// Data corruption signal, not a user error. Keep it loud.
		h.Logger.Error("API", fmt.Sprintf("%s: CAPACITY INCONSISTENT: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Booking failed due to an internal inconsistency", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Reservation operation failed", err.Error()))
	}
}

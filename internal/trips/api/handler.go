package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"bus-reservation/internal/logger"
	"bus-reservation/internal/reservation"
	"bus-reservation/internal/trips"
	"bus-reservation/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	TripService *trips.TripService
	Logger      *logger.Logger
}

func NewHandler(service *trips.TripService, log *logger.Logger) *Handler {
	return &Handler{TripService: service, Logger: log}
}

func (h *Handler) SearchTrips(w http.ResponseWriter, r *http.Request) {
	departureCity := r.URL.Query().Get("departure_city")
	arrivalCity := r.URL.Query().Get("arrival_city")
	dateStr := r.URL.Query().Get("departure_date")

	if departureCity == "" || arrivalCity == "" || dateStr == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Missing search parameters", "departure_city, arrival_city and departure_date are required"))
		return
	}

	departureDate, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid departure_date", "expected format YYYY-MM-DD"))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("SearchTrips: %s -> %s on %s", departureCity, arrivalCity, dateStr))

	results, err := h.TripService.SearchTrips(r.Context(), departureCity, arrivalCity, departureDate)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SearchTrips: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Trip search failed", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", results))
}

func (h *Handler) GetTripSeats(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")
	h.Logger.Info("API", fmt.Sprintf("GetTripSeats: trip=%s", tripID))

	seats, err := h.TripService.GetTripSeats(r.Context(), tripID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Trip not found", err.Error()))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetTripSeats: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load seats", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", seats))
}

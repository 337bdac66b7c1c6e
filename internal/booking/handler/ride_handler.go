package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"carpool/internal/booking/domain"
	"carpool/internal/booking/service"
	"carpool/pkg/auth"
	"carpool/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// RideHandler handles HTTP requests for rides
type RideHandler struct {
	createRide *service.CreateRideUseCase
	cancelRide *service.CancelRideUseCase
	deleteRide *service.DeleteRideUseCase
	rideRepo   domain.RideRepository
	gate       *service.AccessGate
	validate   *validator.Validate
	logger     logger.Logger
}

// NewRideHandler creates a new ride handler
func NewRideHandler(
	createRide *service.CreateRideUseCase,
	cancelRide *service.CancelRideUseCase,
	deleteRide *service.DeleteRideUseCase,
	rideRepo domain.RideRepository,
	gate *service.AccessGate,
	logger logger.Logger,
) *RideHandler {
	return &RideHandler{
		createRide: createRide,
		cancelRide: cancelRide,
		deleteRide: deleteRide,
		rideRepo:   rideRepo,
		gate:       gate,
		validate:   validator.New(),
		logger:     logger,
	}
}

// CreateRideRequest represents the HTTP request for publishing a ride
type CreateRideRequest struct {
	FromLocation   string  `json:"from_location" validate:"required"`
	ToLocation     string  `json:"to_location" validate:"required"`
	DepartureAt    string  `json:"departure_at" validate:"required"`
	TotalSeats     int     `json:"total_seats" validate:"required,min=1,max=8"`
	PricePerSeat   float64 `json:"price_per_seat" validate:"min=0"`
	InstantBooking bool    `json:"instant_booking"`
	ChatEnabled    bool    `json:"chat_enabled"`
}

// CreateRide handles POST /rides
func (h *RideHandler) CreateRide(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	var req CreateRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	departureAt, err := time.Parse(time.RFC3339, req.DepartureAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "departure_at must be RFC3339"})
		return
	}

	result, err := h.createRide.Execute(r.Context(), service.CreateRideCommand{
		CreatorID:      claims.UserID,
		FromLocation:   req.FromLocation,
		ToLocation:     req.ToLocation,
		DepartureAt:    departureAt,
		TotalSeats:     req.TotalSeats,
		PricePerSeat:   req.PricePerSeat,
		InstantBooking: req.InstantBooking,
		ChatEnabled:    req.ChatEnabled,
	})
	if err != nil {
		h.logger.WithFields(logger.LogFields{"creator_id": claims.UserID}).Error("create_ride_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetRide handles GET /rides/{ride_id}
func (h *RideHandler) GetRide(w http.ResponseWriter, r *http.Request) {
	rideID := r.PathValue("ride_id")
	ride, err := h.rideRepo.FindByID(r.Context(), rideID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, service.ToRideDTO(ride))
}

// ListRides handles GET /rides. Without a filter it returns rides open for
// booking; ?mine=true narrows to the caller's own rides, any status.
func (h *RideHandler) ListRides(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	var (
		rides []*domain.Ride
		err   error
	)
	if r.URL.Query().Get("mine") == "true" {
		rides, err = h.rideRepo.FindByCreator(r.Context(), claims.UserID)
	} else {
		rides, err = h.rideRepo.FindActive(r.Context())
	}
	if err != nil {
		h.logger.Error("list_rides_failed", err)
		writeDomainError(w, err)
		return
	}

	dtos := make([]*service.RideDTO, 0, len(rides))
	for _, ride := range rides {
		dtos = append(dtos, service.ToRideDTO(ride))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rides": dtos})
}

// CancelRideRequest represents the HTTP request for cancelling a ride
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelRide handles POST /rides/{ride_id}/cancel
func (h *RideHandler) CancelRide(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	rideID := r.PathValue("ride_id")

	var req CancelRideRequest
	if r.Body != nil && r.ContentLength > 0 {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "Cancelled by driver"
	}

	err := h.cancelRide.Execute(r.Context(), service.CancelRideCommand{
		RideID:   rideID,
		DriverID: claims.UserID,
		Reason:   req.Reason,
	})
	if err != nil {
		h.logger.WithFields(logger.LogFields{"ride_id": rideID}).Error("cancel_ride_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Ride cancelled",
		"ride_id": rideID,
	})
}

// DeleteRide handles DELETE /rides/{ride_id}
func (h *RideHandler) DeleteRide(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	rideID := r.PathValue("ride_id")

	err := h.deleteRide.Execute(r.Context(), service.DeleteRideCommand{
		RideID:   rideID,
		DriverID: claims.UserID,
	})
	if err != nil {
		h.logger.WithFields(logger.LogFields{"ride_id": rideID}).Error("delete_ride_failed", err)
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RosterEntryDTO is the output shape for roster entries
type RosterEntryDTO struct {
	PassengerID string `json:"passenger_id"`
	RequestID   string `json:"request_id"`
	SeatsBooked int    `json:"seats_booked"`
	JoinedAt    string `json:"joined_at"`
}

// GetRoster handles GET /rides/{ride_id}/roster. Participants only.
func (h *RideHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	rideID := r.PathValue("ride_id")

	participant, err := h.gate.IsParticipant(r.Context(), rideID, claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !participant {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a participant of this ride"})
		return
	}

	entries, err := h.gate.Roster(r.Context(), rideID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]*RosterEntryDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, &RosterEntryDTO{
			PassengerID: entry.PassengerID,
			RequestID:   entry.RequestID,
			SeatsBooked: entry.SeatsBooked,
			JoinedAt:    entry.JoinedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"roster": dtos})
}

// Health returns health check status
func (h *RideHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package handler

import (
	"encoding/json"
	"net/http"

	"carpool/internal/booking/domain"
	"carpool/internal/booking/service"
	"carpool/pkg/auth"
	"carpool/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// RequestHandler handles HTTP requests for the join request lifecycle
type RequestHandler struct {
	submitRequest *service.SubmitRequestUseCase
	acceptRequest *service.AcceptRequestUseCase
	rejectRequest *service.RejectRequestUseCase
	cancelRequest *service.CancelRequestUseCase
	instantBook   *service.InstantBookUseCase
	rideRepo      domain.RideRepository
	requestRepo   domain.RequestRepository
	validate      *validator.Validate
	logger        logger.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(
	submitRequest *service.SubmitRequestUseCase,
	acceptRequest *service.AcceptRequestUseCase,
	rejectRequest *service.RejectRequestUseCase,
	cancelRequest *service.CancelRequestUseCase,
	instantBook *service.InstantBookUseCase,
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	logger logger.Logger,
) *RequestHandler {
	return &RequestHandler{
		submitRequest: submitRequest,
		acceptRequest: acceptRequest,
		rejectRequest: rejectRequest,
		cancelRequest: cancelRequest,
		instantBook:   instantBook,
		rideRepo:      rideRepo,
		requestRepo:   requestRepo,
		validate:      validator.New(),
		logger:        logger,
	}
}

// SubmitRequestRequest represents the HTTP request for joining a ride
type SubmitRequestRequest struct {
	Seats   int    `json:"seats" validate:"required,min=1,max=8"`
	Message string `json:"message,omitempty" validate:"max=500"`
}

// SubmitRequest handles POST /rides/{ride_id}/requests
func (h *RequestHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	rideID := r.PathValue("ride_id")

	var req SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.submitRequest.Execute(r.Context(), service.SubmitRequestCommand{
		RideID:        rideID,
		PassengerID:   claims.UserID,
		PassengerName: claims.Name,
		Seats:         req.Seats,
		Message:       req.Message,
	})
	if err != nil {
		h.logger.WithFields(logger.LogFields{
			"ride_id":      rideID,
			"passenger_id": claims.UserID,
		}).Error("submit_request_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// InstantBook handles POST /rides/{ride_id}/book
func (h *RequestHandler) InstantBook(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	rideID := r.PathValue("ride_id")

	var req SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.instantBook.Execute(r.Context(), service.InstantBookCommand{
		RideID:        rideID,
		PassengerID:   claims.UserID,
		PassengerName: claims.Name,
		Seats:         req.Seats,
		Message:       req.Message,
	})
	if err != nil {
		h.logger.WithFields(logger.LogFields{
			"ride_id":      rideID,
			"passenger_id": claims.UserID,
		}).Error("instant_book_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// RespondRequest represents the driver's response body (optional note)
type RespondRequest struct {
	Note   string `json:"note,omitempty" validate:"max=500"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// AcceptRequest handles POST /requests/{request_id}/accept
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	requestID := r.PathValue("request_id")

	var req RespondRequest
	if r.Body != nil && r.ContentLength > 0 {
		json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.acceptRequest.Execute(r.Context(), service.AcceptRequestCommand{
		RequestID: requestID,
		DriverID:  claims.UserID,
		Note:      req.Note,
	})
	if err != nil {
		h.logger.WithFields(logger.LogFields{
			"request_id": requestID,
			"driver_id":  claims.UserID,
		}).Error("accept_request_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RejectRequest handles POST /requests/{request_id}/reject
func (h *RequestHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	requestID := r.PathValue("request_id")

	var req RespondRequest
	if r.Body != nil && r.ContentLength > 0 {
		json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.rejectRequest.Execute(r.Context(), service.RejectRequestCommand{
		RequestID: requestID,
		DriverID:  claims.UserID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.logger.WithFields(logger.LogFields{
			"request_id": requestID,
			"driver_id":  claims.UserID,
		}).Error("reject_request_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CancelRequest handles POST /requests/{request_id}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	requestID := r.PathValue("request_id")

	result, err := h.cancelRequest.Execute(r.Context(), service.CancelRequestCommand{
		RequestID:   requestID,
		PassengerID: claims.UserID,
	})
	if err != nil {
		h.logger.WithFields(logger.LogFields{
			"request_id":   requestID,
			"passenger_id": claims.UserID,
		}).Error("cancel_request_failed", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListRideRequests handles GET /rides/{ride_id}/requests. Ride owner only:
// pending requests expose passenger intent the rest of the world has no
// business seeing.
func (h *RequestHandler) ListRideRequests(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	rideID := r.PathValue("ride_id")

	ride, err := h.rideRepo.FindByID(r.Context(), rideID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ride.IsCreator(claims.UserID) {
		writeDomainError(w, domain.ErrNotRideOwner)
		return
	}

	requests, err := h.requestRepo.FindByRide(r.Context(), rideID)
	if err != nil {
		h.logger.WithFields(logger.LogFields{"ride_id": rideID}).Error("list_ride_requests_failed", err)
		writeDomainError(w, err)
		return
	}

	dtos := make([]*service.RequestDTO, 0, len(requests))
	for _, request := range requests {
		dtos = append(dtos, service.ToRequestDTO(request))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": dtos})
}

// ListMyRequests handles GET /requests
func (h *RequestHandler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing claims"})
		return
	}

	requests, err := h.requestRepo.FindByPassenger(r.Context(), claims.UserID)
	if err != nil {
		h.logger.WithFields(logger.LogFields{"passenger_id": claims.UserID}).Error("list_my_requests_failed", err)
		writeDomainError(w, err)
		return
	}

	dtos := make([]*service.RequestDTO, 0, len(requests))
	for _, request := range requests {
		dtos = append(dtos, service.ToRequestDTO(request))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": dtos})
}

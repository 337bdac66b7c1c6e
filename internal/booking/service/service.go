package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking/domain"

	"github.com/google/uuid"
)

// EventPublisher is the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event domain.DomainEvent) error
}

// RequestDTO is the output shape for join requests
type RequestDTO struct {
	ID             string `json:"id"`
	RideID         string `json:"ride_id"`
	PassengerID    string `json:"passenger_id"`
	SeatsRequested int    `json:"seats_requested"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	ResponseNote   string `json:"response_note,omitempty"`
	CreatedAt      string `json:"created_at"`
	RespondedAt    string `json:"responded_at,omitempty"`
}

// RideDTO is the output shape for rides
type RideDTO struct {
	ID             string  `json:"id"`
	CreatorID      string  `json:"creator_id"`
	FromLocation   string  `json:"from_location"`
	ToLocation     string  `json:"to_location"`
	DepartureAt    string  `json:"departure_at"`
	TotalSeats     int     `json:"total_seats"`
	AvailableSeats int     `json:"available_seats"`
	PricePerSeat   float64 `json:"price_per_seat"`
	Status         string  `json:"status"`
	Full           bool    `json:"full"`
	InstantBooking bool    `json:"instant_booking"`
	ChatEnabled    bool    `json:"chat_enabled"`
}

func ToRequestDTO(req *domain.JoinRequest) *RequestDTO {
	dto := &RequestDTO{
		ID:             req.ID(),
		RideID:         req.RideID(),
		PassengerID:    req.PassengerID(),
		SeatsRequested: req.SeatsRequested(),
		Status:         req.Status().String(),
		Message:        req.Message(),
		ResponseNote:   req.ResponseNote(),
		CreatedAt:      req.CreatedAt().Format(time.RFC3339),
	}
	if t := req.RespondedAt(); t != nil {
		dto.RespondedAt = t.Format(time.RFC3339)
	}
	return dto
}

func ToRideDTO(ride *domain.Ride) *RideDTO {
	return &RideDTO{
		ID:             ride.ID(),
		CreatorID:      ride.CreatorID(),
		FromLocation:   ride.FromLocation(),
		ToLocation:     ride.ToLocation(),
		DepartureAt:    ride.DepartureAt().Format(time.RFC3339),
		TotalSeats:     ride.TotalSeats(),
		AvailableSeats: ride.AvailableSeats(),
		PricePerSeat:   ride.PricePerSeat(),
		Status:         ride.Status().String(),
		Full:           ride.IsFull(),
		InstantBooking: ride.InstantBooking(),
		ChatEnabled:    ride.ChatEnabled(),
	}
}

// Effect builders. Every effect is queued in the same commit as the
// transition it belongs to; the dispatcher applies it later.

func newNotifyEffect(kind domain.EffectKind, req *domain.JoinRequest, userID, notifType, title, message string) *domain.Effect {
	return &domain.Effect{
		ID:        uuid.NewString(),
		RequestID: req.ID(),
		RideID:    req.RideID(),
		Kind:      kind,
		UserID:    userID,
		Title:     title,
		Message:   message,
		Payload: map[string]any{
			"type":       notifType,
			"ride_id":    req.RideID(),
			"request_id": req.ID(),
		},
		Status:    domain.EffectPending,
		CreatedAt: time.Now(),
	}
}

func newRosterUpsertEffect(req *domain.JoinRequest) *domain.Effect {
	return &domain.Effect{
		ID:        uuid.NewString(),
		RequestID: req.ID(),
		RideID:    req.RideID(),
		Kind:      domain.EffectRosterUpsert,
		UserID:    req.PassengerID(),
		Seats:     req.SeatsRequested(),
		Status:    domain.EffectPending,
		CreatedAt: time.Now(),
	}
}

func newRosterRemoveEffect(req *domain.JoinRequest) *domain.Effect {
	return &domain.Effect{
		ID:        uuid.NewString(),
		RequestID: req.ID(),
		RideID:    req.RideID(),
		Kind:      domain.EffectRosterRemove,
		UserID:    req.PassengerID(),
		Status:    domain.EffectPending,
		CreatedAt: time.Now(),
	}
}

func newChatEffect(kind domain.EffectKind, req *domain.JoinRequest) *domain.Effect {
	return &domain.Effect{
		ID:        uuid.NewString(),
		RequestID: req.ID(),
		RideID:    req.RideID(),
		Kind:      kind,
		UserID:    req.PassengerID(),
		Status:    domain.EffectPending,
		CreatedAt: time.Now(),
	}
}

func rideLabel(ride *domain.Ride) string {
	return fmt.Sprintf("%s to %s", ride.FromLocation(), ride.ToLocation())
}

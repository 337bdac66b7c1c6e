package domain

import (
	"fmt"
	"time"
)

// RequestStatus represents the state of a join request
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestAccepted  RequestStatus = "ACCEPTED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// String returns string representation of status
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid checks if status is valid
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected, RequestCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave this state.
// ACCEPTED is not terminal: an accepted request may still be cancelled.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestRejected || s == RequestCancelled
}

// requestTransitions is the closed transition table. Anything not listed
// here fails with ErrInvalidTransition.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestAccepted, RequestRejected, RequestCancelled},
	RequestAccepted: {RequestCancelled},
}

// CanTransition reports whether from -> to is a legal request transition
func CanTransition(from, to RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JoinRequest is a passenger's intent to occupy seats on a ride. Its state
// machine is driven only by driver action (accept/reject) or passenger
// action (cancel); seats are debited at accept time, never at submission.
type JoinRequest struct {
	id             string
	rideID         string
	passengerID    string
	seatsRequested int
	status         RequestStatus
	message        string
	responseNote   string
	createdAt      time.Time
	respondedAt    *time.Time
}

// NewJoinRequest creates a pending join request with validation
func NewJoinRequest(rideID, passengerID string, seats int, message string) (*JoinRequest, error) {
	if rideID == "" || passengerID == "" {
		return nil, fmt.Errorf("%w: ride id and passenger id are required", ErrValidation)
	}
	if seats < 1 {
		return nil, fmt.Errorf("%w: seats requested must be at least 1", ErrValidation)
	}

	return &JoinRequest{
		rideID:         rideID,
		passengerID:    passengerID,
		seatsRequested: seats,
		status:         RequestPending,
		message:        message,
		createdAt:      time.Now(),
	}, nil
}

// ReconstructJoinRequest reconstructs a request from persistence
func ReconstructJoinRequest(
	id string,
	rideID string,
	passengerID string,
	seats int,
	status RequestStatus,
	message string,
	responseNote string,
	createdAt time.Time,
	respondedAt *time.Time,
) *JoinRequest {
	return &JoinRequest{
		id:             id,
		rideID:         rideID,
		passengerID:    passengerID,
		seatsRequested: seats,
		status:         status,
		message:        message,
		responseNote:   responseNote,
		createdAt:      createdAt,
		respondedAt:    respondedAt,
	}
}

// Business methods

// Accept marks the request accepted. The caller reserves seats first; this
// method only moves the state machine.
func (j *JoinRequest) Accept(note string) error {
	return j.transition(RequestAccepted, note)
}

// Reject marks the request rejected with an optional reason
func (j *JoinRequest) Reject(reason string) error {
	return j.transition(RequestRejected, reason)
}

// Cancel marks the request cancelled. Legal from PENDING and ACCEPTED; the
// caller releases seats for an accepted request before calling this.
func (j *JoinRequest) Cancel() error {
	return j.transition(RequestCancelled, "")
}

// Revert rolls an in-flight transition back to PENDING. Used by the
// coordinator when the ledger step fails after the lifecycle step was
// tentatively computed, so no partial commit is observable.
func (j *JoinRequest) Revert() {
	j.status = RequestPending
	j.responseNote = ""
	j.respondedAt = nil
}

func (j *JoinRequest) transition(to RequestStatus, note string) error {
	if !CanTransition(j.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, to)
	}

	j.status = to
	if note != "" {
		j.responseNote = note
	}
	now := time.Now()
	j.respondedAt = &now
	return nil
}

// Query methods

// IsActive reports whether the request still binds the (ride, passenger)
// pair: at most one active request per pair may exist.
func (j *JoinRequest) IsActive() bool {
	return j.status == RequestPending || j.status == RequestAccepted
}

// Getters

func (j *JoinRequest) ID() string              { return j.id }
func (j *JoinRequest) RideID() string          { return j.rideID }
func (j *JoinRequest) PassengerID() string     { return j.passengerID }
func (j *JoinRequest) SeatsRequested() int     { return j.seatsRequested }
func (j *JoinRequest) Status() RequestStatus   { return j.status }
func (j *JoinRequest) Message() string         { return j.message }
func (j *JoinRequest) ResponseNote() string    { return j.responseNote }
func (j *JoinRequest) CreatedAt() time.Time    { return j.createdAt }
func (j *JoinRequest) RespondedAt() *time.Time { return j.respondedAt }

// SetID sets the request ID (used after persistence)
func (j *JoinRequest) SetID(id string) {
	j.id = id
}

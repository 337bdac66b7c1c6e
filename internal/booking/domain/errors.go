package domain

import "errors"

// Domain errors
var (
	ErrValidation             = errors.New("invalid booking input")
	ErrSelfBooking            = errors.New("driver cannot book own ride")
	ErrDuplicateRequest       = errors.New("active request already exists for this ride")
	ErrInsufficientSeats      = errors.New("not enough seats available")
	ErrInvalidTransition      = errors.New("illegal request state transition")
	ErrRideClosed             = errors.New("ride is no longer available")
	ErrBusy                   = errors.New("ride is busy, retry")
	ErrSeatInvariant          = errors.New("seat accounting invariant violated")
	ErrRideNotFound           = errors.New("ride not found")
	ErrRequestNotFound        = errors.New("request not found")
	ErrNotRideOwner           = errors.New("only the ride creator may do this")
	ErrInstantBookingDisabled = errors.New("ride does not allow instant booking")
	ErrRideHasPassengers      = errors.New("ride has accepted passengers and cannot be deleted")
)

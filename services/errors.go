package services

import "errors"

// Expected, typed outcomes of normal concurrent operation. Handlers map
// them to HTTP statuses; none of them is fatal to the process.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrAttendantNotFound = errors.New("attendant not found")
	ErrConflict          = errors.New("room already claimed by another attendant")
	ErrInvalidTransition = errors.New("operation not valid in the room's current state")
	ErrCapacityExceeded  = errors.New("chat capacity exceeded, please wait")
	ErrRoomClosed        = errors.New("room is closed")
	ErrAlreadyRated      = errors.New("csat already submitted")
	ErrNoAttendant       = errors.New("no attendant available")
	ErrRateLimited       = errors.New("too many rooms created, slow down")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidLogin      = errors.New("invalid credentials")
)

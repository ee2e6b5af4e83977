package models

import "errors"

// Domain specific errors. Handlers translate these into status codes; nothing
// below the HTTP layer swallows them.
var (
	ErrNotFound             = errors.New("requested item not found")
	ErrConflict             = errors.New("item already exists or conflict")
	ErrUnauthenticated      = errors.New("authentication required or invalid credentials")
	ErrForbidden            = errors.New("access denied")
	ErrValidation           = errors.New("validation failed")
	ErrInsufficientCapacity = errors.New("not enough seats available")
	ErrScheduleInactive     = errors.New("schedule is not active")
	ErrTimeOverlap          = errors.New("time overlap with another itinerary item")
	ErrInvalidGeometry      = errors.New("invalid geometry")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
)

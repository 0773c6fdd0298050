package lifecycle

import "errors"

var (
	ErrDatesRequired    = errors.New("tournament start and end dates are required")
	ErrInvalidDateRange = errors.New("tournament end date must not be before start date")
)

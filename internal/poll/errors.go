package poll

import "errors"

var (
	ErrNoOptions     = errors.New("poll needs at least two options")
	ErrInvalidPeriod = errors.New("poll open period out of range")
	ErrUnknownAction = errors.New("no handler for poll action")
)

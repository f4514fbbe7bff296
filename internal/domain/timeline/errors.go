package timeline

import "errors"

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrValidation       = errors.New("validation failed")
)

package schedule

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRangeTooLarge   = errors.New("date range too large")
)

package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrRunInProgress is returned when a run is requested while another is in flight
	ErrRunInProgress = errors.New("sync run already in progress")
)

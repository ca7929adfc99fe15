package store

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrCapacityConflict indicates the capacity check failed at commit
	// time, typically because a concurrent booking won the slot.
	ErrCapacityConflict = errors.New("store: center capacity exceeded for slot")

	// ErrVehicleBooked indicates the vehicle already holds an open booking.
	ErrVehicleBooked = errors.New("store: vehicle already has an open booking")

	// ErrFlagScheduled indicates the maintenance flag was already marked
	// scheduled.
	ErrFlagScheduled = errors.New("store: maintenance flag already scheduled")

	// ErrFlagExists indicates the vehicle already carries an unscheduled
	// flag.
	ErrFlagExists = errors.New("store: vehicle already flagged")

	// ErrInvalidTransition indicates a booking status change outside the
	// legal lifecycle graph.
	ErrInvalidTransition = errors.New("store: invalid booking status transition")
)

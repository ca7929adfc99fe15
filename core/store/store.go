// Package store defines the persistence interfaces consumed by the
// scheduling engine. Implementations live under core/store/memory and
// infra/store/sqlite.
package store

import (
	"context"
	"time"

	"fleetguard/core/model"
	"fleetguard/core/telemetry"
)

// BookingFilter narrows ListBookings results. Zero values match everything.
type BookingFilter struct {
	Status    *model.BookingStatus
	CenterID  string
	VehicleID string
	Limit     int
}

// BookingStore persists appointments. CreateBooking must atomically
// re-check bay capacity and the single-open-booking rule, insert the
// booking and mark the originating flag as scheduled; two concurrent
// callers must never both pass the capacity check for the same slot.
type BookingStore interface {
	// CreateBooking commits the provisional booking and flips flagID to
	// scheduled in one transaction. Returns ErrCapacityConflict when the
	// slot filled up since the availability check, ErrVehicleBooked when
	// the vehicle already holds an open booking, and ErrFlagScheduled when
	// the flag was scheduled by a concurrent batch.
	CreateBooking(ctx context.Context, b *model.Booking, flagID int64) error

	// CountOverlapping returns the number of non-cancelled bookings at the
	// center whose slot intersects [start, end).
	CountOverlapping(ctx context.Context, centerID string, start, end time.Time) (int, error)

	// TechnicianBusy reports whether the technician has an open booking
	// overlapping [start, end).
	TechnicianBusy(ctx context.Context, techID string, start, end time.Time) (bool, error)

	GetBooking(ctx context.Context, id string) (*model.Booking, error)

	// TransitionBooking moves the booking to next, enforcing the lifecycle
	// graph and stamping confirmation/completion timestamps. Returns
	// ErrInvalidTransition when the move is not legal; the booking is left
	// unchanged.
	TransitionBooking(ctx context.Context, id string, next model.BookingStatus) (*model.Booking, error)

	ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error)
}

// FleetStore provides vehicle, flag and telemetry access.
type FleetStore interface {
	GetVehicle(ctx context.Context, id string) (*model.Vehicle, error)
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	UpsertVehicle(ctx context.Context, v *model.Vehicle) error

	// UnscheduledFlag returns the newest unscheduled flag for the vehicle,
	// or ErrNotFound when the vehicle is not flagged.
	UnscheduledFlag(ctx context.Context, vehicleID string) (*model.MaintenanceFlag, error)
	ListUnscheduledFlags(ctx context.Context) ([]model.MaintenanceFlag, error)

	// CreateFlag inserts the flag unless the vehicle already carries an
	// unscheduled one, in which case ErrFlagExists is returned.
	CreateFlag(ctx context.Context, f *model.MaintenanceFlag) error

	// FlagCountsByDay returns, per region, the number of flags raised on
	// each of the last `days` days, oldest first. Input for forecasting.
	FlagCountsByDay(ctx context.Context, region string, days int, now time.Time) ([]int, error)

	InsertReading(ctx context.Context, r *telemetry.Reading) error
}

// ReferenceStore serves static reference data.
type ReferenceStore interface {
	GetCenter(ctx context.Context, id string) (*model.ServiceCenter, error)
	ListActiveCenters(ctx context.Context) ([]model.ServiceCenter, error)
	UpsertCenter(ctx context.Context, c *model.ServiceCenter) error

	ListTechnicians(ctx context.Context, centerID string) ([]model.Technician, error)
	UpsertTechnician(ctx context.Context, t *model.Technician) error
}

// Store combines all persistence concerns behind one backend.
type Store interface {
	BookingStore
	FleetStore
	ReferenceStore
	Close() error
}

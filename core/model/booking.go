package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus tracks the lifecycle of a service appointment.
type BookingStatus int

const (
	StatusProvisional BookingStatus = iota
	StatusConfirmed
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

// String returns the stored label for the status.
func (s BookingStatus) String() string {
	switch s {
	case StatusProvisional:
		return "provisional"
	case StatusConfirmed:
		return "confirmed"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus maps a stored label back to its enum value.
func ParseStatus(s string) (BookingStatus, error) {
	switch s {
	case "provisional":
		return StatusProvisional, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "in_progress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled":
		return StatusCancelled, nil
	}
	return 0, fmt.Errorf("unknown booking status %q", s)
}

// Open reports whether the status still occupies a bay slot. Cancelled and
// completed bookings release capacity.
func (s BookingStatus) Open() bool {
	return s != StatusCancelled && s != StatusCompleted
}

// CanTransition reports whether moving from s to next follows the legal
// lifecycle graph:
//
//	provisional -> confirmed -> in_progress -> completed
//	provisional|confirmed -> cancelled
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	switch s {
	case StatusProvisional:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted
	default:
		return false
	}
}

// Booking is a service appointment holding one bay at a center for one slot.
// Created in provisional status by the allocator; status advances only
// through explicit transition calls.
type Booking struct {
	ID            string        `json:"booking_id"`
	VehicleID     string        `json:"vehicle_id"`
	CenterID      string        `json:"center_id"`
	TechnicianID  string        `json:"tech_id,omitempty"`
	SlotStart     time.Time     `json:"slot_start"`
	SlotEnd       time.Time     `json:"slot_end"`
	Status        BookingStatus `json:"status"`
	PriorityScore float64       `json:"priority_score"`
	SeverityLevel string        `json:"severity_level"`
	ServiceType   string        `json:"service_type"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	ConfirmedAt   time.Time     `json:"confirmed_at"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// NewBookingID generates a globally unique booking identifier.
func NewBookingID() string {
	return "BKG-" + strings.ToUpper(uuid.NewString()[:8])
}

// Overlaps reports whether the booking slot intersects [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.SlotStart.Before(end) && b.SlotEnd.After(start)
}

package scheduler

import (
	"context"
	"time"

	"fleetguard/core/model"
)

// TechnicianSource lists the technicians employed at a center.
type TechnicianSource interface {
	ListTechnicians(ctx context.Context, centerID string) ([]model.Technician, error)
}

// ConflictChecker reports technician-level booking overlaps.
type ConflictChecker interface {
	TechnicianBusy(ctx context.Context, techID string, start, end time.Time) (bool, error)
}

// TechnicianMatcher finds a technician with free capacity for a slot.
// Assignment is an optimization: a nil result is not a scheduling failure
// unless the allocator's policy requires a technician.
type TechnicianMatcher struct {
	techs    TechnicianSource
	bookings ConflictChecker
}

// NewTechnicianMatcher creates a matcher over the given stores.
func NewTechnicianMatcher(techs TechnicianSource, bookings ConflictChecker) *TechnicianMatcher {
	return &TechnicianMatcher{techs: techs, bookings: bookings}
}

// Find returns the first available technician at the center whose existing
// bookings do not overlap [start, end), or nil when none is free.
func (m *TechnicianMatcher) Find(ctx context.Context, centerID string, start, end time.Time) (*model.Technician, error) {
	techs, err := m.techs.ListTechnicians(ctx, centerID)
	if err != nil {
		return nil, err
	}
	for _, t := range techs {
		if !t.Available {
			continue
		}
		busy, err := m.bookings.TechnicianBusy(ctx, t.ID, start, end)
		if err != nil {
			return nil, err
		}
		if !busy {
			tech := t
			return &tech, nil
		}
	}
	return nil, nil
}

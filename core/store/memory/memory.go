// Package memory provides an in-memory Store. It backs unit tests and
// standalone runs; the mutex serializes the capacity check and booking
// insert so the bay invariant holds under concurrent batches.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleetguard/core/model"
	"fleetguard/core/store"
	"fleetguard/core/telemetry"
)

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu       sync.Mutex
	vehicles map[string]model.Vehicle
	centers  map[string]model.ServiceCenter
	techs    map[string]model.Technician
	bookings map[string]model.Booking
	flags    []model.MaintenanceFlag
	readings []telemetry.Reading
	nextFlag int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		vehicles: map[string]model.Vehicle{},
		centers:  map[string]model.ServiceCenter{},
		techs:    map[string]model.Technician{},
		bookings: map[string]model.Booking{},
		nextFlag: 1,
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// --- FleetStore ---

func (s *Store) GetVehicle(_ context.Context, id string) (*model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (s *Store) ListVehicles(context.Context) ([]model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]model.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *Store) UpsertVehicle(_ context.Context, v *model.Vehicle) error {
	s.mu.Lock()
	s.vehicles[v.ID] = *v
	s.mu.Unlock()
	return nil
}

func (s *Store) UnscheduledFlag(_ context.Context, vehicleID string) (*model.MaintenanceFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *model.MaintenanceFlag
	for i := range s.flags {
		f := s.flags[i]
		if f.VehicleID != vehicleID || f.Scheduled {
			continue
		}
		if newest == nil || f.FlaggedAt.After(newest.FlaggedAt) {
			cp := f
			newest = &cp
		}
	}
	if newest == nil {
		return nil, store.ErrNotFound
	}
	return newest, nil
}

func (s *Store) ListUnscheduledFlags(context.Context) ([]model.MaintenanceFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.MaintenanceFlag
	for _, f := range s.flags {
		if !f.Scheduled {
			res = append(res, f)
		}
	}
	return res, nil
}

func (s *Store) CreateFlag(_ context.Context, f *model.MaintenanceFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.flags {
		if existing.VehicleID == f.VehicleID && !existing.Scheduled {
			return store.ErrFlagExists
		}
	}
	f.ID = s.nextFlag
	s.nextFlag++
	s.flags = append(s.flags, *f)
	return nil
}

func (s *Store) FlagCountsByDay(_ context.Context, region string, days int, now time.Time) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make([]int, days)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))
	for _, f := range s.flags {
		if region != "" {
			v, ok := s.vehicles[f.VehicleID]
			if !ok || v.Region != region {
				continue
			}
		}
		idx := int(f.FlaggedAt.Sub(dayStart).Hours() / 24)
		if idx >= 0 && idx < days {
			counts[idx]++
		}
	}
	return counts, nil
}

func (s *Store) InsertReading(_ context.Context, r *telemetry.Reading) error {
	s.mu.Lock()
	s.readings = append(s.readings, *r)
	s.mu.Unlock()
	return nil
}

// --- ReferenceStore ---

func (s *Store) GetCenter(_ context.Context, id string) (*model.ServiceCenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.centers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListActiveCenters(context.Context) ([]model.ServiceCenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.ServiceCenter
	for _, c := range s.centers {
		if c.Active {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *Store) UpsertCenter(_ context.Context, c *model.ServiceCenter) error {
	s.mu.Lock()
	s.centers[c.ID] = *c
	s.mu.Unlock()
	return nil
}

func (s *Store) ListTechnicians(_ context.Context, centerID string) ([]model.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Technician
	for _, t := range s.techs {
		if t.CenterID == centerID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *Store) UpsertTechnician(_ context.Context, t *model.Technician) error {
	s.mu.Lock()
	s.techs[t.ID] = *t
	s.mu.Unlock()
	return nil
}

// --- BookingStore ---

func (s *Store) CreateBooking(_ context.Context, b *model.Booking, flagID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	center, ok := s.centers[b.CenterID]
	if !ok {
		return store.ErrNotFound
	}
	count := 0
	for _, existing := range s.bookings {
		if existing.Status == model.StatusCancelled {
			continue
		}
		if existing.VehicleID == b.VehicleID && existing.Status.Open() {
			return store.ErrVehicleBooked
		}
		if existing.CenterID == b.CenterID && existing.Overlaps(b.SlotStart, b.SlotEnd) {
			count++
		}
	}
	if count >= center.CapacityBays {
		return store.ErrCapacityConflict
	}

	flagIdx := -1
	for i := range s.flags {
		if s.flags[i].ID == flagID {
			flagIdx = i
			break
		}
	}
	if flagIdx < 0 {
		return store.ErrNotFound
	}
	if s.flags[flagIdx].Scheduled {
		return store.ErrFlagScheduled
	}

	s.bookings[b.ID] = *b
	s.flags[flagIdx].Scheduled = true
	s.flags[flagIdx].BookingID = b.ID
	return nil
}

func (s *Store) CountOverlapping(_ context.Context, centerID string, start, end time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, b := range s.bookings {
		if b.CenterID == centerID && b.Status != model.StatusCancelled && b.Overlaps(start, end) {
			count++
		}
	}
	return count, nil
}

func (s *Store) TechnicianBusy(_ context.Context, techID string, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.TechnicianID == techID && b.Status.Open() && b.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *Store) TransitionBooking(_ context.Context, id string, next model.BookingStatus) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !b.Status.CanTransition(next) {
		return nil, store.ErrInvalidTransition
	}
	b.Status = next
	switch next {
	case model.StatusConfirmed:
		b.ConfirmedAt = time.Now().UTC()
	case model.StatusCompleted:
		b.CompletedAt = time.Now().UTC()
	}
	s.bookings[id] = b
	return &b, nil
}

func (s *Store) ListBookings(_ context.Context, f store.BookingFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Booking
	for _, b := range s.bookings {
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.CenterID != "" && b.CenterID != f.CenterID {
			continue
		}
		if f.VehicleID != "" && b.VehicleID != f.VehicleID {
			continue
		}
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SlotStart.Before(res[j].SlotStart) })
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fleetguard/core/model"
	"fleetguard/core/store"
	"fleetguard/core/telemetry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedReference(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	c := model.ServiceCenter{ID: "SC1", Name: "North", Region: "North", CapacityBays: 1, OpenHour: 9, CloseHour: 18, Active: true}
	if err := s.UpsertCenter(ctx, &c); err != nil {
		t.Fatal(err)
	}
	v := model.Vehicle{ID: "V001", VIN: "VIN001", Model: "Tata Nexon", Year: 2022, Region: "North",
		Mileage: 40000, LastServiceDate: time.Now().AddDate(0, -6, 0), Tier: model.TierFleet}
	if err := s.UpsertVehicle(ctx, &v); err != nil {
		t.Fatal(err)
	}
}

func TestVehicleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedReference(t, s)

	got, err := s.GetVehicle(context.Background(), "V001")
	if err != nil {
		t.Fatal(err)
	}
	if got.VIN != "VIN001" || got.Tier != model.TierFleet || got.Mileage != 40000 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if _, err := s.GetVehicle(context.Background(), "V999"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestCenterActiveFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReference(t, s)
	inactive := model.ServiceCenter{ID: "SC2", CapacityBays: 5, OpenHour: 8, CloseHour: 18, Active: false}
	if err := s.UpsertCenter(ctx, &inactive); err != nil {
		t.Fatal(err)
	}

	centers, err := s.ListActiveCenters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(centers) != 1 || centers[0].ID != "SC1" {
		t.Fatalf("expected only SC1 active, got %+v", centers)
	}
}

func TestFlagLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReference(t, s)

	f := model.MaintenanceFlag{VehicleID: "V001", Severity: 75, FlaggedAt: time.Now().UTC(),
		RiskFactors: []string{"critical oil quality", "battery low"}, Confidence: 0.9}
	if err := s.CreateFlag(ctx, &f); err != nil {
		t.Fatal(err)
	}
	if f.ID == 0 {
		t.Fatal("expected assigned flag id")
	}
	// Duplicate unscheduled flags are rejected.
	dup := model.MaintenanceFlag{VehicleID: "V001", Severity: 50, FlaggedAt: time.Now().UTC()}
	if err := s.CreateFlag(ctx, &dup); !errors.Is(err, store.ErrFlagExists) {
		t.Fatalf("expected flag exists got %v", err)
	}

	got, err := s.UnscheduledFlag(ctx, "V001")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != f.ID || len(got.RiskFactors) != 2 || got.Severity != 75 {
		t.Fatalf("flag mismatch: %+v", got)
	}
}

func TestCreateBookingTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReference(t, s)

	f := model.MaintenanceFlag{VehicleID: "V001", Severity: 75, FlaggedAt: time.Now().UTC()}
	if err := s.CreateFlag(ctx, &f); err != nil {
		t.Fatal(err)
	}

	slot := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := model.Booking{
		ID: "B1", VehicleID: "V001", CenterID: "SC1",
		SlotStart: slot, SlotEnd: slot.Add(time.Hour),
		Status: model.StatusProvisional, PriorityScore: 62, SeverityLevel: "high",
		ServiceType: "general_inspection", CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateBooking(ctx, &b, f.ID); err != nil {
		t.Fatal(err)
	}

	// The flag flipped with the insert.
	if _, err := s.UnscheduledFlag(ctx, "V001"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected flag consumed, got %v", err)
	}

	got, err := s.GetBooking(ctx, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusProvisional || !got.SlotStart.Equal(slot) {
		t.Fatalf("booking mismatch: %+v", got)
	}

	// The single bay is taken; another vehicle conflicts on the same slot.
	v2 := model.Vehicle{ID: "V002", Tier: model.TierStandard, LastServiceDate: time.Now()}
	if err := s.UpsertVehicle(ctx, &v2); err != nil {
		t.Fatal(err)
	}
	f2 := model.MaintenanceFlag{VehicleID: "V002", Severity: 50, FlaggedAt: time.Now().UTC()}
	if err := s.CreateFlag(ctx, &f2); err != nil {
		t.Fatal(err)
	}
	b2 := model.Booking{ID: "B2", VehicleID: "V002", CenterID: "SC1",
		SlotStart: slot, SlotEnd: slot.Add(time.Hour), Status: model.StatusProvisional, CreatedAt: time.Now()}
	if err := s.CreateBooking(ctx, &b2, f2.ID); !errors.Is(err, store.ErrCapacityConflict) {
		t.Fatalf("expected capacity conflict got %v", err)
	}

	// Same vehicle again with a fresh flag: blocked by the open booking.
	b3 := model.Booking{ID: "B3", VehicleID: "V001", CenterID: "SC1",
		SlotStart: slot.Add(2 * time.Hour), SlotEnd: slot.Add(3 * time.Hour), Status: model.StatusProvisional, CreatedAt: time.Now()}
	if err := s.CreateBooking(ctx, &b3, f.ID); !errors.Is(err, store.ErrVehicleBooked) {
		t.Fatalf("expected vehicle booked got %v", err)
	}
}

func TestTransitionBookingLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReference(t, s)

	f := model.MaintenanceFlag{VehicleID: "V001", Severity: 60, FlaggedAt: time.Now().UTC()}
	if err := s.CreateFlag(ctx, &f); err != nil {
		t.Fatal(err)
	}
	slot := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := model.Booking{ID: "B1", VehicleID: "V001", CenterID: "SC1",
		SlotStart: slot, SlotEnd: slot.Add(time.Hour), Status: model.StatusProvisional, CreatedAt: time.Now()}
	if err := s.CreateBooking(ctx, &b, f.ID); err != nil {
		t.Fatal(err)
	}

	confirmed, err := s.TransitionBooking(ctx, "B1", model.StatusConfirmed)
	if err != nil {
		t.Fatal(err)
	}
	if confirmed.Status != model.StatusConfirmed || confirmed.ConfirmedAt.IsZero() {
		t.Fatalf("expected confirmed with timestamp: %+v", confirmed)
	}
	if _, err := s.TransitionBooking(ctx, "B1", model.StatusConfirmed); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition got %v", err)
	}
	if _, err := s.TransitionBooking(ctx, "B1", model.StatusInProgress); err != nil {
		t.Fatal(err)
	}
	done, err := s.TransitionBooking(ctx, "B1", model.StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if done.CompletedAt.IsZero() {
		t.Fatal("expected completion timestamp")
	}

	// Overlap counting excludes cancelled only; the completed booking still
	// shows in slot history.
	n, err := s.CountOverlapping(ctx, "SC1", slot, slot.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected overlap count 1 got %d", n)
	}
}

func TestInsertReadingAndFlagCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedReference(t, s)

	r := telemetry.Reading{VehicleID: "V001", Timestamp: time.Now().UTC(), Mileage: 40100,
		OilQuality: 2.5, BatteryPercent: 45, BrakeCondition: telemetry.BrakeWarning,
		BrakeTempC: 95, TirePressurePSI: 31}
	if err := s.InsertReading(ctx, &r); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	f := model.MaintenanceFlag{VehicleID: "V001", Severity: 90, FlaggedAt: now.AddDate(0, 0, -1)}
	if err := s.CreateFlag(ctx, &f); err != nil {
		t.Fatal(err)
	}

	counts, err := s.FlagCountsByDay(ctx, "North", 7, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 7 || counts[5] != 1 {
		t.Fatalf("expected one flag yesterday, got %v", counts)
	}
	empty, err := s.FlagCountsByDay(ctx, "Elsewhere", 7, now)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range empty {
		if c != 0 {
			t.Fatalf("region filter leaked: %v", empty)
		}
	}
}

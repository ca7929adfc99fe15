package scheduler

import (
	"context"
	"testing"
	"time"

	"fleetguard/core/model"
)

// fakeCapacity reports a fixed booking count, optionally per slot start.
type fakeCapacity struct {
	counts map[time.Time]int
	calls  int
}

func (f *fakeCapacity) CountOverlapping(_ context.Context, _ string, start, _ time.Time) (int, error) {
	f.calls++
	return f.counts[start], nil
}

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestFindSlotsWithinHours(t *testing.T) {
	center := model.ServiceCenter{ID: "SC1", CapacityBays: 2, OpenHour: 9, CloseHour: 12, Active: true}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f := NewSlotFinder(&fakeCapacity{}, time.Hour, fixedNow(day))

	slots, err := f.FindSlots(context.Background(), center, day, day.AddDate(0, 0, 1), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots (9, 10, 11) got %d: %v", len(slots), slots)
	}
	for _, s := range slots {
		if !center.WithinHours(s) {
			t.Fatalf("slot %s outside operating hours", s)
		}
	}
	if slots[0].Hour() != 9 || slots[2].Hour() != 11 {
		t.Fatalf("unexpected slot hours: %v", slots)
	}
}

func TestFindSlotsNeverInThePast(t *testing.T) {
	center := model.ServiceCenter{ID: "SC1", CapacityBays: 1, OpenHour: 8, CloseHour: 18, Active: true}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := day.Add(10*time.Hour + 30*time.Minute)
	f := NewSlotFinder(&fakeCapacity{}, time.Hour, fixedNow(now))

	slots, err := f.FindSlots(context.Background(), center, day, day.AddDate(0, 0, 1), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	// 10:30 aligns up to 11:00.
	if got := slots[0]; !got.Equal(day.Add(11 * time.Hour)) {
		t.Fatalf("expected first slot 11:00 got %s", got)
	}
	for _, s := range slots {
		if s.Before(now) {
			t.Fatalf("slot %s is in the past", s)
		}
	}
}

func TestFindSlotsRollsOverToNextDay(t *testing.T) {
	center := model.ServiceCenter{ID: "SC1", CapacityBays: 1, OpenHour: 9, CloseHour: 10, Active: true}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := day.Add(15 * time.Hour) // past closing
	f := NewSlotFinder(&fakeCapacity{}, time.Hour, fixedNow(now))

	slots, err := f.FindSlots(context.Background(), center, day, day.AddDate(0, 0, 2), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot got %d", len(slots))
	}
	want := day.AddDate(0, 0, 1).Add(9 * time.Hour)
	if !slots[0].Equal(want) {
		t.Fatalf("expected next-day opening %s got %s", want, slots[0])
	}
}

func TestFindSlotsSkipsFullSlots(t *testing.T) {
	center := model.ServiceCenter{ID: "SC1", CapacityBays: 1, OpenHour: 9, CloseHour: 12, Active: true}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	full := &fakeCapacity{counts: map[time.Time]int{
		day.Add(9 * time.Hour):  1,
		day.Add(10 * time.Hour): 1,
	}}
	f := NewSlotFinder(full, time.Hour, fixedNow(day))

	slots, err := f.FindSlots(context.Background(), center, day, day.AddDate(0, 0, 1), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || slots[0].Hour() != 11 {
		t.Fatalf("expected only 11:00 free, got %v", slots)
	}
}

func TestFindSlotsHonorsLimit(t *testing.T) {
	center := model.ServiceCenter{ID: "SC1", CapacityBays: 5, OpenHour: 8, CloseHour: 20, Active: true}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f := NewSlotFinder(&fakeCapacity{}, time.Hour, fixedNow(day))

	slots, err := f.FindSlots(context.Background(), center, day, day.AddDate(0, 0, 7), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots got %d", len(slots))
	}
}

func TestFindSlotsCancelledContext(t *testing.T) {
	center := model.ServiceCenter{ID: "SC1", CapacityBays: 1, OpenHour: 9, CloseHour: 18, Active: true}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f := NewSlotFinder(&fakeCapacity{}, time.Hour, fixedNow(day))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.FindSlots(ctx, center, day, day.AddDate(0, 0, 1), 10); err == nil {
		t.Fatal("expected context error")
	}
}

func TestAlignToGrid(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{day.Add(9 * time.Hour), day.Add(9 * time.Hour)},
		{day.Add(9*time.Hour + time.Minute), day.Add(10 * time.Hour)},
		{day.Add(9*time.Hour + 59*time.Minute), day.Add(10 * time.Hour)},
		{day, day},
	}
	for _, c := range cases {
		if got := alignToGrid(c.in, time.Hour); !got.Equal(c.want) {
			t.Fatalf("alignToGrid(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

package scheduler

import (
	"context"
	"time"

	"fleetguard/core/model"
)

// CapacityQuerier is the booking-store view the slot finder needs: a count
// of non-cancelled bookings overlapping a candidate slot.
type CapacityQuerier interface {
	CountOverlapping(ctx context.Context, centerID string, start, end time.Time) (int, error)
}

// SlotFinder enumerates open appointment slots at a center. Purely a query;
// it never mutates state.
type SlotFinder struct {
	store CapacityQuerier
	dur   time.Duration
	now   func() time.Time
}

// NewSlotFinder creates a finder walking slots of the given duration. A nil
// now function defaults to time.Now.
func NewSlotFinder(store CapacityQuerier, slotDuration time.Duration, now func() time.Time) *SlotFinder {
	if now == nil {
		now = time.Now
	}
	return &SlotFinder{store: store, dur: slotDuration, now: now}
}

// FindSlots walks forward from max(start, now) to end in slot-duration
// increments and returns up to limit slot start times with free bay
// capacity. Candidates outside the center's operating hours are skipped by
// jumping to the next opening; slots in the past are never emitted.
func (f *SlotFinder) FindSlots(ctx context.Context, center model.ServiceCenter, start, end time.Time, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 1
	}
	cur := start
	if now := f.now(); now.After(cur) {
		cur = now
	}
	cur = alignToGrid(cur, f.dur)

	var slots []time.Time
	for cur.Before(end) && len(slots) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cur.Hour() < center.OpenHour {
			cur = center.OpeningAt(cur)
			continue
		}
		if cur.Hour() >= center.CloseHour {
			cur = center.OpeningAt(cur.AddDate(0, 0, 1))
			continue
		}
		count, err := f.store.CountOverlapping(ctx, center.ID, cur, cur.Add(f.dur))
		if err != nil {
			return nil, err
		}
		if count < center.CapacityBays {
			slots = append(slots, cur)
		}
		cur = cur.Add(f.dur)
	}
	return slots, nil
}

// alignToGrid rounds t up to the next slot boundary relative to midnight of
// t's day, so that candidates line up regardless of when the search starts.
func alignToGrid(t time.Time, dur time.Duration) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := t.Sub(midnight)
	steps := offset / dur
	if offset%dur != 0 {
		steps++
	}
	return midnight.Add(steps * dur)
}

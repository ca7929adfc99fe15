// Package scheduler implements the slot-allocation engine: priority scoring
// of flagged vehicles, open-slot search against center capacity, technician
// matching and the batch allocator that commits provisional bookings.
package scheduler

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"fleetguard/core/events"
	"fleetguard/core/metrics"
	"fleetguard/core/model"
	"fleetguard/core/store"
	"fleetguard/infra/logger"
	"fleetguard/internal/eventbus"
)

// Failure reasons reported per vehicle.
const (
	ReasonUnknownVehicle   = "unknown vehicle"
	ReasonNotFlagged       = "not flagged"
	ReasonNoCapacity       = "no capacity"
	ReasonNoActiveCenters  = "no active centers"
	ReasonAlreadyScheduled = "already scheduled"
)

// errNoTechnician signals a slot skipped under the require-technician
// policy. Internal to the retry loop; never surfaced to callers.
var errNoTechnician = errors.New("scheduler: no technician free for slot")

// BookingSummary describes one committed provisional booking.
type BookingSummary struct {
	BookingID     string    `json:"booking_id"`
	VehicleID     string    `json:"vehicle_id"`
	CenterID      string    `json:"center_id"`
	TechnicianID  string    `json:"tech_id,omitempty"`
	SlotStart     time.Time `json:"slot_start"`
	SlotEnd       time.Time `json:"slot_end"`
	PriorityScore float64   `json:"priority_score"`
	SeverityLevel string    `json:"severity_level"`
}

// Failure records why a vehicle could not be scheduled.
type Failure struct {
	VehicleID string `json:"vehicle_id"`
	Reason    string `json:"reason"`
}

// BatchResult is the full accounting of one allocation run: every requested
// vehicle appears exactly once, either scheduled or failed with a reason.
type BatchResult struct {
	Scheduled []BookingSummary `json:"scheduled"`
	Failed    []Failure        `json:"failed"`
}

// Allocator assigns flagged vehicles to service-center slots. One batch is
// processed to completion per invocation; vehicles are independent, so one
// vehicle's failure never aborts the batch.
type Allocator struct {
	cfg    Config
	st     store.Store
	scorer *Scorer
	slots  *SlotFinder
	techs  *TechnicianMatcher
	rng    *rand.Rand
	log    logger.Logger
	sink   metrics.Sink
	bus    eventbus.EventBus
	now    func() time.Time
}

// NewAllocator wires the allocation engine. The random source drives the
// per-vehicle center shuffle and is injected for deterministic tests; nil
// falls back to a source seeded from cfg.Seed (or the clock when zero).
// A nil now function defaults to time.Now.
func NewAllocator(cfg Config, st store.Store, rng *rand.Rand, log logger.Logger, sink metrics.Sink, bus eventbus.EventBus, now func() time.Time) (*Allocator, error) {
	if st == nil {
		return nil, errors.New("scheduler: nil store provided to NewAllocator")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if now == nil {
		now = time.Now
	}
	return &Allocator{
		cfg:    cfg,
		st:     st,
		scorer: NewScorer(cfg.Score),
		slots:  NewSlotFinder(st, cfg.SlotDuration(), now),
		techs:  NewTechnicianMatcher(st, st),
		rng:    rng,
		log:    log,
		sink:   sink,
		bus:    bus,
		now:    now,
	}, nil
}

type candidate struct {
	vehicle model.Vehicle
	flag    model.MaintenanceFlag
	score   float64
}

// ScheduleBatch assigns each vehicle to the earliest open slot of a randomly
// ordered active center within [start, end). Vehicles are served in
// descending priority order; that ordering decides fairness when slots are
// scarce.
func (a *Allocator) ScheduleBatch(ctx context.Context, vehicleIDs []string, start, end time.Time) (*BatchResult, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("scheduler: date range end %s not after start %s", end, start)
	}
	began := a.now()
	res := &BatchResult{}

	cands := a.resolve(ctx, vehicleIDs, res)

	// Highest urgency first; ties broken by vehicle ID for determinism.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].vehicle.ID < cands[j].vehicle.ID
	})

	centers, err := a.st.ListActiveCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list centers: %w", err)
	}

	var records []metrics.ScheduleResult
	for _, c := range cands {
		summary, reason := a.scheduleOne(ctx, c, centers, start, end)
		rec := metrics.ScheduleResult{
			VehicleID:     c.vehicle.ID,
			PriorityScore: c.score,
			SeverityLevel: SeverityLevel(c.flag.Severity),
			At:            a.now(),
		}
		if summary != nil {
			res.Scheduled = append(res.Scheduled, *summary)
			rec.Scheduled = true
			rec.CenterID = summary.CenterID
			rec.BookingID = summary.BookingID
			rec.SlotStart = summary.SlotStart
		} else {
			res.Failed = append(res.Failed, Failure{VehicleID: c.vehicle.ID, Reason: reason})
			rec.FailReason = reason
		}
		records = append(records, rec)
	}

	if err := a.sink.RecordScheduleResult(records); err != nil {
		a.log.Errorf("metrics error: %v", err)
	}
	dur := a.now().Sub(began)
	if err := a.sink.RecordBatch(len(res.Scheduled), len(res.Failed), dur); err != nil {
		a.log.Errorf("metrics error: %v", err)
	}
	if a.bus != nil {
		a.bus.Publish(events.BatchCompleted{Scheduled: len(res.Scheduled), Failed: len(res.Failed), Duration: dur})
	}
	a.log.Infof("batch complete: %d scheduled, %d failed", len(res.Scheduled), len(res.Failed))
	return res, nil
}

// resolve loads vehicles and their newest unscheduled flags, scoring the
// schedulable ones and recording failures for the rest.
func (a *Allocator) resolve(ctx context.Context, vehicleIDs []string, res *BatchResult) []candidate {
	now := a.now()
	var cands []candidate
	for _, id := range vehicleIDs {
		v, err := a.st.GetVehicle(ctx, id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				a.log.Errorf("vehicle %s: %v", id, err)
			}
			res.Failed = append(res.Failed, Failure{VehicleID: id, Reason: ReasonUnknownVehicle})
			continue
		}
		f, err := a.st.UnscheduledFlag(ctx, id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				a.log.Errorf("flag lookup %s: %v", id, err)
			}
			res.Failed = append(res.Failed, Failure{VehicleID: id, Reason: ReasonNotFlagged})
			continue
		}
		score := a.scorer.Score(*v, *f, a.cfg.DefaultProximity, now)
		cands = append(cands, candidate{vehicle: *v, flag: *f, score: score})
	}
	return cands
}

// scheduleOne tries each center in shuffled order until a booking commits.
// Capacity-conflict commits are retried against later slots and centers a
// bounded number of times, then reported as capacity exhaustion.
func (a *Allocator) scheduleOne(ctx context.Context, c candidate, centers []model.ServiceCenter, start, end time.Time) (*BookingSummary, string) {
	if len(centers) == 0 {
		return nil, ReasonNoActiveCenters
	}
	retries := a.cfg.MaxConflictRetries

	for _, center := range a.shuffled(centers) {
		slots, err := a.slots.FindSlots(ctx, center, start, end, a.cfg.SlotSearchLimit)
		if err != nil {
			a.log.Errorf("slot search %s at %s: %v", c.vehicle.ID, center.ID, err)
			continue
		}
		for _, slot := range slots {
			summary, err := a.commit(ctx, c, center, slot)
			switch {
			case err == nil:
				return summary, ""
			case errors.Is(err, errNoTechnician):
				continue
			case errors.Is(err, store.ErrCapacityConflict):
				if retries--; retries < 0 {
					a.log.Warnf("vehicle %s: conflict retries exhausted", c.vehicle.ID)
					return nil, ReasonNoCapacity
				}
				continue
			case errors.Is(err, store.ErrVehicleBooked), errors.Is(err, store.ErrFlagScheduled):
				return nil, ReasonAlreadyScheduled
			default:
				a.log.Errorf("booking commit %s at %s: %v", c.vehicle.ID, center.ID, err)
				return nil, err.Error()
			}
		}
	}
	return nil, ReasonNoCapacity
}

// commit builds the provisional booking for the slot and writes it together
// with the flag flip in one transaction.
func (a *Allocator) commit(ctx context.Context, c candidate, center model.ServiceCenter, slot time.Time) (*BookingSummary, error) {
	slotEnd := slot.Add(a.cfg.SlotDuration())

	var techID string
	tech, err := a.techs.Find(ctx, center.ID, slot, slotEnd)
	if err != nil {
		a.log.Warnf("technician lookup at %s: %v", center.ID, err)
	} else if tech != nil {
		techID = tech.ID
	}
	if techID == "" && a.cfg.RequireTechnician {
		return nil, errNoTechnician
	}

	b := &model.Booking{
		ID:            model.NewBookingID(),
		VehicleID:     c.vehicle.ID,
		CenterID:      center.ID,
		TechnicianID:  techID,
		SlotStart:     slot,
		SlotEnd:       slotEnd,
		Status:        model.StatusProvisional,
		PriorityScore: c.score,
		SeverityLevel: SeverityLevel(c.flag.Severity),
		ServiceType:   "general_inspection",
		CreatedAt:     a.now(),
	}
	if err := a.st.CreateBooking(ctx, b, c.flag.ID); err != nil {
		return nil, err
	}
	if a.bus != nil {
		a.bus.Publish(events.BookingCreated{Booking: *b})
	}
	a.log.Debugw("booking created", map[string]any{
		"booking_id": b.ID,
		"vehicle_id": b.VehicleID,
		"center_id":  b.CenterID,
		"slot_start": b.SlotStart,
		"score":      b.PriorityScore,
	})
	return &BookingSummary{
		BookingID:     b.ID,
		VehicleID:     b.VehicleID,
		CenterID:      b.CenterID,
		TechnicianID:  b.TechnicianID,
		SlotStart:     b.SlotStart,
		SlotEnd:       b.SlotEnd,
		PriorityScore: b.PriorityScore,
		SeverityLevel: b.SeverityLevel,
	}, nil
}

// shuffled returns a randomized copy of the center list. Deterministic
// center-first ordering would systematically overload whichever center is
// listed first; the shuffle approximates fair load distribution absent a
// real distance-weighted assignment. The reference slice is never mutated.
func (a *Allocator) shuffled(centers []model.ServiceCenter) []model.ServiceCenter {
	cp := make([]model.ServiceCenter, len(centers))
	copy(cp, centers)
	a.rng.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	return cp
}

// Package sqlite implements the persistence interfaces on a SQLite
// database. The capacity check, booking insert and flag flip run inside a
// single immediate transaction so concurrent schedulers cannot both pass
// the bay-capacity check.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"fleetguard/core/model"
	"fleetguard/core/store"
	"fleetguard/core/telemetry"
)

// Store persists fleet, reference and booking data in SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS vehicles (
    vehicle_id TEXT PRIMARY KEY,
    vin TEXT,
    model TEXT,
    year INTEGER,
    owner_name TEXT,
    owner_contact TEXT,
    region TEXT,
    mileage INTEGER,
    last_service_date INTEGER,
    customer_tier TEXT
);
CREATE TABLE IF NOT EXISTS service_centers (
    center_id TEXT PRIMARY KEY,
    name TEXT,
    region TEXT,
    latitude REAL,
    longitude REAL,
    capacity_bays INTEGER NOT NULL,
    open_hour INTEGER NOT NULL,
    close_hour INTEGER NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS technicians (
    tech_id TEXT PRIMARY KEY,
    name TEXT,
    center_id TEXT NOT NULL,
    specialization TEXT,
    skill_level TEXT,
    is_available INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_tech_center ON technicians(center_id);
CREATE TABLE IF NOT EXISTS maintenance_flags (
    flag_id INTEGER PRIMARY KEY AUTOINCREMENT,
    vehicle_id TEXT NOT NULL,
    flagged_at INTEGER NOT NULL,
    severity_score REAL NOT NULL,
    risk_factors TEXT,
    confidence REAL,
    is_scheduled INTEGER NOT NULL DEFAULT 0,
    scheduled_booking_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_flag_vehicle ON maintenance_flags(vehicle_id, is_scheduled);
CREATE TABLE IF NOT EXISTS bookings (
    booking_id TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL,
    center_id TEXT NOT NULL,
    tech_id TEXT,
    slot_start INTEGER NOT NULL,
    slot_end INTEGER NOT NULL,
    status TEXT NOT NULL,
    priority_score REAL,
    severity_level TEXT,
    service_type TEXT,
    notes TEXT,
    created_at INTEGER NOT NULL,
    confirmed_at INTEGER,
    completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_booking_center_slot ON bookings(center_id, slot_start, status);
CREATE INDEX IF NOT EXISTS idx_booking_vehicle ON bookings(vehicle_id, status);
CREATE TABLE IF NOT EXISTS telemetry (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    vehicle_id TEXT NOT NULL,
    ts INTEGER NOT NULL,
    mileage INTEGER,
    engine_load REAL,
    oil_quality REAL,
    battery_percent REAL,
    brake_condition TEXT,
    brake_temp REAL,
    tire_pressure REAL,
    fuel_consumption REAL
);
CREATE INDEX IF NOT EXISTS idx_telemetry_vehicle_ts ON telemetry(vehicle_id, ts);
`

// New opens or creates the database at path and ensures the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps the count-then-insert sequence serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// --- FleetStore ---

func (s *Store) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT vehicle_id, vin, model, year, owner_name, owner_contact, region, mileage, last_service_date, customer_tier
         FROM vehicles WHERE vehicle_id = ?`, id)
	return scanVehicle(row)
}

func (s *Store) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vehicle_id, vin, model, year, owner_name, owner_contact, region, mileage, last_service_date, customer_tier
         FROM vehicles ORDER BY vehicle_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *v)
	}
	return res, rows.Err()
}

func (s *Store) UpsertVehicle(ctx context.Context, v *model.Vehicle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles (vehicle_id, vin, model, year, owner_name, owner_contact, region, mileage, last_service_date, customer_tier)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(vehicle_id) DO UPDATE SET
             vin=excluded.vin, model=excluded.model, year=excluded.year,
             owner_name=excluded.owner_name, owner_contact=excluded.owner_contact,
             region=excluded.region, mileage=excluded.mileage,
             last_service_date=excluded.last_service_date, customer_tier=excluded.customer_tier`,
		v.ID, v.VIN, v.Model, v.Year, v.OwnerName, v.OwnerContact, v.Region, v.Mileage,
		v.LastServiceDate.Unix(), v.Tier.String())
	return err
}

func (s *Store) UnscheduledFlag(ctx context.Context, vehicleID string) (*model.MaintenanceFlag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT flag_id, vehicle_id, flagged_at, severity_score, risk_factors, confidence, is_scheduled, scheduled_booking_id
         FROM maintenance_flags WHERE vehicle_id = ? AND is_scheduled = 0
         ORDER BY flagged_at DESC LIMIT 1`, vehicleID)
	return scanFlag(row)
}

func (s *Store) ListUnscheduledFlags(ctx context.Context) ([]model.MaintenanceFlag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT flag_id, vehicle_id, flagged_at, severity_score, risk_factors, confidence, is_scheduled, scheduled_booking_id
         FROM maintenance_flags WHERE is_scheduled = 0 ORDER BY flagged_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.MaintenanceFlag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *f)
	}
	return res, rows.Err()
}

func (s *Store) CreateFlag(ctx context.Context, f *model.MaintenanceFlag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM maintenance_flags WHERE vehicle_id = ? AND is_scheduled = 0`,
		f.VehicleID).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		return store.ErrFlagExists
	}
	factors, err := json.Marshal(f.RiskFactors)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO maintenance_flags (vehicle_id, flagged_at, severity_score, risk_factors, confidence, is_scheduled)
         VALUES (?, ?, ?, ?, ?, 0)`,
		f.VehicleID, f.FlaggedAt.Unix(), f.Severity, string(factors), f.Confidence)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return tx.Commit()
}

func (s *Store) FlagCountsByDay(ctx context.Context, region string, days int, now time.Time) ([]int, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))
	query := `SELECT f.flagged_at FROM maintenance_flags f`
	args := []any{}
	if region != "" {
		query += ` JOIN vehicles v ON v.vehicle_id = f.vehicle_id WHERE f.flagged_at >= ? AND v.region = ?`
		args = append(args, dayStart.Unix(), region)
	} else {
		query += ` WHERE f.flagged_at >= ?`
		args = append(args, dayStart.Unix())
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	counts := make([]int, days)
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		idx := int(time.Unix(ts, 0).Sub(dayStart).Hours() / 24)
		if idx >= 0 && idx < days {
			counts[idx]++
		}
	}
	return counts, rows.Err()
}

func (s *Store) InsertReading(ctx context.Context, r *telemetry.Reading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry (vehicle_id, ts, mileage, engine_load, oil_quality, battery_percent, brake_condition, brake_temp, tire_pressure, fuel_consumption)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.VehicleID, r.Timestamp.Unix(), r.Mileage, r.EngineLoad, r.OilQuality,
		r.BatteryPercent, string(r.BrakeCondition), r.BrakeTempC, r.TirePressurePSI, r.FuelConsumption)
	return err
}

// --- ReferenceStore ---

func (s *Store) GetCenter(ctx context.Context, id string) (*model.ServiceCenter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT center_id, name, region, latitude, longitude, capacity_bays, open_hour, close_hour, is_active
         FROM service_centers WHERE center_id = ?`, id)
	return scanCenter(row)
}

func (s *Store) ListActiveCenters(ctx context.Context) ([]model.ServiceCenter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT center_id, name, region, latitude, longitude, capacity_bays, open_hour, close_hour, is_active
         FROM service_centers WHERE is_active = 1 ORDER BY center_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ServiceCenter
	for rows.Next() {
		c, err := scanCenter(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}

func (s *Store) UpsertCenter(ctx context.Context, c *model.ServiceCenter) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO service_centers (center_id, name, region, latitude, longitude, capacity_bays, open_hour, close_hour, is_active)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(center_id) DO UPDATE SET
             name=excluded.name, region=excluded.region, latitude=excluded.latitude,
             longitude=excluded.longitude, capacity_bays=excluded.capacity_bays,
             open_hour=excluded.open_hour, close_hour=excluded.close_hour, is_active=excluded.is_active`,
		c.ID, c.Name, c.Region, c.Latitude, c.Longitude, c.CapacityBays, c.OpenHour, c.CloseHour, boolToInt(c.Active))
	return err
}

func (s *Store) ListTechnicians(ctx context.Context, centerID string) ([]model.Technician, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tech_id, name, center_id, specialization, skill_level, is_available
         FROM technicians WHERE center_id = ? ORDER BY tech_id`, centerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Technician
	for rows.Next() {
		var t model.Technician
		var avail int
		if err := rows.Scan(&t.ID, &t.Name, &t.CenterID, &t.Specialization, &t.SkillLevel, &avail); err != nil {
			return nil, err
		}
		t.Available = avail != 0
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *Store) UpsertTechnician(ctx context.Context, t *model.Technician) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO technicians (tech_id, name, center_id, specialization, skill_level, is_available)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(tech_id) DO UPDATE SET
             name=excluded.name, center_id=excluded.center_id,
             specialization=excluded.specialization, skill_level=excluded.skill_level,
             is_available=excluded.is_available`,
		t.ID, t.Name, t.CenterID, t.Specialization, t.SkillLevel, boolToInt(t.Available))
	return err
}

// --- BookingStore ---

// CreateBooking re-checks capacity, the single-open-booking rule and the
// flag state, inserts the booking and flips the flag, all in one
// transaction. Either both rows change or neither does.
func (s *Store) CreateBooking(ctx context.Context, b *model.Booking, flagID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var capacity int
	err = tx.QueryRowContext(ctx,
		`SELECT capacity_bays FROM service_centers WHERE center_id = ?`, b.CenterID).Scan(&capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	var open int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
         WHERE vehicle_id = ? AND status NOT IN ('cancelled', 'completed')`,
		b.VehicleID).Scan(&open); err != nil {
		return err
	}
	if open > 0 {
		return store.ErrVehicleBooked
	}

	var overlapping int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
         WHERE center_id = ? AND status != 'cancelled' AND slot_start < ? AND slot_end > ?`,
		b.CenterID, b.SlotEnd.Unix(), b.SlotStart.Unix()).Scan(&overlapping); err != nil {
		return err
	}
	if overlapping >= capacity {
		return store.ErrCapacityConflict
	}

	var scheduled int
	err = tx.QueryRowContext(ctx,
		`SELECT is_scheduled FROM maintenance_flags WHERE flag_id = ?`, flagID).Scan(&scheduled)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	if scheduled != 0 {
		return store.ErrFlagScheduled
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (booking_id, vehicle_id, center_id, tech_id, slot_start, slot_end, status, priority_score, severity_level, service_type, notes, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.VehicleID, b.CenterID, nullable(b.TechnicianID), b.SlotStart.Unix(), b.SlotEnd.Unix(),
		b.Status.String(), b.PriorityScore, b.SeverityLevel, b.ServiceType, b.Notes, b.CreatedAt.Unix()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE maintenance_flags SET is_scheduled = 1, scheduled_booking_id = ? WHERE flag_id = ?`,
		b.ID, flagID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CountOverlapping(ctx context.Context, centerID string, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
         WHERE center_id = ? AND status != 'cancelled' AND slot_start < ? AND slot_end > ?`,
		centerID, end.Unix(), start.Unix()).Scan(&count)
	return count, err
}

func (s *Store) TechnicianBusy(ctx context.Context, techID string, start, end time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
         WHERE tech_id = ? AND status NOT IN ('cancelled', 'completed') AND slot_start < ? AND slot_end > ?`,
		techID, end.Unix(), start.Unix()).Scan(&count)
	return count > 0, err
}

func (s *Store) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := s.db.QueryRowContext(ctx, selectBooking+` WHERE booking_id = ?`, id)
	return scanBooking(row)
}

func (s *Store) TransitionBooking(ctx context.Context, id string, next model.BookingStatus) (*model.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, selectBooking+` WHERE booking_id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransition(next) {
		return nil, store.ErrInvalidTransition
	}
	b.Status = next
	now := time.Now().UTC()
	var confirmed, completed any
	if !b.ConfirmedAt.IsZero() {
		confirmed = b.ConfirmedAt.Unix()
	}
	if !b.CompletedAt.IsZero() {
		completed = b.CompletedAt.Unix()
	}
	switch next {
	case model.StatusConfirmed:
		b.ConfirmedAt = now
		confirmed = now.Unix()
	case model.StatusCompleted:
		b.CompletedAt = now
		completed = now.Unix()
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, confirmed_at = ?, completed_at = ? WHERE booking_id = ?`,
		next.String(), confirmed, completed, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListBookings(ctx context.Context, f store.BookingFilter) ([]model.Booking, error) {
	query := selectBooking + ` WHERE 1=1`
	var args []any
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, f.Status.String())
	}
	if f.CenterID != "" {
		query += ` AND center_id = ?`
		args = append(args, f.CenterID)
	}
	if f.VehicleID != "" {
		query += ` AND vehicle_id = ?`
		args = append(args, f.VehicleID)
	}
	query += ` ORDER BY slot_start`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *b)
	}
	return res, rows.Err()
}

// --- scanning helpers ---

const selectBooking = `SELECT booking_id, vehicle_id, center_id, tech_id, slot_start, slot_end, status, priority_score, severity_level, service_type, notes, created_at, confirmed_at, completed_at FROM bookings`

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (*model.Booking, error) {
	var b model.Booking
	var tech, notes sql.NullString
	var status string
	var slotStart, slotEnd, created int64
	var confirmed, completed sql.NullInt64
	err := row.Scan(&b.ID, &b.VehicleID, &b.CenterID, &tech, &slotStart, &slotEnd, &status,
		&b.PriorityScore, &b.SeverityLevel, &b.ServiceType, &notes, &created, &confirmed, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.TechnicianID = tech.String
	b.Notes = notes.String
	b.SlotStart = time.Unix(slotStart, 0).UTC()
	b.SlotEnd = time.Unix(slotEnd, 0).UTC()
	b.CreatedAt = time.Unix(created, 0).UTC()
	if confirmed.Valid {
		b.ConfirmedAt = time.Unix(confirmed.Int64, 0).UTC()
	}
	if completed.Valid {
		b.CompletedAt = time.Unix(completed.Int64, 0).UTC()
	}
	if b.Status, err = model.ParseStatus(status); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanVehicle(row scanner) (*model.Vehicle, error) {
	var v model.Vehicle
	var lastService int64
	var tier string
	err := row.Scan(&v.ID, &v.VIN, &v.Model, &v.Year, &v.OwnerName, &v.OwnerContact,
		&v.Region, &v.Mileage, &lastService, &tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.LastServiceDate = time.Unix(lastService, 0).UTC()
	v.Tier = model.ParseTier(tier)
	return &v, nil
}

func scanCenter(row scanner) (*model.ServiceCenter, error) {
	var c model.ServiceCenter
	var active int
	err := row.Scan(&c.ID, &c.Name, &c.Region, &c.Latitude, &c.Longitude,
		&c.CapacityBays, &c.OpenHour, &c.CloseHour, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Active = active != 0
	return &c, nil
}

func scanFlag(row scanner) (*model.MaintenanceFlag, error) {
	var f model.MaintenanceFlag
	var flaggedAt int64
	var factors sql.NullString
	var scheduled int
	var bookingID sql.NullString
	err := row.Scan(&f.ID, &f.VehicleID, &flaggedAt, &f.Severity, &factors, &f.Confidence, &scheduled, &bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.FlaggedAt = time.Unix(flaggedAt, 0).UTC()
	f.Scheduled = scheduled != 0
	f.BookingID = bookingID.String
	if factors.Valid && factors.String != "" {
		if err := json.Unmarshal([]byte(factors.String), &f.RiskFactors); err != nil {
			return nil, fmt.Errorf("unmarshal risk factors: %w", err)
		}
	}
	return &f, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package model

import "time"

// ServiceCenter describes a maintenance location and its capacity. Reference
// data; read-only to the scheduler.
type ServiceCenter struct {
	ID           string  `json:"center_id"`
	Name         string  `json:"name"`
	Region       string  `json:"region"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	CapacityBays int     `json:"capacity_bays"`
	OpenHour     int     `json:"open_hour"`
	CloseHour    int     `json:"close_hour"`
	Active       bool    `json:"is_active"`
}

// OpeningAt returns the opening instant of the center on the day of t, in
// t's location.
func (c ServiceCenter) OpeningAt(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.OpenHour, 0, 0, 0, t.Location())
}

// WithinHours reports whether a slot starting at t lies inside the operating
// window. The close hour is exclusive: a center closing at 18 accepts its
// last slot start strictly before 18:00.
func (c ServiceCenter) WithinHours(t time.Time) bool {
	h := t.Hour()
	return h >= c.OpenHour && h < c.CloseHour
}

// Technician is an employee of a service center. Read-only to the scheduler
// except for assignment bookkeeping on bookings.
type Technician struct {
	ID             string `json:"tech_id"`
	Name           string `json:"name"`
	CenterID       string `json:"center_id"`
	Specialization string `json:"specialization"`
	SkillLevel     string `json:"skill_level"`
	Available      bool   `json:"is_available"`
}

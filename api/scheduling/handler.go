// Package scheduling exposes the allocation engine over HTTP. Wire format
// is deliberately thin; all policy lives in core/scheduler.
package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fleetguard/core/events"
	"fleetguard/core/forecast"
	"fleetguard/core/model"
	"fleetguard/core/notify"
	"fleetguard/core/scheduler"
	"fleetguard/core/store"
	"fleetguard/infra/logger"
	"fleetguard/internal/eventbus"
)

// Handler serves the scheduling API.
type Handler struct {
	alloc    *scheduler.Allocator
	slots    *scheduler.SlotFinder
	st       store.Store
	forecast *forecast.Engine
	notifier notify.Notifier
	bus      eventbus.EventBus
	log      logger.Logger
}

// New creates the API handler.
func New(alloc *scheduler.Allocator, slots *scheduler.SlotFinder, st store.Store, fc *forecast.Engine, n notify.Notifier, bus eventbus.EventBus, log logger.Logger) *Handler {
	if n == nil {
		n = notify.Nop{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{alloc: alloc, slots: slots, st: st, forecast: fc, notifier: n, bus: bus, log: log}
}

// Register mounts the API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/api/schedule/batch", h.scheduleBatch)
	mux.HandleFunc("/api/slots", h.getSlots)
	mux.HandleFunc("/api/bookings/confirm", h.confirmBooking)
	mux.HandleFunc("/api/bookings", h.listBookings)
	mux.HandleFunc("/api/forecast", h.getForecast)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "fleetguard"})
}

type scheduleBatchRequest struct {
	VehicleIDs []string `json:"vehicle_ids"`
	DateRange  struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"date_range"`
}

func (h *Handler) scheduleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req scheduleBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.VehicleIDs) == 0 {
		writeError(w, http.StatusBadRequest, "no vehicles provided")
		return
	}
	start, end, err := parseDateRange(req.DateRange.Start, req.DateRange.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.alloc.ScheduleBatch(r.Context(), req.VehicleIDs, start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduled_count": len(res.Scheduled),
		"failed_count":    len(res.Failed),
		"scheduled":       orEmptySummaries(res.Scheduled),
		"failed":          orEmptyFailures(res.Failed),
	})
}

func (h *Handler) getSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	centerID := r.URL.Query().Get("center_id")
	dateStr := r.URL.Query().Get("date")
	if centerID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "center_id and date are required")
		return
	}
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, use YYYY-MM-DD")
		return
	}
	center, err := h.st.GetCenter(r.Context(), centerID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	slots, err := h.slots.FindSlots(r.Context(), *center, day, day.AddDate(0, 0, 1), 100)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"center_id":       centerID,
		"date":            dateStr,
		"available_slots": slots,
		"total_slots":     len(slots),
	})
}

type confirmRequest struct {
	BookingID string `json:"booking_id"`
	Contact   struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"customer_contact"`
}

func (h *Handler) confirmBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "booking_id is required")
		return
	}
	b, err := h.st.TransitionBooking(r.Context(), req.BookingID, model.StatusConfirmed)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if h.bus != nil {
		h.bus.Publish(events.BookingConfirmed{Booking: *b})
	}
	// Fire and forget: the booking is confirmed whether or not the
	// notification goes through.
	go func(ev notify.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.notifier.Notify(ctx, ev); err != nil {
			h.log.Warnf("notification for %s failed: %v", ev.BookingID, err)
		}
	}(notify.Event{
		BookingID: b.ID,
		Type:      notify.TypeBookingConfirmation,
		Recipient: req.Contact.Name,
		Contact:   req.Contact.Phone,
	})
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	f := store.BookingFilter{
		CenterID:  r.URL.Query().Get("center_id"),
		VehicleID: r.URL.Query().Get("vehicle_id"),
		Limit:     100,
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := model.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = &status
	}
	bookings, err := h.st.ListBookings(r.Context(), f)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings, "count": len(bookings)})
}

func (h *Handler) getForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.forecast == nil {
		writeError(w, http.StatusServiceUnavailable, "forecasting disabled")
		return
	}
	days := 0
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	fc, err := h.forecast.EstimateHorizon(r.Context(), r.URL.Query().Get("region"), days)
	if err != nil {
		// Forecast failures never block scheduling; report and move on.
		h.log.Warnf("forecast: %v", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid booking status transition")
	default:
		h.log.Errorf("api: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseDateRange(start, end string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	s := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	e := s.AddDate(0, 0, 7)
	var err error
	if start != "" {
		if s, err = time.Parse("2006-01-02", start); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid start date, use YYYY-MM-DD")
		}
	}
	if end != "" {
		if e, err = time.Parse("2006-01-02", end); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid end date, use YYYY-MM-DD")
		}
	}
	if !e.After(s) {
		return time.Time{}, time.Time{}, errors.New("date range end must be after start")
	}
	return s, e, nil
}

func orEmptySummaries(s []scheduler.BookingSummary) []scheduler.BookingSummary {
	if s == nil {
		return []scheduler.BookingSummary{}
	}
	return s
}

func orEmptyFailures(f []scheduler.Failure) []scheduler.Failure {
	if f == nil {
		return []scheduler.Failure{}
	}
	return f
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

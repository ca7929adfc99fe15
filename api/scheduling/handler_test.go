package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetguard/core/model"
	"fleetguard/core/notify"
	"fleetguard/core/scheduler"
	"fleetguard/core/store/memory"
)

type recordingNotifier struct {
	events chan notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	r.events <- ev
	return nil
}

func newTestServer(t *testing.T, st *memory.Store, n notify.Notifier) *httptest.Server {
	t.Helper()
	var cfg scheduler.Config
	cfg.SetDefaults()
	alloc, err := scheduler.NewAllocator(cfg, st, rand.New(rand.NewSource(1)), nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	slots := scheduler.NewSlotFinder(st, cfg.SlotDuration(), nil)
	h := New(alloc, slots, st, nil, n, nil, nil)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func seedFixture(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	c := model.ServiceCenter{ID: "SC1", CapacityBays: 3, OpenHour: 9, CloseHour: 18, Active: true}
	if err := st.UpsertCenter(ctx, &c); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertVehicle(ctx, &model.Vehicle{ID: "V001", Tier: model.TierPremium}); err != nil {
		t.Fatal(err)
	}
	f := model.MaintenanceFlag{VehicleID: "V001", Severity: 70, FlaggedAt: time.Now().UTC()}
	if err := st.CreateFlag(ctx, &f); err != nil {
		t.Fatal(err)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("unexpected health response: %d %v", resp.StatusCode, body)
	}
}

func TestScheduleBatchEndpoint(t *testing.T) {
	st := memory.New()
	seedFixture(t, st)
	srv := newTestServer(t, st, nil)

	start := time.Now().UTC().Format("2006-01-02")
	end := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	resp := postJSON(t, srv.URL+"/api/schedule/batch", map[string]any{
		"vehicle_ids": []string{"V001", "GHOST"},
		"date_range":  map[string]string{"start": start, "end": end},
	})
	var body struct {
		ScheduledCount int                        `json:"scheduled_count"`
		FailedCount    int                        `json:"failed_count"`
		Scheduled      []scheduler.BookingSummary `json:"scheduled"`
		Failed         []scheduler.Failure        `json:"failed"`
	}
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	if body.ScheduledCount != 1 || body.FailedCount != 1 {
		t.Fatalf("expected 1/1 got %+v", body)
	}
	if body.Scheduled[0].VehicleID != "V001" || body.Failed[0].VehicleID != "GHOST" {
		t.Fatalf("unexpected outcome: %+v", body)
	}
}

func TestScheduleBatchValidation(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)

	resp := postJSON(t, srv.URL+"/api/schedule/batch", map[string]any{"vehicle_ids": []string{}})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty vehicles got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/schedule/batch", map[string]any{
		"vehicle_ids": []string{"V001"},
		"date_range":  map[string]string{"start": "2026-03-10", "end": "2026-03-01"},
	})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range got %d", resp.StatusCode)
	}
}

func TestGetSlotsEndpoint(t *testing.T) {
	st := memory.New()
	seedFixture(t, st)
	srv := newTestServer(t, st, nil)

	date := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	resp, err := http.Get(fmt.Sprintf("%s/api/slots?center_id=SC1&date=%s", srv.URL, date))
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		CenterID string      `json:"center_id"`
		Slots    []time.Time `json:"available_slots"`
		Total    int         `json:"total_slots"`
	}
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	// 09:00 through 17:00 on an empty day.
	if body.Total != 9 {
		t.Fatalf("expected 9 open slots got %d", body.Total)
	}

	resp, err = http.Get(srv.URL + "/api/slots?center_id=NOPE&date=" + date)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown center got %d", resp.StatusCode)
	}
}

func TestConfirmBookingEndpoint(t *testing.T) {
	st := memory.New()
	seedFixture(t, st)
	n := &recordingNotifier{events: make(chan notify.Event, 1)}
	srv := newTestServer(t, st, n)

	start := time.Now().UTC().Format("2006-01-02")
	end := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	resp := postJSON(t, srv.URL+"/api/schedule/batch", map[string]any{
		"vehicle_ids": []string{"V001"},
		"date_range":  map[string]string{"start": start, "end": end},
	})
	var batch struct {
		Scheduled []scheduler.BookingSummary `json:"scheduled"`
	}
	decode(t, resp, &batch)
	if len(batch.Scheduled) != 1 {
		t.Fatalf("fixture booking missing: %+v", batch)
	}
	bookingID := batch.Scheduled[0].BookingID

	resp = postJSON(t, srv.URL+"/api/bookings/confirm", map[string]any{
		"booking_id":       bookingID,
		"customer_contact": map[string]string{"name": "Customer 1", "phone": "+91-9876543210"},
	})
	var confirmed model.Booking
	decode(t, resp, &confirmed)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	if confirmed.Status != model.StatusConfirmed || confirmed.ConfirmedAt.IsZero() {
		t.Fatalf("expected confirmed booking, got %+v", confirmed)
	}

	select {
	case ev := <-n.events:
		if ev.BookingID != bookingID || ev.Type != notify.TypeBookingConfirmation {
			t.Fatalf("unexpected notification: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never sent")
	}

	// Confirming twice conflicts.
	resp = postJSON(t, srv.URL+"/api/bookings/confirm", map[string]any{"booking_id": bookingID})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on double confirm got %d", resp.StatusCode)
	}
}

func TestConfirmBookingNotFound(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	resp := postJSON(t, srv.URL+"/api/bookings/confirm", map[string]any{"booking_id": "BKG-MISSING"})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.StatusCode)
	}
}

func TestListBookingsEndpoint(t *testing.T) {
	st := memory.New()
	seedFixture(t, st)
	srv := newTestServer(t, st, nil)

	start := time.Now().UTC().Format("2006-01-02")
	end := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	resp := postJSON(t, srv.URL+"/api/schedule/batch", map[string]any{
		"vehicle_ids": []string{"V001"},
		"date_range":  map[string]string{"start": start, "end": end},
	})
	_ = resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/bookings?status=provisional")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Bookings []model.Booking `json:"bookings"`
		Count    int             `json:"count"`
	}
	decode(t, resp, &body)
	if body.Count != 1 || body.Bookings[0].VehicleID != "V001" {
		t.Fatalf("unexpected bookings: %+v", body)
	}

	resp, err = http.Get(srv.URL + "/api/bookings?status=warp")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status got %d", resp.StatusCode)
	}
}

func TestForecastDisabled(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	resp, err := http.Get(srv.URL + "/api/forecast?region=North")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without forecast engine got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	resp, err := http.Get(srv.URL + "/api/schedule/batch")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", resp.StatusCode)
	}
}

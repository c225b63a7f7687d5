package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/seva/seva/internal/domain/appointment"
)

type handlerFixture struct {
	*fixture
	h *Handler
	e *echo.Echo
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(t)
	return &handlerFixture{fixture: f, h: NewHandler(f.svc), e: echo.New()}
}

func (hf *handlerFixture) request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return hf.e.NewContext(req, rec), rec
}

func TestCheckInHandler_Created(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	appt := hf.bookedAppointment(p.ID)

	body := fmt.Sprintf(`{"appointment_id":%q}`, appt.ID)
	c, rec := hf.request(http.MethodPost, "/api/queue/check-in", body)

	if err := hf.h.CheckIn(c); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result AdmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Position != 0 || result.EstimatedWaitMinutes != 0 {
		t.Errorf("expected 0/0, got %d/%d", result.Position, result.EstimatedWaitMinutes)
	}
	if result.Entry == nil || result.Entry.Status != StatusWaiting {
		t.Error("expected a waiting entry in the response")
	}
}

func TestCheckInHandler_RejectsEmergencyMode(t *testing.T) {
	hf := newHandlerFixture(t)
	c, _ := hf.request(http.MethodPost, "/api/queue/check-in", `{"mode":"emergency"}`)

	err := hf.h.CheckIn(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestCheckInHandler_TooEarlyConflictBody(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	appt := hf.bookedAppointment(p.ID)
	appt.ScheduledStart = hf.now.Add(30 * time.Minute)

	body := fmt.Sprintf(`{"appointment_id":%q}`, appt.ID)
	c, rec := hf.request(http.MethodPost, "/api/queue/check-in", body)

	if err := hf.h.CheckIn(c); err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var rej rejectionBody
	if err := json.Unmarshal(rec.Body.Bytes(), &rej); err != nil {
		t.Fatalf("decoding rejection: %v", err)
	}
	if rej.Reason != ReasonTooEarly {
		t.Errorf("expected too_early, got %s", rej.Reason)
	}
	if rej.WindowOpensAt == nil || rej.WindowClosesAt == nil {
		t.Error("expected window bounds in the rejection body")
	}
}

func TestCheckInHandler_DuplicateConflictBody(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	appt := hf.bookedAppointment(p.ID)
	hf.checkIn(t, appt)

	appt2 := hf.appts.add(&appointment.Appointment{
		VisitorID:      appt.VisitorID,
		ProviderID:     p.ID,
		ScheduledStart: hf.now,
		Status:         appointment.StatusBooked,
		Priority:       appointment.PriorityNormal,
	})
	body := fmt.Sprintf(`{"appointment_id":%q}`, appt2.ID)
	c, rec := hf.request(http.MethodPost, "/api/queue/check-in", body)

	if err := hf.h.CheckIn(c); err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var rej rejectionBody
	if err := json.Unmarshal(rec.Body.Bytes(), &rej); err != nil {
		t.Fatalf("decoding rejection: %v", err)
	}
	if rej.Reason != ReasonAlreadyQueued {
		t.Errorf("expected already_queued, got %s", rej.Reason)
	}
	if rej.ExistingEntryID == nil || rej.ExistingPosition == nil {
		t.Error("expected existing entry location in the rejection body")
	}
}

func TestCheckInHandler_UnknownAppointment(t *testing.T) {
	hf := newHandlerFixture(t)
	body := fmt.Sprintf(`{"appointment_id":%q}`, uuid.New())
	c, rec := hf.request(http.MethodPost, "/api/queue/check-in", body)

	if err := hf.h.CheckIn(c); err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCheckInHandler_InvalidStateBadRequest(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	appt := hf.bookedAppointment(p.ID)
	appt.Status = appointment.StatusCancelled

	body := fmt.Sprintf(`{"appointment_id":%q}`, appt.ID)
	c, rec := hf.request(http.MethodPost, "/api/queue/check-in", body)

	if err := hf.h.CheckIn(c); err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEmergencyHandler_Created(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	hf.checkIn(t, hf.bookedAppointment(p.ID))

	body := fmt.Sprintf(`{"visitor_id":%q,"provider_id":%q}`, uuid.New(), p.ID)
	c, rec := hf.request(http.MethodPost, "/api/queue/emergencies", body)

	if err := hf.h.AdmitEmergency(c); err != nil {
		t.Fatalf("AdmitEmergency failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result AdmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Position != 0 {
		t.Errorf("expected emergency at position 0, got %d", result.Position)
	}
	if result.Entry.Mode != ModeEmergency {
		t.Errorf("expected emergency mode, got %s", result.Entry.Mode)
	}
}

func TestEmergencyHandler_Unassigned(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.provs.add(true)

	body := fmt.Sprintf(`{"visitor_id":%q}`, uuid.New())
	c, rec := hf.request(http.MethodPost, "/api/queue/emergencies", body)

	if err := hf.h.AdmitEmergency(c); err != nil {
		t.Fatalf("AdmitEmergency failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var result AdmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Entry.ProviderID != nil {
		t.Error("expected no provider on unassigned emergency")
	}
}

func TestProviderSnapshotHandler(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	hf.checkIn(t, hf.bookedAppointment(p.ID))
	hf.checkIn(t, hf.bookedAppointment(p.ID))

	c, rec := hf.request(http.MethodGet, "/api/queue/providers/"+p.ID.String(), "")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := hf.h.ProviderSnapshot(c); err != nil {
		t.Fatalf("ProviderSnapshot failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entries []*Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Position != 0 || entries[1].Position != 1 {
		t.Error("expected entries ordered by position")
	}
}

func TestProviderSnapshotHandler_EmptyQueueIsEmptyList(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)

	c, rec := hf.request(http.MethodGet, "/api/queue/providers/"+p.ID.String(), "")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := hf.h.ProviderSnapshot(c); err != nil {
		t.Fatalf("ProviderSnapshot failed: %v", err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("expected empty JSON array, got %s", got)
	}
}

func TestProviderSnapshotHandler_InvalidID(t *testing.T) {
	hf := newHandlerFixture(t)
	c, _ := hf.request(http.MethodGet, "/api/queue/providers/not-a-uuid", "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := hf.h.ProviderSnapshot(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestStartNextHandler(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	hf.checkIn(t, hf.bookedAppointment(p.ID))

	c, rec := hf.request(http.MethodPost, "/api/queue/providers/"+p.ID.String()+"/next", "")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := hf.h.StartNext(c); err != nil {
		t.Fatalf("StartNext failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entry Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if entry.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", entry.Status)
	}
}

func TestStartNextHandler_EmptyQueue(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)

	c, rec := hf.request(http.MethodPost, "/api/queue/providers/"+p.ID.String()+"/next", "")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := hf.h.StartNext(c); err != nil {
		t.Fatalf("StartNext returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCompleteEntryHandler(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	hf.checkIn(t, hf.bookedAppointment(p.ID))
	started, err := hf.svc.StartNext(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("StartNext failed: %v", err)
	}

	c, rec := hf.request(http.MethodPost, "/api/queue/entries/"+started.ID.String()+"/complete", "")
	c.SetParamNames("id")
	c.SetParamValues(started.ID.String())

	if err := hf.h.CompleteEntry(c); err != nil {
		t.Fatalf("CompleteEntry failed: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestCancelEntryHandler(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	result := hf.checkIn(t, hf.bookedAppointment(p.ID))

	c, rec := hf.request(http.MethodPost, "/api/queue/entries/"+result.Entry.ID.String()+"/cancel", "")
	c.SetParamNames("id")
	c.SetParamValues(result.Entry.ID.String())

	if err := hf.h.CancelEntry(c); err != nil {
		t.Fatalf("CancelEntry failed: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestCancelEntryHandler_Twice(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)
	result := hf.checkIn(t, hf.bookedAppointment(p.ID))
	if err := hf.svc.Cancel(context.Background(), result.Entry.ID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}

	c, rec := hf.request(http.MethodPost, "/api/queue/entries/"+result.Entry.ID.String()+"/cancel", "")
	c.SetParamNames("id")
	c.SetParamValues(result.Entry.ID.String())

	if err := hf.h.CancelEntry(c); err != nil {
		t.Fatalf("CancelEntry returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAssignEmergencyHandler(t *testing.T) {
	hf := newHandlerFixture(t)
	p := hf.provs.add(true)

	unassigned, err := hf.svc.Admit(context.Background(), AdmitRequest{VisitorID: uuid.New(), Mode: ModeEmergency})
	if err != nil {
		t.Fatalf("unassigned emergency failed: %v", err)
	}

	body := fmt.Sprintf(`{"provider_id":%q}`, p.ID)
	c, rec := hf.request(http.MethodPost, "/api/queue/entries/"+unassigned.Entry.ID.String()+"/assign", body)
	c.SetParamNames("id")
	c.SetParamValues(unassigned.Entry.ID.String())

	if err := hf.h.AssignEmergency(c); err != nil {
		t.Fatalf("AssignEmergency failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var entry Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if entry.ProviderID == nil || *entry.ProviderID != p.ID {
		t.Error("expected assigned provider in response")
	}
}

func TestAssignEmergencyHandler_RequiresProvider(t *testing.T) {
	hf := newHandlerFixture(t)
	id := uuid.New().String()
	c, _ := hf.request(http.MethodPost, "/api/queue/entries/"+id+"/assign", `{}`)
	c.SetParamNames("id")
	c.SetParamValues(id)

	err := hf.h.AssignEmergency(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

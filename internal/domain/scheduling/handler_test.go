package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
)

func newTestHandler() (*Handler, *memStore, *echo.Echo) {
	svc, store, _ := newTestService()
	return NewHandler(svc), store, echo.New()
}

func newCtx(e *echo.Echo, method, body string, id *auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	if id != nil {
		req = req.WithContext(auth.WithIdentity(context.Background(), *id))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CreateSlot(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newCtx(e, http.MethodPost, `{"startTime":"2026-03-12T09:00:00Z"}`, &doctorA)

	if err := h.CreateSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var sl TimeSlot
	if err := json.Unmarshal(rec.Body.Bytes(), &sl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sl.EndTime.Equal(time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected end time %s", sl.EndTime)
	}
}

func TestHandler_CreateSlot_MissingStart(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newCtx(e, http.MethodPost, `{}`, &doctorA)
	err := h.CreateSlot(c)
	if !apperr.Is(err, apperr.Validation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_CreateSlot_Unauthenticated(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newCtx(e, http.MethodPost, `{"startTime":"2026-03-12T09:00:00Z"}`, nil)
	if err := h.CreateSlot(c); !apperr.Is(err, apperr.Unauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestHandler_GenerateDaySlots(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newCtx(e, http.MethodPost, `{"date":"2026-03-11"}`, &doctorA)

	if err := h.GenerateDaySlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["created"] != float64(32) || body["requested"] != float64(32) {
		t.Errorf("unexpected body %v", body)
	}
	if body["message"] == "" {
		t.Error("expected a message")
	}
}

func TestHandler_ListMySlots(t *testing.T) {
	h, store, e := newTestHandler()
	for i := 0; i < 16; i++ {
		store.addSlot(1, testNow.Add(time.Duration(i+1)*time.Hour), false)
	}
	req := httptest.NewRequest(http.MethodGet, "/?page=2&limit=15", nil)
	req = req.WithContext(auth.WithIdentity(context.Background(), doctorA))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListMySlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Slots      []map[string]interface{} `json:"slots"`
		Pagination map[string]int           `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Slots) != 1 {
		t.Errorf("expected 1 slot on page 2, got %d", len(body.Slots))
	}
	if body.Pagination["totalPages"] != 2 || body.Pagination["currentPage"] != 2 || body.Pagination["totalItems"] != 16 {
		t.Errorf("unexpected pagination %v", body.Pagination)
	}
	if _, ok := body.Slots[0]["end_time"]; ok {
		t.Error("my-slots rows carry id, start_time and is_booked only")
	}
}

func TestHandler_DeleteSlot_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newCtx(e, http.MethodDelete, "", &doctorA)
	c.SetParamNames("id")
	c.SetParamValues("abc")
	if err := h.DeleteSlot(c); !apperr.Is(err, apperr.Validation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_ListAvailableSlots_EmptyMarker(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newCtx(e, http.MethodGet, "", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.ListAvailableSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]json.RawMessage
	json.Unmarshal(rec.Body.Bytes(), &body)
	if _, ok := body["message"]; !ok {
		t.Error("expected a no-slots message")
	}
	if string(body["slots"]) != "[]" {
		t.Errorf("expected empty slots array, got %s", body["slots"])
	}
}

func TestHandler_BookAndCancel(t *testing.T) {
	h, store, e := newTestHandler()
	sl := store.addSlot(1, testNow.Add(time.Hour), false)

	c, rec := newCtx(e, http.MethodPost, `{"timeSlotId":`+jsonInt(sl.ID)+`}`, &patientP)
	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("book: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var booked struct {
		Message     string      `json:"message"`
		Appointment Appointment `json:"appointment"`
	}
	json.Unmarshal(rec.Body.Bytes(), &booked)
	if booked.Appointment.ID == 0 || booked.Appointment.Status != StatusScheduled {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	c, _ = newCtx(e, http.MethodPost, `{"timeSlotId":`+jsonInt(sl.ID)+`}`, &patientQ)
	if err := h.BookAppointment(c); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	c, rec = newCtx(e, http.MethodDelete, "", &patientP)
	c.SetParamNames("id")
	c.SetParamValues(jsonInt(booked.Appointment.ID))
	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ListMyAppointments(t *testing.T) {
	h, _, e := newTestHandler()

	c, rec := newCtx(e, http.MethodGet, "", &patientP)
	if err := h.ListMyAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}

	c, _ = newCtx(e, http.MethodGet, "", &admin)
	if err := h.ListMyAppointments(c); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("expected forbidden for admin, got %v", err)
	}
}

func TestRegisterRoutes_RoleGates(t *testing.T) {
	h, _, e := newTestHandler()
	api := e.Group("/api")
	authed := api.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := patientP
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	})
	h.RegisterRoutes(api, authed)

	var gotErr error
	e.HTTPErrorHandler = func(err error, c echo.Context) { gotErr = err }

	req := httptest.NewRequest(http.MethodPost, "/api/slots", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	e.ServeHTTP(httptest.NewRecorder(), req)
	if !apperr.Is(gotErr, apperr.Forbidden) {
		t.Errorf("patient creating a slot: expected forbidden, got %v", gotErr)
	}
}

func TestRegisterRoutes_UnknownRoutesAreNotGated(t *testing.T) {
	h, _, e := newTestHandler()
	api := e.Group("/api")
	authed := api.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), doctorA)))
			return next(c)
		}
	})
	h.RegisterRoutes(api, authed)

	var gotErr error
	e.HTTPErrorHandler = func(err error, c echo.Context) { gotErr = err }

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/nope"},
		{http.MethodPut, "/api/slots/5"},
		{http.MethodGet, "/api/appointments/5"},
	}
	for _, tt := range tests {
		gotErr = nil
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))
		if apperr.Is(gotErr, apperr.Forbidden) {
			t.Errorf("%s %s: role gate leaked onto an unregistered route", tt.method, tt.path)
		}
		he, ok := gotErr.(*echo.HTTPError)
		if !ok || (he.Code != http.StatusNotFound && he.Code != http.StatusMethodNotAllowed) {
			t.Errorf("%s %s: expected 404 or 405, got %v", tt.method, tt.path, gotErr)
		}
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

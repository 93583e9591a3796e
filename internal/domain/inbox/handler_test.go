package inbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockNotificationRepo, *echo.Echo) {
	svc, repo := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func authedContext(e *echo.Echo, method, target string, userID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(auth.WithIdentity(context.Background(), userID.String(), "patient"))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_List(t *testing.T) {
	h, repo, e := newTestHandler()
	me := uuid.New()
	seed(t, repo, me, TypeAppointmentBooking)

	c, rec := authedContext(e, http.MethodGet, "/api/notifications", me)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"notification_type":"appointment_booking"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_List_Anonymous(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := h.List(c); !apperror.Is(err, apperror.KindAuth) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestHandler_MarkRead(t *testing.T) {
	h, repo, e := newTestHandler()
	me := uuid.New()
	n := seed(t, repo, me, TypeAppointmentBooking)

	c, rec := authedContext(e, http.MethodPost, "/", me)
	c.SetParamNames("id")
	c.SetParamValues(n.ID.String())
	if err := h.MarkRead(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !n.IsRead {
		t.Errorf("expected notification to be marked read, code %d", rec.Code)
	}

	c, _ = authedContext(e, http.MethodPost, "/", me)
	c.SetParamNames("id")
	c.SetParamValues("bogus")
	if err := h.MarkRead(c); !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))

	found := map[string]bool{}
	for _, r := range e.Routes() {
		found[r.Method+":"+r.Path] = true
	}
	for _, want := range []string{"GET:/api/notifications", "POST:/api/notifications/:id/read"} {
		if !found[want] {
			t.Errorf("missing route %s", want)
		}
	}
}

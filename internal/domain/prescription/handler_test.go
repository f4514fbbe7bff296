package prescription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medintel/medintel/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func asUser(req *http.Request, uid string) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), uid))
}

func TestHandler_CreatePrescription(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"file_name":"rx.pdf","doctor_name":"Dr. Rao","consultation_date":"Not clearly visible",
		"medicines":[{"name":"Metformin","frequency":"twice daily","duration":"10 days"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(req, "user-1"), rec)

	if err := h.CreatePrescription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var p Prescription
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", p.UserID)
	}
	if p.ConsultationDate != nil {
		t.Errorf("expected placeholder date dropped, got %v", p.ConsultationDate)
	}
	if len(p.Medicines) != 1 || p.Medicines[0].Name != "Metformin" {
		t.Errorf("unexpected medicines %+v", p.Medicines)
	}
}

func TestHandler_CreatePrescription_BadRequest(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"medicines":[{"name":""}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(asUser(req, "user-1"), httptest.NewRecorder())

	err := h.CreatePrescription(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Unauthenticated(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/prescriptions", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.ListPrescriptions(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_GetPrescription(t *testing.T) {
	h, svc, e := newTestHandler()
	p, _ := svc.Create(context.Background(), "user-1", sampleRequest())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(req, "user-1"), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetPrescription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetPrescription_NotFound(t *testing.T) {
	h, svc, e := newTestHandler()
	p, _ := svc.Create(context.Background(), "user-1", sampleRequest())

	for _, tc := range []struct {
		name string
		uid  string
		id   string
	}{
		{"unknown id", "user-1", uuid.New().String()},
		{"other user", "user-2", p.ID.String()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			c := e.NewContext(asUser(req, tc.uid), httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(tc.id)

			err := h.GetPrescription(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %v", err)
			}
		})
	}
}

func TestHandler_GetPrescription_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(asUser(req, "user-1"), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetPrescription(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_ListPrescriptions(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.Create(context.Background(), "user-1", sampleRequest())
	svc.Create(context.Background(), "user-1", sampleRequest())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/prescriptions?limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(req, "user-1"), rec)

	if err := h.ListPrescriptions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Total   int             `json:"total"`
		HasMore bool            `json:"has_more"`
		Data    []*Prescription `json:"data"`
		Links   struct {
			Next string `json:"next"`
		} `json:"links"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 2 || len(body.Data) != 1 || !body.HasMore {
		t.Errorf("unexpected page: total=%d len=%d more=%v", body.Total, len(body.Data), body.HasMore)
	}
	if body.Links.Next != "/api/v1/prescriptions?limit=1&offset=1" {
		t.Errorf("unexpected next link %q", body.Links.Next)
	}
}

func TestHandler_DeletePrescription(t *testing.T) {
	h, svc, e := newTestHandler()
	p, _ := svc.Create(context.Background(), "user-1", sampleRequest())

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(req, "user-1"), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.DeletePrescription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_UpdateMedicine(t *testing.T) {
	h, svc, e := newTestHandler()
	regen := &recordingRegen{}
	svc.SetRegenerator(regen)
	p, _ := svc.Create(context.Background(), "user-1", sampleRequest())

	body := `{"frequency":"every 6 hours","priority_level":"critical"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(req, "user-1"), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.Medicines[0].ID.String())

	if err := h.UpdateMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m Medicine
	json.Unmarshal(rec.Body.Bytes(), &m)
	if m.Frequency != "every 6 hours" || m.PriorityLevel != PriorityCritical {
		t.Errorf("unexpected medicine %+v", m)
	}
	if len(regen.calls) != 1 {
		t.Errorf("expected schedule regeneration, got %d calls", len(regen.calls))
	}
}

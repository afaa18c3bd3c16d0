package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"clearshift/internal/notify"
	"clearshift/internal/support/models"
	"clearshift/internal/support/service"
	"clearshift/internal/support/store"
	"clearshift/pkg/requestcontext"
)

const tenantDomain = "example.com"

type stubRecipients []string

func (s stubRecipients) ActiveRecipients(ctx context.Context, domain string) ([]string, error) {
	return s, nil
}

type dropEnqueuer struct{}

func (dropEnqueuer) Enqueue(msg notify.Message) {}

// withTenant simulates the tenant guard for handler tests.
func withTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithDomain(r.Context(), tenantDomain)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	svc := service.New(store.NewInMemory(),
		stubRecipients{"owner@example.com"},
		dropEnqueuer{},
		service.Config{})
	r := chi.NewRouter()
	r.Use(withTenant)
	New(svc, nil).Register(r)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func submitRequest(t *testing.T, router chi.Router) models.Request {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/support", map[string]any{
		"employee_id":  "emp-7",
		"support_type": "hr",
		"message":      "Please reach out.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out models.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return out
}

func TestSubmitAndFetch(t *testing.T) {
	router := newRouter(t)

	r := submitRequest(t, router)
	if r.Domain != tenantDomain || r.Status != models.StatusNew {
		t.Fatalf("unexpected request: %+v", r)
	}

	rec := doJSON(t, router, http.MethodGet, "/support/"+r.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
}

func TestStatusUpdate(t *testing.T) {
	router := newRouter(t)
	r := submitRequest(t, router)

	rec := doJSON(t, router, http.MethodPost, "/support/"+r.ID.String()+"/status",
		map[string]any{"status": "resolved"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out models.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != models.StatusResolved || out.ResolvedAt == nil {
		t.Fatalf("expected resolved with timestamp, got %+v", out)
	}

	rec = doJSON(t, router, http.MethodPost, "/support/"+r.ID.String()+"/status",
		map[string]any{"status": "done"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestListFilterValidation(t *testing.T) {
	router := newRouter(t)
	submitRequest(t, router)

	rec := doJSON(t, router, http.MethodGet, "/support?type=hr", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []models.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 request, got %d", len(out))
	}

	rec = doJSON(t, router, http.MethodGet, "/support?type=priest", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}
}

func TestContentRoundTrip(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/support/content", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before publish, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/support/content", map[string]any{
		"hr":        []string{"HR team: hr@example.com"},
		"tips":      []string{"Take breaks."},
		"is_active": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/support/content", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get content: expected 200, got %d", rec.Code)
	}
	var content models.Content
	if err := json.Unmarshal(rec.Body.Bytes(), &content); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if content.Version != 1 || len(content.HR) != 1 {
		t.Fatalf("unexpected content: %+v", content)
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clearshift/internal/license/service"
	"clearshift/internal/license/store"
)

type allowAllVerifier struct{}

func (allowAllVerifier) IsVerified(ctx context.Context, domain string) (bool, error) {
	return domain == "example.com", nil
}

type fixedSeats int

func (f fixedSeats) CountByDomain(ctx context.Context, domain string) (int, error) {
	return int(f), nil
}

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	svc := service.New(store.NewInMemory(), allowAllVerifier{}, fixedSeats(3))
	r := chi.NewRouter()
	New(svc, nil).Register(r)
	return r
}

func postJSON(t *testing.T, router chi.Router, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func issuePayload() map[string]any {
	return map[string]any{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "ada@example.com",
		"domain":     "example.com",
		"seat_limit": 5,
	}
}

func TestIssueLicense(t *testing.T) {
	router := newRouter(t)

	rec := postJSON(t, router, "/licenses", issuePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID     uuid.UUID `json:"id"`
		Key    string    `json:"license_key"`
		Status string    `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == uuid.Nil || resp.Key == "" || resp.Status != "active" {
		t.Fatalf("unexpected license: %+v", resp)
	}
}

func TestIssueUnverifiedDomainReturns422(t *testing.T) {
	router := newRouter(t)

	payload := issuePayload()
	payload["domain"] = "unverified.example"
	payload["email"] = "ada@unverified.example"
	rec := postJSON(t, router, "/licenses", payload)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRotateAndRevokeOverHTTP(t *testing.T) {
	router := newRouter(t)

	rec := postJSON(t, router, "/licenses", issuePayload())
	var created struct {
		ID  uuid.UUID `json:"id"`
		Key string    `json:"license_key"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rotateRec := postJSON(t, router, "/licenses/"+created.ID.String()+"/rotate", nil)
	if rotateRec.Code != http.StatusOK {
		t.Fatalf("rotate: %d", rotateRec.Code)
	}
	var rotated struct {
		Key string `json:"license_key"`
	}
	if err := json.NewDecoder(rotateRec.Body).Decode(&rotated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rotated.Key == created.Key {
		t.Fatal("rotate must change the key")
	}

	revokeRec := postJSON(t, router, "/licenses/"+created.ID.String()+"/revoke", nil)
	if revokeRec.Code != http.StatusOK {
		t.Fatalf("revoke: %d", revokeRec.Code)
	}
	var revoked struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(revokeRec.Body).Decode(&revoked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if revoked.Status != "revoked" {
		t.Fatalf("status = %q", revoked.Status)
	}
}

func TestSeatUsageEndpoint(t *testing.T) {
	router := newRouter(t)

	if rec := postJSON(t, router, "/licenses", issuePayload()); rec.Code != http.StatusCreated {
		t.Fatalf("issue: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/licenses/seats?domain=example.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("seats: %d: %s", rec.Code, rec.Body.String())
	}

	var usage struct {
		Used      int  `json:"used"`
		SeatLimit *int `json:"seat_limit"`
		Available *int `json:"available"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&usage); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if usage.Used != 3 || usage.SeatLimit == nil || *usage.SeatLimit != 5 {
		t.Fatalf("usage = %+v", usage)
	}
	if usage.Available == nil || *usage.Available != 2 {
		t.Fatalf("available = %v", usage.Available)
	}

	missing := httptest.NewRequest(http.MethodGet, "/licenses/seats", nil)
	missingRec := httptest.NewRecorder()
	router.ServeHTTP(missingRec, missing)
	if missingRec.Code != http.StatusBadRequest {
		t.Fatalf("missing domain: %d", missingRec.Code)
	}
}

func TestListFiltersByDomain(t *testing.T) {
	router := newRouter(t)

	if rec := postJSON(t, router, "/licenses", issuePayload()); rec.Code != http.StatusCreated {
		t.Fatalf("issue: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/licenses?domain=other.example", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var resp struct {
		Licenses []json.RawMessage `json:"licenses"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Licenses) != 0 {
		t.Fatalf("expected empty filtered list, got %d", len(resp.Licenses))
	}
}

func TestListFiltersByQueryStatusAndPage(t *testing.T) {
	router := newRouter(t)

	for _, email := range []string{"ada@example.com", "grace@example.com", "alan@example.com"} {
		payload := issuePayload()
		payload["email"] = email
		if rec := postJSON(t, router, "/licenses", payload); rec.Code != http.StatusCreated {
			t.Fatalf("issue %s: %d: %s", email, rec.Code, rec.Body.String())
		}
	}

	list := func(query string) []struct {
		Email string `json:"email"`
	} {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/licenses"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("list %s: %d: %s", query, rec.Code, rec.Body.String())
		}
		var resp struct {
			Licenses []struct {
				Email string `json:"email"`
			} `json:"licenses"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp.Licenses
	}

	if got := list("?q=grace"); len(got) != 1 || got[0].Email != "grace@example.com" {
		t.Fatalf("q filter = %+v", got)
	}
	if got := list("?status=revoked"); len(got) != 0 {
		t.Fatalf("status filter = %+v", got)
	}
	if got := list("?per_page=2&page=2"); len(got) != 1 {
		t.Fatalf("page 2 = %+v", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/licenses?status=frozen", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: %d", rec.Code)
	}
}

func TestGetUnknownLicenseReturns404(t *testing.T) {
	router := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/licenses/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

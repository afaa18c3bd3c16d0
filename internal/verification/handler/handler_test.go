package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"clearshift/internal/verification/mocks"
	"clearshift/internal/verification/service"
	"clearshift/internal/verification/store"
)

func newRouter(t *testing.T) (chi.Router, *mocks.MockTXTResolver) {
	t.Helper()
	ctrl := gomock.NewController(t)
	txt := mocks.NewMockTXTResolver(ctrl)
	svc := service.New(store.NewInMemory(), txt, service.Config{
		HostPrefix:        "_gp-verify",
		DefaultTTLSeconds: 3600,
		Window:            7 * 24 * time.Hour,
	})

	r := chi.NewRouter()
	New(svc, nil).Register(r)
	return r, txt
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

func TestInitiateReturnsInstruction(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/verifications", map[string]any{"domain": "Example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Verification struct {
			ID     uuid.UUID `json:"id"`
			Domain string    `json:"domain"`
			Status string    `json:"status"`
		} `json:"verification"`
		Instruction struct {
			RecordType string `json:"record_type"`
			FQDN       string `json:"fqdn"`
			Value      string `json:"value"`
			TTL        int    `json:"ttl"`
		} `json:"instruction"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Verification.ID == uuid.Nil {
		t.Fatal("expected verification id")
	}
	if resp.Verification.Domain != "example.com" || resp.Verification.Status != "pending" {
		t.Fatalf("unexpected verification: %+v", resp.Verification)
	}
	if resp.Instruction.RecordType != "TXT" || resp.Instruction.FQDN != "_gp-verify.example.com" {
		t.Fatalf("unexpected instruction: %+v", resp.Instruction)
	}
	if resp.Instruction.TTL != 3600 || resp.Instruction.Value == "" {
		t.Fatalf("unexpected record values: %+v", resp.Instruction)
	}
}

func TestInitiateRejectsBadDomain(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/verifications", map[string]any{"domain": "not a domain"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "validation_error" {
		t.Fatalf("unexpected error code %q", resp["error"])
	}
}

func TestCheckFlowOverHTTP(t *testing.T) {
	router, txt := newRouter(t)

	rec := postJSON(t, router, "/verifications", map[string]any{"domain": "example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("initiate: %d", rec.Code)
	}
	var created struct {
		Verification struct {
			ID uuid.UUID `json:"id"`
		} `json:"verification"`
		Instruction struct {
			Value string `json:"value"`
		} `json:"instruction"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	txt.EXPECT().
		LookupTXT(gomock.Any(), "_gp-verify.example.com").
		Return([]string{created.Instruction.Value}, nil)

	checkRec := postJSON(t, router, "/verifications/"+created.Verification.ID.String()+"/check", nil)
	if checkRec.Code != http.StatusOK {
		t.Fatalf("check: %d: %s", checkRec.Code, checkRec.Body.String())
	}
	var checked struct {
		Verified     bool `json:"verified"`
		Verification struct {
			Status string `json:"status"`
		} `json:"verification"`
	}
	if err := json.NewDecoder(checkRec.Body).Decode(&checked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !checked.Verified || checked.Verification.Status != "verified" {
		t.Fatalf("expected verified, got %+v", checked)
	}
}

func TestCheckUnknownIDReturns404(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/verifications/"+uuid.NewString()+"/check", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCheckMalformedIDReturns400(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/verifications/not-a-uuid/check", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateReportsReverification(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/verifications", map[string]any{"domain": "example.com"})
	var created struct {
		Verification struct {
			ID uuid.UUID `json:"id"`
		} `json:"verification"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	body, _ := json.Marshal(map[string]any{"domain": "other.example"})
	req := httptest.NewRequest(http.MethodPatch, "/verifications/"+created.Verification.ID.String(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	patchRec := httptest.NewRecorder()
	router.ServeHTTP(patchRec, req)
	if patchRec.Code != http.StatusOK {
		t.Fatalf("patch: %d: %s", patchRec.Code, patchRec.Body.String())
	}

	var patched struct {
		RequiresReverify bool `json:"requires_reverification"`
		Verification     struct {
			Domain string `json:"domain"`
			Status string `json:"status"`
		} `json:"verification"`
	}
	if err := json.NewDecoder(patchRec.Body).Decode(&patched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !patched.RequiresReverify {
		t.Fatal("expected requires_reverification")
	}
	if patched.Verification.Domain != "other.example" || patched.Verification.Status != "pending" {
		t.Fatalf("unexpected verification: %+v", patched.Verification)
	}
}

func TestDeleteThenGetReturns404(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/verifications", map[string]any{"domain": "example.com"})
	var created struct {
		Verification struct {
			ID uuid.UUID `json:"id"`
		} `json:"verification"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/verifications/"+created.Verification.ID.String(), nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", delRec.Code)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/verifications/"+created.Verification.ID.String(), nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", getRec.Code)
	}
}

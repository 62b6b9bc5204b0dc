package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dental-inspections/internal/ports/auth"
	"dental-inspections/internal/ports/capabilities"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	if token == "ok" {
		return auth.Claims{UserID: "u-1", Role: auth.RoleSupervisor}, nil
	}
	return auth.Claims{}, errors.New("bad token")
}

type stubResolver map[capabilities.Capability]bool

func (s stubResolver) HasFeature(_ context.Context, in capabilities.CapabilityCheck) (bool, error) {
	return s[in.Capability], nil
}

func claimsEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := GetClaims(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(c.UserID + "|" + string(c.Role)))
	})
}

func TestAuthContext_DevHeaders(t *testing.T) {
	h := AuthContext(nil)(claimsEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "insp-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "insp-1|inspector" {
		t.Fatalf("expected default inspector role, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "sup-1")
	req.Header.Set("X-Debug-User-Role", "Supervisor")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "sup-1|supervisor" {
		t.Fatalf("expected supervisor, got %q", rec.Body.String())
	}
}

func TestAuthContext_Verifier(t *testing.T) {
	h := AuthContext(stubVerifier{})(claimsEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "u-1|supervisor" {
		t.Fatalf("expected claims from verifier, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/live?access_token=ok", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "u-1|supervisor" {
		t.Fatalf("expected claims from query token, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected request to continue without claims, got %d", rec.Code)
	}
}

func TestRequireCapability(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	res := stubResolver{capabilities.InspectionsSubmit: true}

	cases := []struct {
		name string
		user string
		cap  capabilities.Capability
		want int
	}{
		{"no claims", "", capabilities.InspectionsSubmit, http.StatusUnauthorized},
		{"granted", "insp-1", capabilities.InspectionsSubmit, http.StatusOK},
		{"denied", "insp-1", capabilities.ClinicsWrite, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := AuthContext(nil)(RequireCapability(res, tc.cap)(ok))
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.user != "" {
				req.Header.Set("X-Debug-User-ID", tc.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

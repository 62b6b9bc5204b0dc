package iam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dental-inspections/internal/ports/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIAMServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tokens/verify" || r.Header.Get("X-Api-Key") != "k" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"user_id": "insp-7",
				"email":   "insp7@moh.gov.kw",
				"name":    "Fatima",
				"role":    "Supervisor",
			})
		case "Bearer noid":
			_ = json.NewEncoder(w).Encode(map[string]string{"email": "x"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
}

func TestVerifier_Verify(t *testing.T) {
	ts := newIAMServer(t)
	defer ts.Close()

	c, err := NewClient(Config{BaseURL: ts.URL, APIKey: "k"})
	require.NoError(t, err)
	v := NewVerifier(c)

	claims, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "insp-7", claims.UserID)
	assert.Equal(t, auth.RoleSupervisor, claims.Role)
	assert.True(t, claims.IsSupervisor())

	_, err = v.Verify(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIAMUnauthorized))

	_, err = v.Verify(context.Background(), "noid")
	assert.Error(t, err)

	_, err = v.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrTokenEmpty)
}

func TestVerifier_NotConfigured(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.False(t, c.IsConfigured())

	_, err = NewVerifier(c).Verify(context.Background(), "good")
	assert.ErrorIs(t, err, ErrIAMNotConfigured)
}

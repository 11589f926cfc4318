// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation, and context propagation

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, verifier TokenVerifier, header string) (*httptest.ResponseRecorder, *AuthContext) {
	t.Helper()
	var got *AuthContext
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	Middleware(verifier, nil)(handler).ServeHTTP(rec, req)
	return rec, got
}

func TestMiddleware_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)
	token, err := verifier.Generate("clinician-7", time.Hour)
	require.NoError(t, err)

	rec, got := serve(t, verifier, "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "clinician-7", got.Subject)
}

func TestMiddleware_Rejects(t *testing.T) {
	verifier := newTestVerifier(t)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "missing authorization header"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"empty bearer", "Bearer ", "empty token"},
		{"garbage", "Bearer garbage", "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, got := serve(t, verifier, tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, got, "handler must not run")
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, rec.Body.String())
		})
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t)
	issued := time.Now().Add(-2 * time.Hour)
	verifier.now = func() time.Time { return issued }
	token, err := verifier.Generate("clinician-7", time.Hour)
	require.NoError(t, err)
	verifier.now = time.Now

	rec, _ := serve(t, verifier, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"token expired"}`, rec.Body.String())
}

func TestExtractBearerToken(t *testing.T) {
	token, msg := extractBearerToken("Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", token)
	assert.Empty(t, msg)
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carpool/pkg/auth"
	"carpool/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueToken(t *testing.T, h *AuthHandler, body string) (*httptest.ResponseRecorder, TokenResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.GenerateTestToken(rec, req)

	var resp TokenResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	}
	return rec, resp
}

func TestGenerateTestToken_ExpiryMatchesConfiguredDuration(t *testing.T) {
	duration := 30 * time.Minute
	jwtManager := auth.NewJWTManager("test-secret", duration)
	h := NewAuthHandler(jwtManager, logger.NewLogger("auth-test"))

	rec, resp := issueToken(t, h, `{"user_id":"user-1","name":"Aigerim","role":"DRIVER"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(duration), expiresAt, 5*time.Second,
		"the reported expiry must track the configured token lifetime")

	// and it must agree with the claim baked into the token itself
	claims, err := jwtManager.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.WithinDuration(t, claims.ExpiresAt.Time, expiresAt, 5*time.Second)
	assert.Equal(t, auth.RoleDriver, claims.Role)
}

func TestGenerateTestToken_Validation(t *testing.T) {
	h := NewAuthHandler(auth.NewJWTManager("test-secret", time.Hour), logger.NewLogger("auth-test"))

	tests := []struct {
		name string
		body string
	}{
		{"missing user id", `{"role":"PASSENGER"}`},
		{"unknown role", `{"user_id":"user-1","role":"ADMIN"}`},
		{"malformed body", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := issueToken(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

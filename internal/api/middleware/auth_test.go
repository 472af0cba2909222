package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func signClaims(t *testing.T, claims Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func adminClaims(role, appRole string, expiresIn time.Duration) Claims {
	return Claims{
		Role:        role,
		AppMetadata: AppMetadata{Role: appRole},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
}

func TestAdminAuth(t *testing.T) {
	serviceToken, err := IssueServiceToken(testSecret, "karasuctl", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"service role", "Bearer " + serviceToken, http.StatusOK},
		{"admin user", "Bearer " + signClaims(t, adminClaims("authenticated", "admin", time.Hour), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusOK},
		{"plain user", "Bearer " + signClaims(t, adminClaims("authenticated", "", time.Hour), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusForbidden},
		{"expired", "Bearer " + signClaims(t, adminClaims("service_role", "", -time.Minute), jwt.SigningMethodHS256, []byte(testSecret)), http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signClaims(t, adminClaims("service_role", "", time.Hour), jwt.SigningMethodHS256, []byte("other")), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + signClaims(t, adminClaims("service_role", "", time.Hour), jwt.SigningMethodHS512, []byte(testSecret)), http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"invalid format", serviceToken, http.StatusUnauthorized},
		{"garbage token", "Bearer invalid.token.here", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			handler := AdminAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = UserID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/admin/ai/jobs/job-1", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.NotEmpty(t, subject)
			}
		})
	}
}

func TestAdminAuth_EmptySecretRejectsEverything(t *testing.T) {
	reached := false
	handler := AdminAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	forged := signClaims(t, adminClaims("service_role", "", time.Hour), jwt.SigningMethodHS256, []byte(""))
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/content/listing/lst-1", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://admin.karasuemlak.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/ai/improve", nil)
	req.Header.Set("Origin", "https://admin.karasuemlak.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.karasuemlak.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingMiddleware_KeepsFlusherAndRequestID(t *testing.T) {
	var flushed bool
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok)
		w.WriteHeader(http.StatusAccepted)
		f.Flush()
		flushed = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

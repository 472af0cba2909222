package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	roleServiceRole = "service_role"
	roleAdmin       = "admin"
)

// AppMetadata is the Supabase app_metadata claim
type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// Claims are the Supabase access token claims the API relies on
type Claims struct {
	Role        string      `json:"role,omitempty"`
	Email       string      `json:"email,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token may use the admin API
func (c *Claims) IsAdmin() bool {
	return c.Role == roleServiceRole || c.AppMetadata.Role == roleAdmin
}

type claimsKey struct{}

// ClaimsFromContext returns the verified claims of the request, if any
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// UserID returns the subject of the verified token or an empty string
func UserID(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}

// IssueServiceToken signs a service_role token for scripts and operators
func IssueServiceToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: roleServiceRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AdminAuth validates a Supabase-issued HS256 bearer token and only lets
// admins and the service role through. An empty secret rejects every token.
func AdminAuth(secret string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeAuthError(w, http.StatusUnauthorized, "Yetkilendirme yapılandırılmamış")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "Yetkilendirme başlığı gerekli")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeAuthError(w, http.StatusUnauthorized, "Geçersiz yetkilendirme başlığı")
				return
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				writeAuthError(w, http.StatusUnauthorized, "Geçersiz veya süresi dolmuş oturum")
				return
			}

			if !claims.IsAdmin() {
				writeAuthError(w, http.StatusForbidden, "Bu işlem için yönetici yetkisi gerekli")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": "UNAUTHORIZED"})
}

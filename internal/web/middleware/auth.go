package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// Claims are the bearer token claims issued by the auth server. The
// subject is the numeric user id.
type Claims struct {
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified"`
	Admin             bool   `json:"admin"`
	License           string `json:"license,omitempty"`
	SendNotifications bool   `json:"send_notifications"`
	jwt.RegisteredClaims
}

// User converts the claims into the authenticated user.
func (c *Claims) User() (core.User, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return core.User{}, errors.New("invalid user id in token")
	}
	return core.User{
		ID:                id,
		Name:              c.Name,
		Email:             c.Email,
		EmailVerified:     c.EmailVerified,
		Admin:             c.Admin,
		License:           c.License,
		SendNotifications: c.SendNotifications,
	}, nil
}

type userKey struct{}

// ContextWithUser stores the authenticated user in ctx.
func ContextWithUser(ctx context.Context, user core.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user stored by JWTAuth.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userKey{}).(core.User)
	return u, ok
}

// JWTAuth returns middleware that validates the HS256 bearer token and puts
// the user into the request context. Without a configured secret every
// request is rejected.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				slog.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w, `{"error":"missing bearer token","code":"AUTH_MISSING_TOKEN"}`)
				return
			}

			user, err := parseToken(raw, key)
			if err != nil {
				slog.Warn("auth: invalid bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				unauthorized(w, `{"error":"invalid bearer token","code":"AUTH_INVALID_TOKEN"}`)
				return
			}

			reportUser(r.Context(), user.Name)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects authenticated users without the admin flag. It must
// run after JWTAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.Admin {
			slog.Warn("auth: admin role required",
				"path", r.URL.Path,
				"user", user.Name,
			)
			writeAuthError(w, http.StatusForbidden, `{"error":"admin role required","code":"AUTH_FORBIDDEN"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewToken signs a token for user that expires after ttl.
func NewToken(secret string, user core.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:              user.Name,
		Email:             user.Email,
		EmailVerified:     user.EmailVerified,
		Admin:             user.Admin,
		License:           user.License,
		SendNotifications: user.SendNotifications,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(raw string, key []byte) (core.User, error) {
	if len(key) == 0 {
		return core.User{}, errors.New("no token secret configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return core.User{}, err
	}
	if !token.Valid {
		return core.User{}, errors.New("invalid token")
	}
	return claims.User()
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, body string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="rsapi"`)
	writeAuthError(w, http.StatusUnauthorized, body)
}

func writeAuthError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body+"\n")
}

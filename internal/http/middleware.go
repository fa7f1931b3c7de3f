package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

const (
	DeviceIDHeader  = "X-Device-ID"
	RequestIDHeader = "X-Request-ID"

	maxDeviceIDLength = 128
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionKey
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = "req-" + uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MaxBodySize limits request bodies to n bytes.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionMiddleware attaches the device session to the request. A device
// without an id gets a new one, returned in the X-Device-ID header. A bearer
// token is applied to the session before the handler runs; an authenticated
// session only serves requests that carry its token.
func SessionMiddleware(sessions *session.Manager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := strings.TrimSpace(r.Header.Get(DeviceIDHeader))
			if deviceID == "" {
				deviceID = uuid.NewString()
			}
			if len(deviceID) > maxDeviceIDLength {
				respondError(w, http.StatusBadRequest, "invalid_device_id", "device id too long")
				return
			}
			w.Header().Set(DeviceIDHeader, deviceID)

			s := sessions.Get(r.Context(), deviceID)

			if token := bearerToken(r); token != "" {
				if err := s.Restore(r.Context(), token); err != nil {
					if auth.IsAuthFailure(err) {
						respondError(w, http.StatusUnauthorized, "invalid_token", "session token is invalid or expired")
						return
					}
					respondInternal(w, r, log, err)
					return
				}
			} else if !s.Identity().IsGuest() {
				respondError(w, http.StatusUnauthorized, "unauthorized", "session token required")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func getSession(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// requireUser writes 401 and returns false for guests.
func requireUser(w http.ResponseWriter, s *session.Session) (domain.Identity, bool) {
	ident := s.Identity()
	if ident.IsGuest() {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return ident, false
	}
	return ident, true
}

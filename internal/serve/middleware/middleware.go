// Package middleware carries the cross-cutting HTTP concerns: panic
// recovery, request metrics, JWT authentication, role gating, rate limiting,
// and CORS.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/internal/crashtracker"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/monitor"
	"github.com/sabimarket/sabimarket-backend/internal/serve/auth"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httperror"
)

type ContextKey string

const (
	UserIDContextKey ContextKey = "user_id"
	RoleContextKey   ContextKey = "user_role"
)

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	return userID, ok
}

// RoleFromContext returns the authenticated user's role, if any.
func RoleFromContext(ctx context.Context) (data.UserRole, bool) {
	role, ok := ctx.Value(RoleContextKey).(data.UserRole)
	return role, ok
}

// RecoverHandler recovers from panics, reports them, and renders a 500.
func RecoverHandler(crashTrackerClient crashtracker.CrashTrackerClient) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", r)
				}
				// The client disconnecting is not our panic to handle.
				if errors.Is(err, http.ErrAbortHandler) {
					panic(err)
				}

				ctx := req.Context()
				if crashTrackerClient != nil {
					crashTrackerClient.LogAndReportErrors(ctx, err, "panic handling request")
				}
				httperror.InternalError(ctx, "", err).Render(rw)
			}()

			next.ServeHTTP(rw, req)
		})
	}
}

// MetricsRequestHandler records per-route request durations.
func MetricsRequestHandler(monitorService monitor.MonitorServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			mw := chimiddleware.NewWrapResponseWriter(rw, req.ProtoMajor)
			then := time.Now()
			next.ServeHTTP(mw, req)

			monitorService.MonitorHttpRequestDuration(time.Since(then), monitor.HttpRequestLabels{
				Status: fmt.Sprintf("%d", mw.Status()),
				Route:  routePattern(req),
				Method: req.Method,
			})
		})
	}
}

// AuthenticateMiddleware validates the bearer token and stores the user's
// identity in the request context.
func AuthenticateMiddleware(authenticator *auth.TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			authHeader := req.Header.Get("Authorization")
			if authHeader == "" {
				httperror.Unauthorized("", nil).Render(rw)
				return
			}
			authHeaderParts := strings.SplitN(authHeader, " ", 2)
			if len(authHeaderParts) != 2 || !strings.EqualFold(authHeaderParts[0], "Bearer") {
				httperror.Unauthorized("", nil).Render(rw)
				return
			}

			ctx := req.Context()
			claims, err := authenticator.Decode(authHeaderParts[1])
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrExpiredToken) {
					log.WithContext(ctx).Errorf("validating auth token: %v", err)
				}
				httperror.Unauthorized("", err).Render(rw)
				return
			}

			ctx = context.WithValue(ctx, UserIDContextKey, claims.UserID)
			ctx = context.WithValue(ctx, RoleContextKey, claims.Role)
			next.ServeHTTP(rw, req.WithContext(ctx))
		})
	}
}

// AnyRoleMiddleware lets the request through only when the authenticated role
// is one of the required ones. Admins always pass.
func AnyRoleMiddleware(requiredRoles ...data.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			role, ok := RoleFromContext(req.Context())
			if !ok {
				httperror.Unauthorized("", nil).Render(rw)
				return
			}
			if role == data.AdminUserRole {
				next.ServeHTTP(rw, req)
				return
			}
			for _, required := range requiredRoles {
				if role == required {
					next.ServeHTTP(rw, req)
					return
				}
			}
			httperror.Forbidden("", nil).Render(rw)
		})
	}
}

// RateLimitMiddleware throttles by client IP.
func RateLimitMiddleware(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requestLimit, windowLength,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(rw http.ResponseWriter, req *http.Request) {
			httperror.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Slow down.", nil).Render(rw)
		}),
	)
}

// CorsMiddleware restricts cross-origin calls to the configured origins.
func CorsMiddleware(corsAllowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "HEAD", "OPTIONS", "DELETE"},
	}).Handler
}

func routePattern(req *http.Request) string {
	routeCtx := chi.RouteContext(req.Context())
	if routeCtx == nil || routeCtx.RoutePattern() == "" {
		return "undefined"
	}
	return routeCtx.RoutePattern()
}

package router

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/project"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/pkg/utilities"
)

// Config carries the routing decisions taken at deploy time.
type Config struct {
	// ProtectProjectRoutes gates project/task/board routes behind token
	// authentication. Auth routes are always public.
	ProtectProjectRoutes bool
	// AllowedOrigin is handed to the CORS middleware.
	AllowedOrigin string
}

type requestIDKey struct{}

// RequestID returns the id assigned to this request, or the empty string.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware assigns every request a snowflake id, exposed via
// the X-Request-Id header and the request context.
func RequestIDMiddleware(gen *utilities.RequestIDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := gen.Next()
			w.Header().Set("X-Request-Id", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
				"request_id", RequestID(r.Context()),
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			// HSTS only makes sense over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts HTTP handlers on the standard library's
// http.ServeMux and wraps them with the middleware chain.
func RegisterRoutes(logger *zap.SugaredLogger, db *sqlx.DB, authSvc *auth.Service, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// auth routes, public except logout
	authHandler := auth.NewHandler(authSvc, logger)
	mux.HandleFunc("POST /signup", authHandler.Signup)
	mux.HandleFunc("POST /login", authHandler.Login)
	mux.Handle("POST /logout", authSvc.RequireAuth(http.HandlerFunc(authHandler.Logout)))

	// project / task board routes; authentication is a deploy-time choice
	projectSvc := project.NewService(db, nil)
	projectHandler := project.NewHandler(projectSvc, logger)

	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.ProtectProjectRoutes {
			return authSvc.RequireAuth(h)
		}
		return h
	}

	mux.Handle("GET /projects", protect(projectHandler.List))
	mux.Handle("POST /project", protect(projectHandler.Create))
	mux.Handle("GET /project/{id}", protect(projectHandler.Get))
	mux.Handle("PUT /project/{id}", protect(projectHandler.Update))
	mux.Handle("DELETE /project/{id}", protect(projectHandler.Delete))
	mux.Handle("POST /project/{id}/task", protect(projectHandler.AddTask))
	mux.Handle("GET /project/{id}/task/{taskId}", protect(projectHandler.GetTask))
	mux.Handle("PUT /project/{id}/task/{taskId}", protect(projectHandler.UpdateTask))
	mux.Handle("DELETE /project/{id}/task/{taskId}", protect(projectHandler.DeleteTask))
	mux.Handle("PUT /project/{id}/todo", protect(projectHandler.Reorder))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// request id -> logging -> cors -> security headers -> mux
	handler := c.Handler(SecurityHeadersMiddleware()(mux))
	handler = LoggingMiddleware(logger)(handler)
	handler = RequestIDMiddleware(utilities.NewRequestIDGenerator())(handler)
	return handler
}

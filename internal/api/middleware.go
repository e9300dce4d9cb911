package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"betlive/internal/auth"
	"betlive/internal/metrics"
)

func (s *Server) requestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK // hijacked WebSocket upgrades never write a status
				}
				dur := time.Since(start)
				metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Inc()
				metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Observe(dur.Seconds())
				s.Log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"duration_ms", dur.Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// requireService gates the ingest API behind a service or admin credential.
func (s *Server) requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pr, err := s.principal(r)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
			return
		}
		if !pr.IsService() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "service credential required", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) principal(r *http.Request) (auth.Principal, error) {
	return s.Auth.Verify(bearerToken(r))
}

// bearerToken extracts the credential from the Authorization header or the
// token query parameter (the WebSocket clients use the latter).
func bearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("Bearer "):])
	}
	return r.URL.Query().Get("token")
}

package middleware

import (
	"net/http"

	"todo-backend/application/ports"
	"todo-backend/pkg/auth"
	"todo-backend/pkg/observability"
)

// Trail counts the request as a web hit and records it in the caller's
// audit trail. It must run after Authenticate.
func Trail(recorder ports.TraceRecorder, metrics *observability.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordWebHit(r.URL.Path)
			recorder.Record(r.Context(), r.URL.Path, auth.UsernameFromContext(r.Context()))
			next.ServeHTTP(w, r)
		})
	}
}

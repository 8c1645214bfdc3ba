package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger logs one line per request with the caller when known.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		user := "-"
		r = r.WithContext(context.WithValue(r.Context(), userReportKey, &user))

		defer func() {
			log.Printf(
				"%s %s %d %s %s user=%s",
				r.Method,
				r.URL.Path,
				ww.Status(),
				time.Since(start),
				r.RemoteAddr,
				user,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

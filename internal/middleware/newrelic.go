package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicMiddleware creates a middleware that instruments requests with New Relic
func NewRelicMiddleware(app *newrelic.Application) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Chat sockets live for the whole ride; a transaction per
			// connection would only skew response times.
			if app == nil || websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}

			// Get the route pattern for better transaction naming
			routePattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					routePattern = pattern
				}
			}

			txnName := r.Method + " " + routePattern
			txn := app.StartTransaction(txnName)
			defer txn.End()

			txn.SetWebRequestHTTP(r)
			w = txn.SetWebResponse(w)

			r = newrelic.RequestWithTransactionContext(r, txn)
			if id, ok := UserIDFromContext(r.Context()); ok {
				txn.AddAttribute("user_id", id)
			}

			next.ServeHTTP(w, r)
		})
	}
}

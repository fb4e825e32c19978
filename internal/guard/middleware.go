package guard

import (
	"encoding/json"
	"net/http"
)

// AuthFunc resolves the auth state of a request.
type AuthFunc func(r *http.Request) AuthState

// DenyFunc observes a denied request.
type DenyFunc func(r *http.Request, d Decision)

// Middleware gates next behind p. Unauthenticated requests get 401 and
// unauthorized ones 403, both with the redirect target in the body.
func Middleware(p Policy, auth AuthFunc, onDeny DenyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Evaluate(auth(r), p)
			if d.State == Authorized {
				next.ServeHTTP(w, r)
				return
			}
			if onDeny != nil {
				onDeny(r, d)
			}

			status := http.StatusForbidden
			msg := "forbidden"
			switch d.State {
			case Unauthenticated:
				status, msg = http.StatusUnauthorized, "authentication required"
			case Loading:
				status, msg = http.StatusServiceUnavailable, "session loading"
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{
				"error":    msg,
				"state":    string(d.State),
				"redirect": d.Redirect,
			})
		})
	}
}

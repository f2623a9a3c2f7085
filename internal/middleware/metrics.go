package middleware

import (
	"crypto/subtle"
	"net/http"
)

// BasicAuthMiddleware guards an operator endpoint such as /metrics.
type BasicAuthMiddleware struct {
	realm    string
	username string
	password string
}

// NewMetricsAuthMiddleware protects the metrics endpoint.
// If both username and password are empty, authentication is disabled.
func NewMetricsAuthMiddleware(username, password string) *BasicAuthMiddleware {
	return &BasicAuthMiddleware{realm: "metrics", username: username, password: password}
}

func (m *BasicAuthMiddleware) enabled() bool {
	return m.username != "" || m.password != ""
}

// Handler returns middleware that requires basic authentication.
func (m *BasicAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled() {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		// Both comparisons always run so timing does not reveal which one failed.
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.username))
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(m.password))
		if !ok || userMatch&passMatch != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+m.realm+`"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

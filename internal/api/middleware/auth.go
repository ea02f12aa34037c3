package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminAuth guards routes with HTTP basic auth. Any user name is accepted.
// An empty password disables the check (single-user localhost setup).
func AdminAuth(password string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, pass, ok := r.BasicAuth()
			if ok && subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="Photo Slideshow"`)
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}

package middleware

import (
	"net/http"
)

// RequirePurpose allows only tokens issued for one of the given purposes
// (e.g. jwtinfra.PurposeEmailVerification). It must run after Auth.
func RequirePurpose(purposes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, p := range purposes {
				if claims.Purpose == p {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}

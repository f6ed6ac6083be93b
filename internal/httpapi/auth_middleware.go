package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireStaff gates the /v1 surface behind the shared staff API key. An
// unconfigured key fails closed.
func (a *api) requireStaff(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.staffKey == "" {
			a.logger.Error("staff api key not configured")
			WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		token := bearerToken(r)
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.staffKey)) != 1 {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next(w, r)
	}
}

// requireCronSecret gates the scheduler endpoints. The secret travels in the
// X-Cron-Secret header, or in the secret query parameter for schedulers that
// can only hit plain URLs.
func (a *api) requireCronSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.cronSecret == "" {
			a.logger.Error("cron secret not configured")
			WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		secret := r.Header.Get("X-Cron-Secret")
		if secret == "" {
			secret = r.URL.Query().Get("secret")
		}
		if subtle.ConstantTimeCompare([]byte(secret), []byte(a.cronSecret)) != 1 {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

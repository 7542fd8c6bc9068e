package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

type failure struct {
	Auth    *bool  `json:"auth,omitempty"`
	Message string `json:"message"`
}

// Middleware rejects requests whose Authorization header does not validate.
// Missing and malformed headers get 401; a token that fails verification
// gets 500 with auth=false, which existing clients depend on.
func Middleware(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := v.Validate(r.Header.Get("Authorization"))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			log := hlog.FromRequest(r)
			authFalse := false

			switch {
			case errors.Is(err, ErrMissingAuth):
				log.Warn().Msg("Request without authorization header")
				writeFailure(w, http.StatusUnauthorized, failure{Message: "No authorization headers."})
			case errors.Is(err, ErrMalformedToken):
				log.Warn().Msg("Malformed authorization header")
				writeFailure(w, http.StatusUnauthorized, failure{Message: "Malformed token."})
			default:
				log.Warn().Err(err).Msg("Token verification failed")
				writeFailure(w, http.StatusInternalServerError, failure{Auth: &authFalse, Message: "Failed to authenticate."})
			}
		})
	}
}

func writeFailure(w http.ResponseWriter, status int, body failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/estilobot/backend/pkg/utils"
)

// maxAdminBody bounds the buffered admin request body.
const maxAdminBody = 1 << 20

// RequireAdminPassword rejects requests whose JSON body does not carry
// the configured admin password. The body is buffered and restored so
// downstream handlers can decode it again.
func RequireAdminPassword(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
			if err != nil {
				utils.RespondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var payload struct {
				Password string `json:"password"`
			}
			if err := json.Unmarshal(body, &payload); err != nil || payload.Password != password {
				utils.RespondError(w, http.StatusForbidden, "access denied: incorrect admin password")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

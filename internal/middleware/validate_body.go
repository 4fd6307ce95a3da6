package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps request bodies read by ValidateBody.
const MaxBodyBytes = 64 << 10

// ValidateBody reads the request body, runs validate on it and rejects the
// request with 400 when it fails. The body is restored so the handler can
// decode it again.
func ValidateBody(validate func([]byte) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			if len(bodyBytes) > MaxBodyBytes {
				http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			if err := validate(bodyBytes); err != nil {
				http.Error(w, fmt.Sprintf(`{"error":%q,"kind":"validation"}`, err.Error()), http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxPeekBytes bounds how much of a credit request body is buffered.
const maxPeekBytes = 1 << 20

// CreditLimit caps the amount a single coin credit request may add. It reads
// the body to peek at "amount", then restores r.Body for the handler.
// Non-numeric or missing amounts pass through for the handler to reject.
func CreditLimit(maxCredit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPeekBytes))
			r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeError(w, http.StatusBadRequest, "request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, "failed to read body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek struct {
				Amount json.Number `json:"amount"`
			}
			if json.Unmarshal(bodyBytes, &peek) == nil {
				if n, err := peek.Amount.Int64(); err == nil && n > maxCredit {
					writeError(w, http.StatusBadRequest, fmt.Sprintf("amount %d exceeds per-request limit %d", n, maxCredit))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

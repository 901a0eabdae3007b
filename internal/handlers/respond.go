package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/inaiurai/whitelist/internal/errs"
	"github.com/inaiurai/whitelist/internal/grant"
	"github.com/inaiurai/whitelist/internal/ledger"
	"github.com/inaiurai/whitelist/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type insufficientFundsResponse struct {
	Error    string `json:"error"`
	Balance  int64  `json:"balance"`
	Required int64  `json:"required"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps domain errors onto status codes. Unclassified errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	var funds *ledger.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		writeJSON(w, http.StatusPaymentRequired, insufficientFundsResponse{
			Error:    "insufficient coins",
			Balance:  funds.Balance,
			Required: funds.Required,
		})
	case errors.Is(err, errs.ErrInsufficientFunds):
		writeMessage(w, http.StatusPaymentRequired, "insufficient coins")
	case errors.Is(err, errs.ErrInvalidArgument):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, grant.ErrGrantIncomplete):
		logger(log).Error("grant incomplete", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "coins were debited but the whitelist entry could not be saved; the incident has been recorded")
	default:
		logger(log).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads the body, checks it against the named schema and fills dst.
func decode(w http.ResponseWriter, r *http.Request, v *validation.Validator, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.Invalid("body", "exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("read body: %w", err)
	}
	return v.Decode(schema, body, dst)
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/inaiurai/whitelist/internal/errs"
	"github.com/inaiurai/whitelist/internal/grant"
	"github.com/inaiurai/whitelist/internal/middleware"
	"github.com/inaiurai/whitelist/internal/registry"
	"github.com/inaiurai/whitelist/internal/validation"
)

// maxHours is the largest hours value whose time.Duration does not overflow.
const maxHours = math.MaxInt64 / int64(time.Hour)

// IdempotencyKeyHeader lets a client retry an add without paying twice.
const IdempotencyKeyHeader = "Idempotency-Key"

// Granter performs the paid whitelist write.
type Granter interface {
	GrantWhitelist(ctx context.Context, req grant.Request) (*grant.Result, error)
}

// WhitelistHandler serves /api/whitelist endpoints.
type WhitelistHandler struct {
	Grants    Granter
	Registry  registry.Service
	Validator *validation.Validator
	Logger    *slog.Logger
}

// --- POST /api/whitelist/add ---

type addRequest struct {
	UID    string `json:"uid"`
	Region string `json:"region"`
	Hours  int64  `json:"hours"`
}

type addResponse struct {
	registry.Entry
	Coins    int64 `json:"coins"`
	Replayed bool  `json:"replayed,omitempty"`
}

// Add handles POST /api/whitelist/add.
// Auth -> Validate -> Debit -> Upsert -> 200.
func (h *WhitelistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decode(w, r, h.Validator, validation.WhitelistAdd, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	if req.Hours > maxHours {
		writeError(w, h.Logger, r, errs.Invalid("hours", "must be at most %d", maxHours))
		return
	}

	res, err := h.Grants.GrantWhitelist(r.Context(), grant.Request{
		Account:        middleware.AccountIDFromCtx(r.Context()),
		UID:            req.UID,
		Region:         req.Region,
		Duration:       time.Duration(req.Hours) * time.Hour,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addResponse{Entry: res.Entry, Coins: res.Balance, Replayed: res.Replayed})
}

// --- POST /api/whitelist/remove ---

type removeRequest struct {
	UID    string `json:"uid"`
	Region string `json:"region"`
}

// Remove handles POST /api/whitelist/remove. Removing a missing entry is not an error.
func (h *WhitelistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := decode(w, r, h.Validator, validation.WhitelistRemove, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	removed, err := h.Registry.Remove(r.Context(), req.UID, req.Region)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// --- GET /api/whitelist/list[/{region}] ---

type listResponse struct {
	Entries []registry.Entry `json:"entries"`
}

// List handles GET /api/whitelist/list.
func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Registry.ListAll(r.Context())
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Entries: entries})
}

// ListByRegion handles GET /api/whitelist/list/{region}.
func (h *WhitelistHandler) ListByRegion(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Registry.ListByRegion(r.Context(), r.PathValue("region"))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Entries: entries})
}

// --- POST /api/whitelist/check ---

type checkRequest struct {
	UID    string `json:"uid"`
	Region string `json:"region"`
}

type checkResponse struct {
	Whitelisted bool           `json:"whitelisted"`
	Entry       registry.Entry `json:"entry"`
}

type checkAllResponse struct {
	Whitelisted bool             `json:"whitelisted"`
	Entries     []registry.Entry `json:"entries"`
}

// Check handles POST /api/whitelist/check. With a region it reports that one
// entry (404 when absent); without one it reports every region the uid holds.
func (h *WhitelistHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decode(w, r, h.Validator, validation.WhitelistCheck, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}

	if strings.TrimSpace(req.Region) == "" {
		entries, err := h.Registry.FindByUID(r.Context(), req.UID)
		if err != nil {
			writeError(w, h.Logger, r, err)
			return
		}
		resp := checkAllResponse{Entries: entries}
		for _, e := range entries {
			if e.Active() {
				resp.Whitelisted = true
				break
			}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	entry, err := h.Registry.Get(r.Context(), req.UID, req.Region)
	if errors.Is(err, errs.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not whitelisted", "whitelisted": false})
		return
	}
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Whitelisted: entry.Active(), Entry: entry})
}

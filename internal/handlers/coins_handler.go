package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/inaiurai/whitelist/internal/errs"
	"github.com/inaiurai/whitelist/internal/ledger"
	"github.com/inaiurai/whitelist/internal/middleware"
	"github.com/inaiurai/whitelist/internal/registry"
	"github.com/inaiurai/whitelist/internal/validation"
)

// CoinsHandler serves /api/coins endpoints and the per-account stats view.
type CoinsHandler struct {
	Ledger    ledger.Service
	Registry  registry.Service
	Validator *validation.Validator
	// HistoryLimit applies when the request has no ?limit. Zero means full history.
	HistoryLimit int
	Logger       *slog.Logger
}

// --- GET /api/coins/balance ---

// Balance handles GET /api/coins/balance.
func (h *CoinsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	coins, err := h.Ledger.GetBalance(r.Context(), middleware.AccountIDFromCtx(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"coins": coins})
}

// --- POST /api/coins/add ---

type creditRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type creditResponse struct {
	Coins int64 `json:"coins"`
	Added int64 `json:"added"`
}

// Add handles POST /api/coins/add. The per-request cap is enforced by
// middleware.CreditLimit before this runs.
func (h *CoinsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := decode(w, r, h.Validator, validation.CoinsAdd, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	coins, _, err := h.Ledger.Credit(r.Context(), middleware.AccountIDFromCtx(r.Context()), req.Amount, req.Reason)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creditResponse{Coins: coins, Added: req.Amount})
}

// --- GET /api/coins/history ---

type historyItem struct {
	ID           uuid.UUID `json:"id"`
	Kind         string    `json:"kind"`
	Action       string    `json:"action"`
	Reason       string    `json:"reason"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Timestamp    int64     `json:"timestamp"`
}

// History handles GET /api/coins/history?limit=N, newest first.
func (h *CoinsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := h.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.Logger, r, errs.Invalid("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}

	txs, err := h.Ledger.GetHistory(r.Context(), middleware.AccountIDFromCtx(r.Context()), limit)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	items := make([]historyItem, 0, len(txs))
	for _, tx := range txs {
		items = append(items, historyItem{
			ID:           tx.ID,
			Kind:         tx.Kind,
			Action:       tx.Action,
			Reason:       tx.Reason,
			Amount:       tx.Signed(),
			BalanceAfter: tx.BalanceAfter,
			Timestamp:    tx.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string][]historyItem{"history": items})
}

// --- GET /api/stats ---

type statsResponse struct {
	Coins int64 `json:"coins"`
	registry.Stats
}

// Stats handles GET /api/stats: the caller's balance plus registry counts.
func (h *CoinsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	coins, err := h.Ledger.GetBalance(r.Context(), middleware.AccountIDFromCtx(r.Context()))
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	st, err := h.Registry.Stats(r.Context())
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]statsResponse{"stats": {Coins: coins, Stats: st}})
}

package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds.
const (
	KindCredit = "credit"
	KindDebit  = "debit"
)

// Transaction actions.
const (
	ActionCoinsAdd       = "coins_add"
	ActionWhitelistDebit = "whitelist_debit"
)

// Reward reasons the client sends with credits. Other non-empty reasons are accepted.
const (
	ReasonVideoAd  = "video_ad"
	ReasonBannerAd = "banner_ad"
	ReasonSurvey   = "survey"
	ReasonOffer    = "offer"
	ReasonAdView   = "ad_view"
)

// Transaction is one append-only ledger row. Amount is always positive; Kind gives the sign.
type Transaction struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Kind         string    `json:"kind"`
	Action       string    `json:"action"`
	Reason       string    `json:"reason"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"timestamp"`
}

// Signed returns the balance delta this transaction applied.
func (t *Transaction) Signed() int64 {
	if t.Kind == KindDebit {
		return -t.Amount
	}
	return t.Amount
}

package store

import "time"

// Intent kinds.
const (
	Investment = "investment"
	Redemption = "redemption"
)

// Intent lifecycle statuses. Transitions only move forward: pending to confirmed, or pending to failed. Confirmed
// and failed are terminal.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Intent contains the fields of a recorded request to change an investor's position in the fund. Amount is the
// requested value (usd for investments, shares for redemptions) and Settled its counterpart produced by the chain,
// which stays 0 until the intent is confirmed. TxHash is empty until the broadcast transaction is linked and never
// changes afterwards. Intents are never deleted, they form the audit trail.
type Intent struct {
	ID        string    `json:"id"`
	Investor  string    `json:"investor"`
	Kind      string    `json:"kind"`
	Amount    uint64    `json:"amount"`
	Settled   uint64    `json:"settled"`
	TxHash    string    `json:"txHash,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

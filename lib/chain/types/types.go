// Package types common chain gateway types.
package types

import (
	"errors"
)

// Transaction status constants reported by a receipt.
const (
	TrxFailed  uint8 = 0 // transaction was mined but reverted
	TrxSuccess uint8 = 1
)

// Receipt carries the subset of on-chain receipt data needed to reconcile an intent: how deep the transaction is
// buried, whether it executed successfully, and the settled amount decoded from the fund contract event. Settled is
// expressed in whole units and is 0 when the receipt carries no decodable fund event.
type Receipt struct {
	TxHash        string `json:"txHash"`
	Block         uint64 `json:"block"`
	Confirmations uint64 `json:"confirmations"`
	Status        uint8  `json:"status"`
	Settled       uint64 `json:"settled"`
}

// Error codes.
var (
	ErrNoReceipt  = errors.New("transaction not mined yet")
	ErrNoContract = errors.New("fund contract address is required")
	ErrNoKey      = errors.New("operator signing key is required")
	ErrBadFunc    = errors.New("function not exposed by the fund contract")
)

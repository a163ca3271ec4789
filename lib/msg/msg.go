// Package msg defines the interface for different message brokers.
//
package msg

import (
	"sync"
)

// IntentEvent defines the message the reconciler publishes when an intent reaches a terminal status. Fund services
// consume these events to notify their clients in real time.
type IntentEvent struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Investor string `json:"investor"`
	TxHash   string `json:"txHash"`
	Status   string `json:"status"`
	Settled  uint64 `json:"settled"`
	Block    uint64 `json:"block"` // chain head when the transition was applied
}

type MsgBroker interface {
	Setup() error
	Close() error

	// method for reconciler service
	SendIntents(events []IntentEvent) error

	// method for fund service
	GetIntents(mut *sync.Mutex) (<-chan IntentEvent, <-chan error, error)
}

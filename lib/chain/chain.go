// Package chain defines the interface required for connections to the ledger holding the fund contract.
package chain

import (
	"context"
	"math/big"

	"github.com/tarancss/fundadp/lib/chain/ethereum"
	"github.com/tarancss/fundadp/lib/chain/types"
	"github.com/tarancss/fundadp/lib/config"
)

// Chain is an interface that contains the required methods. It has been designed to be as much standard as possible,
// however, there may be specific blockchains or networks that would require different types or more methods.
type Chain interface {
	// member-type methods
	AvgBlock() int // average block mining rate in seconds
	// methods
	Close()
	// Submit broadcasts a fund contract call ("invest" or "redeem") and returns its transaction hash. It returns
	// once the transaction is accepted by the node, it does not wait for mining.
	Submit(ctx context.Context, function, investor string, amount uint64) (string, error)
	// Receipt returns the receipt of the given transaction or types.ErrNoReceipt while it is not mined.
	Receipt(ctx context.Context, txHash string) (*types.Receipt, error)
	// Balance returns the fund balance of the investor in 18-decimal wire units.
	Balance(ctx context.Context, investor string) (*big.Int, error)
	// FundMetrics returns the total invested and total shares of the fund in 18-decimal wire units.
	FundMetrics(ctx context.Context) (totalInvested, totalShares *big.Int, err error)
	// WatchHeads returns a channel yielding new block heights until ctx is cancelled. Delivery is at-least-once
	// per observed head; a consumer that misses a height gets a newer one on the next delivery.
	WatchHeads(ctx context.Context) (<-chan uint64, error)
}

// Init loads the client for the configured node and fund contract. The operator signing key is resolved by the caller
// (raw hex key or HD wallet derivation).
func Init(conf config.ServiceConfig, key string) (Chain, error) {
	return ethereum.Init(conf.Node, conf.Contract, key, conf.AvgBlock)
}

// End closes gracefully the blockchain client opened.
func End(c Chain) {
	if c != nil {
		c.Close()
	}
}

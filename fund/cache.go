package fund

import (
	"context"
	"sync"
	"time"

	"github.com/tarancss/fundadp/lib/util"
)

// metricsTTL matches the assumed block time: fund metrics only change when a block is mined, so reads within one
// block interval can share a value.
const metricsTTL = 10 * time.Second

// FundMetrics is the response of the fund-metrics endpoint. Amounts are decimal strings.
type FundMetrics struct {
	TotalInvested string `json:"totalInvested"`
	TotalShares   string `json:"totalShares"`
}

// metricsCache holds the last fund metrics read from the chain for a short TTL.
type metricsCache struct {
	mu  sync.Mutex
	at  time.Time
	ttl time.Duration
	val FundMetrics
}

// FundMetrics returns the fund totals read from the contract, served from the cache while it is fresh.
func (f *Fund) FundMetrics(ctx context.Context) (FundMetrics, error) {
	f.fm.mu.Lock()
	defer f.fm.mu.Unlock()

	if !f.fm.at.IsZero() && time.Since(f.fm.at) < f.fm.ttl {
		return f.fm.val, nil
	}

	invested, shares, err := f.bc.FundMetrics(ctx)
	if err != nil {
		return FundMetrics{}, err
	}

	f.fm.val = FundMetrics{TotalInvested: util.FormatWei(invested), TotalShares: util.FormatWei(shares)}
	f.fm.at = time.Now()

	return f.fm.val, nil
}

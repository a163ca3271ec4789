// Package reconciler implements the transaction-confirmation reconciliation service. On every new block observed on
// the chain it sweeps the pending intents recorded by the fund service, fetches their transaction receipts and
// promotes to a terminal status those whose confirmation depth meets the threshold, publishing a settlement event for
// each transition.
package reconciler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/tarancss/fundadp/lib/chain"
	ctypes "github.com/tarancss/fundadp/lib/chain/types"
	"github.com/tarancss/fundadp/lib/msg"
	"github.com/tarancss/fundadp/lib/store"
)

// ConfirmationThreshold is the confirmation depth at which an intent is considered final. Six blocks tolerate
// shallow chain reorganisations.
const ConfirmationThreshold uint64 = 6

// pendingWarnAge is how old a pending intent may grow without a receipt before the sweep warns about it.
const pendingWarnAge = time.Hour

// kinds swept on every trigger. The confirmation logic is identical for both, only the store update shape differs.
var kinds = []string{store.Investment, store.Redemption} //nolint:gochecknoglobals // fixed set

// Reconciler implements the reconciliation service.
type Reconciler struct {
	db       store.DB
	bc       chain.Chain
	mb       msg.MsgBroker
	sweeping int32 // serializes sweeps, see Run
	cancel   context.CancelFunc
}

// New instantiates a new reconciler service.
func New(db store.DB, bc chain.Chain, mb msg.MsgBroker) *Reconciler {
	return &Reconciler{
		db: db,
		bc: bc,
		mb: mb,
	}
}

// Run subscribes to new chain heads and triggers a sweep per observed block. Block triggers arriving while a sweep
// is still in flight are dropped: the next block re-scans everything, so a dropped trigger cannot leave an intent
// stuck. The returned channel yields a message when the service has fully stopped.
func (r *Reconciler) Run() (chan string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	heads, err := r.bc.WatchHeads(ctx)
	if err != nil {
		cancel()

		return nil, err
	}

	ret := make(chan string, 1)

	go func() {
		for h := range heads {
			if !atomic.CompareAndSwapInt32(&r.sweeping, 0, 1) {
				sweepsSkipped.Inc()
				log.Printf("Block %d trigger dropped, sweep already running", h)

				continue
			}

			go func(head uint64) {
				defer atomic.StoreInt32(&r.sweeping, 0)
				log.Printf("Sweeping pending intents at block %d...", head)
				r.Sweep(ctx, head)
			}(h)
		}
		ret <- "Done!"
	}()

	return ret, nil
}

// Stop will send a termination signal to the reconciler go routines. A sweep in flight stops between intents;
// partial sweeps are safe as the next trigger after restart re-scans every pending intent.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Sweep runs one full reconciliation pass over all pending intents of both kinds. It is safe to invoke concurrently
// with itself: every write it issues is a pure function of the observed chain state, never a relative increment, so
// overlapping sweeps converge to the same rows.
func (r *Reconciler) Sweep(ctx context.Context, head uint64) {
	sweepsRun.Inc()

	var events []msg.IntentEvent

	for _, kind := range kinds {
		its, err := r.db.ListPending(ctx, kind)
		if err != nil {
			log.Printf("[%s] Cannot load pending intents from DB, err:%e", kind, err)

			continue
		}

		for _, it := range its {
			if ctx.Err() != nil {
				return
			}

			eve, err := r.reconcile(ctx, it, head)
			if err != nil {
				// a single intent's failure must not abort the scan of the remaining ones
				log.Printf("[%s] Error reconciling intent %s tx:%s err:%e", kind, it.ID, it.TxHash, err)

				continue
			}

			if eve != nil {
				events = append(events, *eve)
			}
		}
	}

	// send events
	if len(events) > 0 && r.mb != nil {
		if err := r.mb.SendIntents(events); err != nil {
			log.Printf("Error sending %d intent events to message broker, err:%e", len(events), err)
		}
	}
}

// reconcile checks the chain state of a single pending intent and applies the eligible status transition, returning
// the settlement event when a terminal status was reached.
func (r *Reconciler) reconcile(ctx context.Context, it store.Intent, head uint64) (*msg.IntentEvent, error) {
	rcp, err := r.bc.Receipt(ctx, it.TxHash)
	if errors.Is(err, ctypes.ErrNoReceipt) {
		// not mined yet, leave pending and retry on the next trigger
		if age := time.Since(it.CreatedAt); age > pendingWarnAge {
			log.Printf("[%s] Intent %s still has no receipt after %s, tx:%s", it.Kind, it.ID,
				age.Round(time.Minute), it.TxHash)
		}

		return nil, nil
	}

	if err != nil {
		receiptErrors.Inc()

		return nil, err
	}

	switch {
	case rcp.Status == ctypes.TrxFailed:
		if err = r.db.SetStatus(ctx, it.Kind, it.ID, store.StatusFailed, 0); err != nil {
			return nil, err
		}

		intentsFailed.WithLabelValues(it.Kind).Inc()
		log.Printf("[%s] Intent %s failed, tx %s reverted on chain", it.Kind, it.ID, it.TxHash)

		return r.event(it, store.StatusFailed, 0, head), nil
	case rcp.Confirmations >= ConfirmationThreshold:
		// the settled amount comes from the fund contract event in the receipt, not from the request
		if err = r.db.SetStatus(ctx, it.Kind, it.ID, store.StatusConfirmed, rcp.Settled); err != nil {
			return nil, err
		}

		intentsConfirmed.WithLabelValues(it.Kind).Inc()
		log.Printf("[%s] Intent %s confirmed at depth %d, tx:%s settled:%d", it.Kind, it.ID,
			rcp.Confirmations, it.TxHash, rcp.Settled)

		return r.event(it, store.StatusConfirmed, rcp.Settled, head), nil
	}

	// mined but not deep enough yet
	return nil, nil
}

func (r *Reconciler) event(it store.Intent, status string, settled, head uint64) *msg.IntentEvent {
	return &msg.IntentEvent{
		Kind:     it.Kind,
		ID:       it.ID,
		Investor: it.Investor,
		TxHash:   it.TxHash,
		Status:   status,
		Settled:  settled,
		Block:    head,
	}
}

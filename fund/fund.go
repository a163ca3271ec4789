// package fund implements the fund adaptor microservice.
//
// This microservice implements a RESTful API for clients to submit investment and redemption requests against the
// on-chain fund contract and to query fund state. Submitted requests are recorded as pending intents and settled
// asynchronously by the reconciler service.
package fund

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/tarancss/fundadp/lib/chain"
	"github.com/tarancss/fundadp/lib/msg"
	"github.com/tarancss/fundadp/lib/store"
	"github.com/tarancss/fundadp/lib/store/db"
)

// Errors returned by the submission path.
var (
	ErrSubmit = errors.New("chain rejected the submission")
	ErrLink   = errors.New("could not link transaction hash to intent")
)

// Retry policy for linking the transaction hash after a successful broadcast. The transaction is already on the wire
// at that point, so the linkage is worth a few attempts before giving up.
const (
	linkRetries = 3
	linkBackoff = 500 * time.Millisecond
)

// Fund contains the data necessary to deliver the service
type Fund struct {
	dbtype string
	db     store.DB    // db connection
	bc     chain.Chain // blockchain client
	mb     msg.MsgBroker
	fm     metricsCache  // short-lived fund metrics cache
	s      *http.Server  // http server
	ss     *http.Server  // https server
	sc     chan struct{} // http server channel used for graceful shutdowns
}

// New returns a pointer to a new Fund service
func New(dbtype string, dbConn store.DB, mb msg.MsgBroker, bc chain.Chain) *Fund {
	return &Fund{
		dbtype: dbtype,
		db:     dbConn,
		mb:     mb,
		bc:     bc,
		fm:     metricsCache{ttl: metricsTTL},
	}
}

// Stop shuts down the http servers implementing the RESTful API and closes gracefully the connections to message
// broker and database.
func (f *Fund) Stop() {
	var err error
	// shutdown http server
	if f.s != nil {
		if err = f.s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in http server shutdown:%e", err)
		}
	}
	if f.ss != nil {
		if err = f.ss.Shutdown(context.Background()); err != nil {
			log.Printf("Error in https server shutdown:%e", err)
		}
	}
	close(f.sc) // close server channels to indicate shutdowns have finished
	// close message broker
	if f.mb != nil {
		if err = f.mb.Close(); err != nil {
			log.Printf("Error closing message broker:%e", err)
		}
	}
	// close database
	if f.db != nil {
		err = db.Close(f.dbtype, f.db)
		log.Printf("Disconnecting %v database, err:%e\n", f.dbtype, err)
	}
}

// Submit records a pending intent and broadcasts the corresponding fund contract transaction, returning the intent
// id and the transaction hash. The intent row is inserted before the chain call so that a crash after broadcast but
// before persistence cannot lose the lookup key of an in-flight transaction; until the hash is linked by the third
// step the row is invisible to reconciliation sweeps. The operation is not idempotent: calling it twice submits two
// independent transactions and records two intents.
func (f *Fund) Submit(ctx context.Context, kind, investor string, amount uint64) (id, txHash string, err error) {
	id, err = f.db.InsertIntent(ctx, store.Intent{Investor: investor, Kind: kind, Amount: amount})
	if err != nil {
		return "", "", fmt.Errorf("could not record intent: %w", err)
	}

	function := "invest"
	if kind == store.Redemption {
		function = "redeem"
	}

	txHash, err = f.bc.Submit(ctx, function, investor, amount)
	if err != nil {
		// the row stays as an audit record with no transaction hash
		if errS := f.db.SetStatus(ctx, kind, id, store.StatusFailed, 0); errS != nil {
			log.Printf("[%s] Error marking intent %s failed:%e", kind, id, errS)
		}

		return id, "", fmt.Errorf("%w: %v", ErrSubmit, err)
	}

	// link the hash to the intent; the transaction is broadcast already, so retry before giving up
	for i := 0; i < linkRetries; i++ {
		if err = f.db.SetTxHash(ctx, kind, id, txHash); err == nil {
			break
		}

		time.Sleep(linkBackoff * time.Duration(i+1))
	}

	if err != nil {
		log.Printf("[%s] Could not link tx %s to intent %s, recover it manually! err:%e", kind, txHash, id, err)

		return id, txHash, fmt.Errorf("%w: %v", ErrLink, err)
	}

	return id, txHash, nil
}

// ManageEvents starts go routines to consume the message broker queue for intent settlement events sent by the
// reconciler service. Two channels are opened, one for events, and one for errors.
func (f *Fund) ManageEvents() error {
	var mut *sync.Mutex = new(sync.Mutex)
	mut.Lock()
	eveCh, errCh, err := f.mb.GetIntents(mut)
	if err != nil {
		return err
	}

	// launch event channel reader
	go func() {
		log.Printf("Start listening to intent event channel")
		for eve := range eveCh {
			log.Printf("Intent %s %s: tx %s settled %d at block %d", eve.ID, eve.Status, eve.TxHash,
				eve.Settled, eve.Block) // we just log it to console!! XXX
			mut.Unlock()
		}
		log.Printf("Stop listening to intent event channel")
	}()

	// launch error channel reader
	go func() {
		log.Printf("Start listening to err channel")
		for e := range errCh {
			log.Printf("Received error %+v", e)
		}
		log.Printf("Stop listening to err channel")
	}()
	return nil
}

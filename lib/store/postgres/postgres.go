// Package postgres implements the store interface for PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/tarancss/fundadp/lib/store"
)

// Postgres implements a connection to a PostgreSQL database.
type Postgres struct {
	db *sqlx.DB
}

// schema of the two intent tables. Each kind keeps its own table with its specific amount columns; the lifecycle
// columns are identical. Rows are only ever inserted and updated, never deleted.
const schema = `
CREATE TABLE IF NOT EXISTS investments (
	id varchar(36) PRIMARY KEY,
	investor varchar(42) NOT NULL,
	"usdAmount" bigint NOT NULL,
	"sharesIssued" bigint NOT NULL DEFAULT 0,
	"txHash" varchar(66),
	status varchar(20) NOT NULL DEFAULT 'pending',
	"createdAt" timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS redemptions (
	id varchar(36) PRIMARY KEY,
	investor varchar(42) NOT NULL,
	shares bigint NOT NULL,
	"usdAmount" bigint NOT NULL DEFAULT 0,
	"txHash" varchar(66),
	status varchar(20) NOT NULL DEFAULT 'pending',
	"createdAt" timestamptz NOT NULL DEFAULT now()
);`

// New returns a postgres client connection to the specified database in 'connection', creating the intent tables if
// they do not exist yet.
func New(connection string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("cannot create intent tables: %w", err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// intentRow maps a selected row of either intent table. The kind-specific amount columns are aliased so both tables
// scan into the same shape.
type intentRow struct {
	ID        string    `db:"id"`
	Investor  string    `db:"investor"`
	Amount    uint64    `db:"amount"`
	Settled   uint64    `db:"settled"`
	TxHash    string    `db:"txHash"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"createdAt"`
}

// cols resolves the table and the kind-specific amount columns for an intent kind.
func cols(kind string) (table, amountCol, settledCol string, err error) {
	switch kind {
	case store.Investment:
		return "investments", "usdAmount", "sharesIssued", nil
	case store.Redemption:
		return "redemptions", "shares", "usdAmount", nil
	}

	return "", "", "", store.ErrBadKind
}

// InsertIntent saves a new pending intent with no transaction hash and returns its id.
func (p *Postgres) InsertIntent(ctx context.Context, it store.Intent) (string, error) {
	table, amountCol, _, err := cols(it.Kind)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	q := fmt.Sprintf(`INSERT INTO %s (id, investor, "%s", status) VALUES ($1, $2, $3, $4)`, table, amountCol)
	if _, err = p.db.ExecContext(ctx, q, id, it.Investor, it.Amount, store.StatusPending); err != nil {
		return "", fmt.Errorf("could not insert intent in db: %w", err)
	}

	return id, nil
}

// SetTxHash links the broadcast transaction hash to the intent row. The guard on a null hash keeps a set hash
// immutable.
func (p *Postgres) SetTxHash(ctx context.Context, kind, id, txHash string) error {
	table, _, _, err := cols(kind)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`UPDATE %s SET "txHash" = $1 WHERE id = $2 AND "txHash" IS NULL`, table)

	res, err := p.db.ExecContext(ctx, q, txHash, id)
	if err != nil {
		return fmt.Errorf("could not link tx hash in db: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrIntentNotFound
	}

	return nil
}

// SetStatus moves a pending intent to a terminal status writing the settled amount in the same update. The guard on
// the pending status makes the write a no-op once the intent is terminal, so repeated or overlapping sweeps converge.
func (p *Postgres) SetStatus(ctx context.Context, kind, id, status string, settled uint64) error {
	table, _, settledCol, err := cols(kind)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`UPDATE %s SET status = $1, "%s" = $2 WHERE id = $3 AND status = $4`, table, settledCol)
	if _, err = p.db.ExecContext(ctx, q, status, settled, id, store.StatusPending); err != nil {
		return fmt.Errorf("could not update intent status in db: %w", err)
	}

	return nil
}

// ListPending returns the pending intents of the given kind that already have a transaction hash linked.
func (p *Postgres) ListPending(ctx context.Context, kind string) ([]store.Intent, error) {
	table, amountCol, settledCol, err := cols(kind)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT id, investor, "%s" AS amount, "%s" AS settled, "txHash", status, "createdAt"`+
		` FROM %s WHERE status = $1 AND "txHash" IS NOT NULL`, amountCol, settledCol, table)

	var rows []intentRow
	if err = p.db.SelectContext(ctx, &rows, q, store.StatusPending); err != nil {
		return nil, fmt.Errorf("could not list pending intents: %w", err)
	}

	its := make([]store.Intent, 0, len(rows))
	for _, r := range rows {
		its = append(its, store.Intent{
			ID:        r.ID,
			Investor:  r.Investor,
			Kind:      kind,
			Amount:    r.Amount,
			Settled:   r.Settled,
			TxHash:    r.TxHash,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		})
	}

	return its, nil
}

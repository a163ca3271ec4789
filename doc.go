// Package fundadp and its sub-packages implement the backend services to interact with an on-chain investment fund
// contract.
/*
fundadp provides you with two microservices:

1) a fund microservice (package fund) that implements a RESTful API for client requests such as submitting investment
 and redemption intents, checking an investor's fund balance and reading the fund totals.

2) a reconciler microservice (package reconciler) that settles the recorded intents: on every new block it checks the
 pending transactions on chain and promotes the intents whose confirmation depth reaches the threshold.

Architecture

The fund service records every client request as a pending intent in the database before broadcasting the matching
fund contract transaction, then links the transaction hash to the record. The reconciler service scans the shared
database for pending intents on every observed block, fetches their transaction receipts and moves them to a terminal
status (confirmed or failed) once the chain outcome is final enough, reading the settled amounts from the fund
contract events. When an intent settles, the reconciler sends an event to the message broker. Fund services can then
listen to the broker to notify their users about settlements in real-time. The message broker is implemented as a
product agnostic layer (package lib/msg) and is configured via a JSON config file at service startup.

Both fund and reconciler share their database. Its layered implementation (package lib/store) provides a database
product agnostic interface with PostgreSQL and MongoDB backends. Because status updates are pure functions of the
observed chain state, over-lapping reconciliation sweeps and service restarts converge without coordination.

A blockchain layer (package lib/chain) wraps the node connection: it packs and signs the fund contract calls, decodes
settlement events from transaction receipts and watches for new blocks. Both services connect to the node indicated in
the JSON config file provided at startup.

The microservices can also be monitored via a Prometheus API by setting the flag "-m" at startup.
*/
package fundadp

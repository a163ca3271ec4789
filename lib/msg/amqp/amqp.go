// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/streadway/amqp"

	"github.com/tarancss/fundadp/lib/msg"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (msg.MsgBroker, error) {
	r := Amqp{}
	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}
	r.ch = nil
	log.Printf("Connected to %s", uri)

	return &r, err
}

// Setup obtains an amqp channel and declares the message broker exchange:
//
// - ie ("intent events"): the reconciler service publishes intent settlement events to this exchange
func (r *Amqp) Setup() error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()
	// declare exchange
	return channel.ExchangeDeclare("ie", "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%e", err)
		}
		r.ch = nil
		log.Printf("amqp.Channel closed!")
	}
	return r.conn.Close()
}

// SendIntents publishes intent settlement events to the "ie" exchange
func (r *Amqp) SendIntents(events []msg.IntentEvent) (err error) {
	for _, e := range events {
		// marshal to JSON
		var jsonDoc []byte
		if jsonDoc, err = json.Marshal(e); err != nil {
			return
		}
		// obtain channel if not present
		if r.ch == nil {
			if r.ch, err = r.conn.Channel(); err != nil {
				return
			}
		}
		// build body
		m := amqp.Publishing{
			Headers:     amqp.Table{"x-intent-name": e.Kind + "." + e.TxHash},
			Body:        jsonDoc,
			ContentType: "application/json",
		}
		// publish
		if err = r.ch.Publish("ie", e.Kind+"."+e.Status+"."+e.TxHash, false, false, m); err != nil {
			log.Printf("[%s] Error sending intent event to message broker %e", e.Kind, err)
		}
	}
	return
}

// GetIntents consumes intent settlement events from the "ie" exchange pushing them to the returned channel. The Mutex
// pointer is provided to ensure the consumed message has been fully dealt with by the management function, so the
// message consumed is only acknowledged when the mutex is unlocked.
func (r *Amqp) GetIntents(mut *sync.Mutex) (<-chan msg.IntentEvent, <-chan error, error) {
	var err error
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return nil, nil, err
		}
	}
	// declare queue
	if _, err = r.ch.QueueDeclare("iefund", true, false, false, false, nil); err != nil {
		return nil, nil, err
	}

	// bind queue to exchange
	if err = r.ch.QueueBind("iefund", "*.*.*", "ie", false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving events
	msgs, errCons := r.ch.Consume("iefund", "fund", false, false, false, false, nil)
	if errCons != nil {
		return nil, nil, errCons
	}
	// define channels to return
	eves := make(chan msg.IntentEvent)
	errors := make(chan error)
	// start routine to consume messages from broker
	go func() {
		for m := range msgs {
			var e *msg.IntentEvent = new(msg.IntentEvent)
			err := json.Unmarshal(m.Body, e)
			if err != nil {
				errors <- err
				continue
			}
			eves <- *e
			mut.Lock() // wait for the fund service to finish processing the event
			m.Ack(false)
		}
	}()
	return eves, errors, nil
}

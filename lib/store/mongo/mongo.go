// Package mongo implements the store interface for MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarancss/fundadp/lib/store"
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// mongoIntent implements a stored intent document. Both intent collections share this shape; the kind is implied by
// the collection the document lives in.
type mongoIntent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Investor  string             `bson:"investor"`
	Amount    uint64             `bson:"amount"`
	Settled   uint64             `bson:"settled"`
	TxHash    string             `bson:"txHash"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// Intent converts a mongoIntent to store.Intent type.
func (d mongoIntent) Intent(kind string) store.Intent {
	return store.Intent{
		ID:        d.ID.Hex(),
		Investor:  d.Investor,
		Kind:      kind,
		Amount:    d.Amount,
		Settled:   d.Settled,
		TxHash:    d.TxHash,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// collection resolves the intent collection for a kind.
func (m *Mongo) collection(kind string) (*mgo.Collection, error) {
	switch kind {
	case store.Investment:
		return m.c.Database("fund").Collection("investments"), nil
	case store.Redemption:
		return m.c.Database("fund").Collection("redemptions"), nil
	}

	return nil, store.ErrBadKind
}

// InsertIntent saves a new pending intent document with no transaction hash and returns its id.
func (m *Mongo) InsertIntent(ctx context.Context, it store.Intent) (string, error) {
	col, err := m.collection(it.Kind)
	if err != nil {
		return "", err
	}

	res, err := col.InsertOne(ctx, bson.M{
		"investor":  it.Investor,
		"amount":    it.Amount,
		"settled":   uint64(0),
		"txHash":    "",
		"status":    store.StatusPending,
		"createdAt": time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("could not insert intent in db: %w", err)
	}

	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

// SetTxHash links the broadcast transaction hash to the intent document. The filter on an empty hash keeps a set
// hash immutable.
func (m *Mongo) SetTxHash(ctx context.Context, kind, id, txHash string) error {
	col, err := m.collection(kind)
	if err != nil {
		return err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("bad intent id %s: %w", id, err)
	}

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": oid, "txHash": ""},
		bson.M{"$set": bson.M{"txHash": txHash}})
	if err != nil {
		return fmt.Errorf("could not link tx hash in db: %w", err)
	}

	if res.MatchedCount == 0 {
		return store.ErrIntentNotFound
	}

	return nil
}

// SetStatus moves a pending intent to a terminal status writing the settled amount in the same update. The filter on
// the pending status makes the write a no-op once the intent is terminal.
func (m *Mongo) SetStatus(ctx context.Context, kind, id, status string, settled uint64) error {
	col, err := m.collection(kind)
	if err != nil {
		return err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("bad intent id %s: %w", id, err)
	}

	_, err = col.UpdateOne(ctx,
		bson.M{"_id": oid, "status": store.StatusPending},
		bson.M{"$set": bson.M{"status": status, "settled": settled}})
	if err != nil {
		return fmt.Errorf("could not update intent status in db: %w", err)
	}

	return nil
}

// ListPending returns the pending intents of the given kind that already have a transaction hash linked.
func (m *Mongo) ListPending(ctx context.Context, kind string) ([]store.Intent, error) {
	col, err := m.collection(kind)
	if err != nil {
		return nil, err
	}

	docs, err := col.Find(ctx, bson.M{"status": store.StatusPending, "txHash": bson.M{"$ne": ""}})
	if err != nil {
		return nil, fmt.Errorf("could not list pending intents: %w", err)
	}
	defer docs.Close(ctx)

	its := []store.Intent{}

	for docs.Next(ctx) {
		var d mongoIntent
		if err = bson.Unmarshal(docs.Current, &d); err != nil {
			return nil, fmt.Errorf("could not decode intent document: %w", err)
		}

		its = append(its, d.Intent(kind))
	}

	if err = docs.Err(); errors.Is(err, mgo.ErrNoDocuments) {
		err = nil
	}

	return its, err
}

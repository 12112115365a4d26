// Package docstore keeps the lending documents (equipment, requisitions, allocations) in
// MongoDB. Transactions need a replica set, even a single-node one.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"alforge/apperr"
	"alforge/config"
	"alforge/models"
	"alforge/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	EquipmentCollection   = "equipment"
	RequisitionCollection = "requisitions"
	AllocationCollection  = "allocations"
)

var _ store.LendingStore = (*Store)(nil)

type Store struct {
	client       *mongo.Client
	equipment    *mongo.Collection
	requisitions *mongo.Collection
	allocations  *mongo.Collection
}

// Connect dials MongoDB, pings the primary and makes sure the indexes exist.
func Connect(ctx context.Context, cfg config.Mongo) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required for STORE_DRIVER=mongo")
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(20 * time.Second).
		SetServerSelectionTimeout(15 * time.Second).
		SetMaxPoolSize(50)

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pctx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
	defer cancelPing()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := New(client, cfg.Database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Printf("MongoDB connected (db=%s)", cfg.Database)
	return s, nil
}

func New(client *mongo.Client, database string) *Store {
	d := client.Database(database)
	return &Store{
		client:       client,
		equipment:    d.Collection(EquipmentCollection),
		requisitions: d.Collection(RequisitionCollection),
		allocations:  d.Collection(AllocationCollection),
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	asc := func(keys ...string) bson.D {
		d := bson.D{}
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: 1})
		}
		return d
	}

	if _, err := s.equipment.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: asc("usage_code", "type_code")},
		{Keys: asc("status")},
		{Keys: asc("last_requisitioned_at")},
	}); err != nil {
		return fmt.Errorf("equipment indexes: %w", err)
	}

	if _, err := s.requisitions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: asc("state")},
		{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("requisition indexes: %w", err)
	}

	// 同一件装备最多一条有效分配
	if _, err := s.allocations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: asc("requisition_id", "equipment_code"), Options: options.Index().SetUnique(true)},
		{
			Keys: asc("equipment_code"),
			Options: options.Index().
				SetName("one_active_per_item").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
	}); err != nil {
		return fmt.Errorf("allocation indexes: %w", err)
	}
	return nil
}

// Atomic runs fn inside a multi-document transaction. The driver may re-run fn on a
// transient transaction error, so fn must only depend on what it reads through tx.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.LendingStore) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return err
}

// translate maps driver errors onto apperr kinds; what names the document for the message.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.Wrap(apperr.KindNotFound, err, "%s not found", what)
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Wrap(apperr.KindConflict, err, "%s already exists", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// setDoc copies a partial update into a $set document, stamping updated_at when absent.
func setDoc(fields models.Fields, now time.Time) bson.M {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	if _, ok := set[models.ColUpdatedAt]; !ok {
		set[models.ColUpdatedAt] = now
	}
	return set
}

// missOrStale tells a missing document from a lost conditional write.
func missOrStale(ctx context.Context, coll *mongo.Collection, id, what string) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return apperr.Conflict("%s was modified concurrently", what)
}

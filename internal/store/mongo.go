// Package store persists harvested records. The natural key
// (stock_code, content_type, url_id) is enforced by the backend, so
// re-crawling a feed is idempotent.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/harvest"
)

const (
	connectTimeout = 10 * time.Second
	writeTimeout   = 30 * time.Second

	// dupKeyCode is MongoDB's duplicate-key write error code.
	dupKeyCode = 11000
)

// Mongo implements harvest.RecordStore on a MongoDB collection.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongo connects, pings and prepares the unique index.
func NewMongo(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*Mongo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	s := &Mongo{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.Named("store"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureIndexes creates the compound unique index behind the natural
// key. Creating an existing index is a no-op on the server.
func (s *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "stock_code", Value: 1},
			{Key: "content_type", Value: 1},
			{Key: "url_id", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_stock_type_urlid"),
	})
	if err != nil {
		return fmt.Errorf("mongodb ensure index: %w", err)
	}
	return nil
}

// Insert implements harvest.RecordStore. The write is unordered, so
// one duplicate never blocks the rest of the batch; duplicate-key
// errors are folded into the returned count instead of surfacing.
func (s *Mongo) Insert(ctx context.Context, records []harvest.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(records))
	for i, record := range records {
		docs[i] = record
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := s.collection.InsertMany(writeCtx, docs, options.InsertMany().SetOrdered(false))
	inserted, err := insertedCount(len(docs), err)
	if err != nil {
		return inserted, fmt.Errorf("mongodb insert: %w", err)
	}
	if dupes := len(docs) - inserted; dupes > 0 {
		s.logger.Debug("skipped duplicate records", zap.Int("duplicates", dupes), zap.Int("inserted", inserted))
	}
	return inserted, nil
}

// Close disconnects the client.
func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// insertedCount folds an unordered InsertMany outcome into (inserted,
// err). Duplicate-key write errors are expected in steady state and do
// not propagate; anything else does.
func insertedCount(attempted int, err error) (int, error) {
	if err == nil {
		return attempted, nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return 0, err
	}

	dupes := 0
	for _, writeErr := range bulkErr.WriteErrors {
		if writeErr.Code != dupKeyCode {
			return attempted - len(bulkErr.WriteErrors), err
		}
		dupes++
	}
	return attempted - dupes, nil
}

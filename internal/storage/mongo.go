package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/global-data-controller/countryseed/internal/models"
)

// MongoStore keeps the documents in a MongoDB collection
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	indexed bool
}

func openMongo(ctx context.Context, opts Options) (*MongoStore, error) {
	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := newMongoStore(client.Database(opts.Database).Collection(opts.Collection))
	s.client = client
	return s, nil
}

func newMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// ensureIndexes keeps iso2 unique across the collection. It runs on first
// write, so a collection that already holds duplicates can still be cleared.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if s.indexed {
		return nil
	}
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "iso2", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("iso2_unique"),
	})
	if err != nil {
		return fmt.Errorf("create iso2 index: %w", err)
	}
	s.indexed = true
	return nil
}

// Backend implements Store
func (s *MongoStore) Backend() string { return BackendMongo }

// Clear implements Store
func (s *MongoStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", s.coll.Name(), err)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// InsertMany implements Store
func (s *MongoStore) InsertMany(ctx context.Context, records []models.Country) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return 0, err
	}
	docs := make([]interface{}, len(records))
	for i := range records {
		docs[i] = records[i]
	}
	res, err := s.coll.InsertMany(ctx, docs)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("insert %s: %w: %v", s.coll.Name(), ErrDuplicateKey, err)
		}
		return 0, fmt.Errorf("insert %s: %w", s.coll.Name(), err)
	}
	return len(res.InsertedIDs), nil
}

// SampleMiddleEastern implements Store
func (s *MongoStore) SampleMiddleEastern(ctx context.Context, limit int) ([]models.Country, error) {
	cursor, err := s.coll.Find(ctx,
		bson.D{{Key: "middleEastern", Value: true}},
		options.Find().SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.coll.Name(), err)
	}
	out := []models.Country{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.coll.Name(), err)
	}
	return out, nil
}

// Count implements Store
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.coll.Name(), err)
	}
	return n, nil
}

// Close implements Store
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Package mongo adapts the application's MongoDB document store to the
// engine's read-only DocumentStore contract. Document CRUD beyond get and
// filtered listing belongs to the application, not this engine.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/postdeck/retrieval/internal/domain"
)

// Config holds document store settings.
type Config struct {
	URI      string
	Database string
}

// Compile-time check: Store implements domain.DocumentStore.
var _ domain.DocumentStore = (*Store)(nil)

// Store reads documents from MongoDB.
type Store struct {
	db *mongo.Database
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{db: client.Database(cfg.Database)}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.db.Client().Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Get fetches a single document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	return toDocument(collection, raw), nil
}

// Query lists up to limit documents matching the equality filter, in the
// store's natural order.
func (s *Store) Query(
	ctx context.Context, collection string, filter map[string]string, limit int,
) ([]domain.Document, error) {
	q := bson.M{}
	for k, v := range filter {
		q[k] = v
	}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var docs []domain.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", collection, err)
		}
		docs = append(docs, toDocument(collection, raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}

	return docs, nil
}

// toDocument splits the Mongo _id out of the raw fields.
func toDocument(collection string, raw bson.M) domain.Document {
	id := ""
	if v, ok := raw["_id"]; ok {
		id = fmt.Sprint(v)
		delete(raw, "_id")
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[k] = normalize(v)
	}

	return domain.NewDocument(collection, id, fields)
}

// normalize converts bson container types to the plain map/slice shapes the
// text builder works with.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalize(e)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = normalize(e)
		}
		return s
	default:
		return v
	}
}

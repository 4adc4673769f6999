// Package audit keeps an append-only event log of every state change around
// the review workflow in MongoDB.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event types recorded by the review system.
const (
	EventRequestCreate = "REQUEST_CREATE"
	EventAIRecommend   = "AI_RECOMMEND"
	EventHumanDecide   = "HUMAN_DECIDE"
)

// Entry is one audit log record. Entries are written once and never updated.
type Entry struct {
	ID         string         `bson:"_id" json:"id"`
	EventType  string         `bson:"event_type" json:"event_type"`
	EntityType string         `bson:"entity_type" json:"entity_type"`
	EntityID   string         `bson:"entity_id" json:"entity_id"`
	Actor      string         `bson:"actor" json:"actor"`
	Detail     map[string]any `bson:"detail,omitempty" json:"detail,omitempty"`
	CreatedAt  time.Time      `bson:"created_at" json:"created_at"`
}

// Config holds MongoDB connection configuration for the audit log.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// DefaultConfig returns the default audit log configuration.
func DefaultConfig() *Config {
	return &Config{
		URI:        "mongodb://localhost:27017",
		Database:   "broadcast_compliance",
		Collection: "audit_logs",
	}
}

// Log is the MongoDB-backed audit logger.
type Log struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to MongoDB and prepares the audit collection.
func New(config *Config) (*Log, error) {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}},
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, fmt.Errorf("failed to create audit index: %w", err)
	}

	return &Log{client: client, collection: collection}, nil
}

// Record appends one event to the log.
func (l *Log) Record(ctx context.Context, eventType, entityType, entityID, actor string, detail map[string]any) error {
	entry := Entry{
		ID:         uuid.NewString(),
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := l.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns an entity's audit trail, newest first.
func (l *Log) ListByEntity(ctx context.Context, entityID string, limit int64) ([]Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := l.collection.Find(ctx, bson.M{"entity_id": entityID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}
	return entries, nil
}

// Close disconnects from MongoDB.
func (l *Log) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}

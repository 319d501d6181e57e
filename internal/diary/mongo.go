package diary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// CollectionName is the MongoDB collection holding diary entries.
const CollectionName = "diary_entries"

type document struct {
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt *time.Time         `bson:"updated_at,omitempty"`
	Mood      *string            `bson:"mood"`
	Metadata  map[string]any     `bson:"metadata"`
	Text      string             `bson:"text"`
	Tags      []string           `bson:"tags"`
	UserID    int64              `bson:"user_id"`
	ID        primitive.ObjectID `bson:"_id,omitempty"`
}

func (d *document) entry() *Entry {
	e := &Entry{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Text:      d.Text,
		Tags:      d.Tags,
		Mood:      d.Mood,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt,
	}
	normalize(e)
	return e
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// Mongo is a Store backed by a MongoDB collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo creates the client. The driver connects lazily.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(5 * time.Second).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(cfg.Database).Collection(CollectionName),
	}, nil
}

// EnsureIndexes creates the (user_id, created_at desc) index used by List.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("diary index: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func ownedFilter(userID int64, id string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "user_id": userID}, true
}

// Create implements Store.
func (m *Mongo) Create(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	normalize(e)
	doc := document{
		UserID:    e.UserID,
		Text:      e.Text,
		Tags:      e.Tags,
		Mood:      e.Mood,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
	if e.ID != "" {
		oid, err := primitive.ObjectIDFromHex(e.ID)
		if err != nil {
			return fmt.Errorf("invalid entry id %q: %w", e.ID, err)
		}
		doc.ID = oid
	}
	res, err := m.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert diary entry: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		e.ID = oid.Hex()
	}
	return nil
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, userID int64, id string) (*Entry, error) {
	filter, ok := ownedFilter(userID, id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc document
	if err := m.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find diary entry: %w", err)
	}
	return doc.entry(), nil
}

// GetMany implements Store.
func (m *Mongo) GetMany(ctx context.Context, userID int64, ids []string) (map[string]*Entry, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := make(map[string]*Entry, len(oids))
	if len(oids) == 0 {
		return out, nil
	}

	cur, err := m.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("find diary entries: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode diary entries: %w", err)
	}
	for i := range docs {
		e := docs[i].entry()
		out[e.ID] = e
	}
	return out, nil
}

// List implements Store.
func (m *Mongo) List(ctx context.Context, userID int64, limit, offset int) ([]*Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(max(offset, 0))).
		SetLimit(int64(ClampLimit(limit)))
	cur, err := m.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode diary entries: %w", err)
	}
	out := make([]*Entry, len(docs))
	for i := range docs {
		out[i] = docs[i].entry()
	}
	return out, nil
}

// Update implements Store.
func (m *Mongo) Update(ctx context.Context, userID int64, id string, p Patch) (*Entry, error) {
	filter, ok := ownedFilter(userID, id)
	if !ok {
		return nil, ErrNotFound
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Text != nil {
		set["text"] = *p.Text
	}
	if p.Tags != nil {
		set["tags"] = *p.Tags
	}
	if p.Mood != nil {
		set["mood"] = *p.Mood
	}
	if p.Metadata != nil {
		set["metadata"] = p.Metadata
	}

	var doc document
	err := m.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update diary entry: %w", err)
	}
	return doc.entry(), nil
}

// Delete implements Store.
func (m *Mongo) Delete(ctx context.Context, userID int64, id string) error {
	filter, ok := ownedFilter(userID, id)
	if !ok {
		return ErrNotFound
	}
	res, err := m.coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete diary entry: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Count implements Store.
func (m *Mongo) Count(ctx context.Context, userID int64) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("count diary entries: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

var _ Store = (*Mongo)(nil)

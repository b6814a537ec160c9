package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/stratum/pkg/cache"
	"github.com/matzehuels/stratum/pkg/document"
	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/observability"
)

// MongoOptions configures a [MongoStore].
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps one MongoDB document per project. The encoded project is
// stored as a binary field next to its hash, so the lenient document reader
// is used on load.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *log.Logger
}

type mongoRecord struct {
	Name      string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	Hash      string    `bson:"hash"`
	Size      int       `bson:"size"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore connects to MongoDB and pings the server.
func NewMongoStore(ctx context.Context, opts MongoOptions, logger *log.Logger) (*MongoStore, error) {
	if opts.Database == "" {
		opts.Database = "stratum"
	}
	if opts.Collection == "" {
		opts.Collection = "projects"
	}
	if logger == nil {
		logger = log.Default()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
		logger: logger,
	}, nil
}

// Load reads the project stored under name.
func (s *MongoStore) Load(ctx context.Context, name string) (doc *document.Document, err error) {
	start := time.Now()
	defer func() { observability.Store().OnLoad(ctx, "mongo", time.Since(start), err) }()

	var rec mongoRecord
	err = s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return document.Read(bytes.NewReader(rec.Data), s.logger)
}

// Save upserts doc under name.
func (s *MongoStore) Save(ctx context.Context, name string, doc *document.Document) (info Info, err error) {
	start := time.Now()
	defer func() { observability.Store().OnSave(ctx, "mongo", info.Size, time.Since(start), err) }()

	if err := errs.ValidateID(name); err != nil {
		return Info{}, err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return Info{}, err
	}
	rec := mongoRecord{Name: name, Data: data, Hash: cache.Hash(data), Size: len(data), UpdatedAt: time.Now().UTC()}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": name}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return Info{}, fmt.Errorf("save project: %w", err)
	}
	return Info{Name: rec.Name, Hash: rec.Hash, Size: rec.Size, UpdatedAt: rec.UpdatedAt}, nil
}

// Delete removes the project stored under name.
func (s *MongoStore) Delete(ctx context.Context, name string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound(name)
	}
	return nil
}

// List returns every stored project sorted by name.
func (s *MongoStore) List(ctx context.Context) ([]Info, error) {
	opts := options.Find().
		SetProjection(bson.M{"data": 0}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var recs []mongoRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]Info, len(recs))
	for i, r := range recs {
		out[i] = Info{Name: r.Name, Hash: r.Hash, Size: r.Size, UpdatedAt: r.UpdatedAt}
	}
	return out, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)

package status

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig locates the shared log collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Host       string // recorded with every entry; defaults to os.Hostname
}

// MongoSink stores entries in a MongoDB collection so installs on several
// hosts share one log.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
	host   string
	logger *log.Logger
}

type mongoEntry struct {
	Time    time.Time `bson:"time"`
	Message string    `bson:"message"`
	Host    string    `bson:"host,omitempty"`
}

// NewMongoSink connects to MongoDB and verifies the connection.
func NewMongoSink(ctx context.Context, cfg MongoConfig, logger *log.Logger) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MongoSink{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		host:   cfg.Host,
		logger: logger,
	}, nil
}

// Log implements Sink.
func (s *MongoSink) Log(ctx context.Context, msg string) {
	doc := mongoEntry{Time: time.Now().UTC(), Message: msg, Host: s.host}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		s.logger.Warn("write install log to mongo", "err", err)
	}
}

// Entries implements Sink.
func (s *MongoSink) Entries(ctx context.Context, limit int) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []mongoEntry
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(docs))
	for i, d := range docs {
		entries[len(docs)-1-i] = Entry{Time: d.Time.Local(), Message: d.Message}
	}
	return entries, nil
}

// Close disconnects the client.
func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Sink = (*MongoSink)(nil)

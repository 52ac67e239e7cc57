package cache

import (
	"context"
	"time"

	"flickrharvest/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOptions configures a MongoCache
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	ShelfLife  time.Duration
	Logger     logger.Logger
}

type mongoEntry struct {
	Key       string    `bson:"key"`
	Body      []byte    `bson:"body"`
	StoredAt  time.Time `bson:"stored_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoCache stores responses in a MongoDB collection with a TTL index on
// expires_at. When the server cannot be reached at open time the cache is
// disabled and every lookup misses.
type MongoCache struct {
	counters
	client    *mongo.Client
	coll      *mongo.Collection
	shelfLife time.Duration
	logger    logger.Logger
}

// NewMongoCache connects and prepares indexes
func NewMongoCache(ctx context.Context, opts MongoOptions) *MongoCache {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	mc := &MongoCache{
		counters:  counters{backend: "mongo"},
		shelfLife: opts.ShelfLife,
		logger:    log.WithField("component", "mongo_cache"),
	}
	if mc.shelfLife <= 0 {
		mc.shelfLife = 24 * time.Hour
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		mc.logger.WithError(err).Warn("MongoDB connection failed, response cache disabled")
		return mc
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		mc.logger.WithError(err).Warn("MongoDB ping failed, response cache disabled")
		_ = client.Disconnect(context.Background())
		return mc
	}

	coll := client.Database(opts.Database).Collection(opts.Collection)
	_, err = coll.Indexes().CreateMany(connectCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		mc.logger.WithError(err).Warn("failed to create cache indexes, response cache disabled")
		_ = client.Disconnect(context.Background())
		return mc
	}

	mc.client = client
	mc.coll = coll
	logger.LogComponentStart(mc.logger, "mongo_cache", map[string]interface{}{
		"database":   opts.Database,
		"collection": opts.Collection,
	})
	return mc
}

// Enabled reports whether the cache reached its server
func (mc *MongoCache) Enabled() bool { return mc.coll != nil }

func (mc *MongoCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if mc.coll == nil {
		return nil, false
	}

	var entry mongoEntry
	err := mc.coll.FindOne(ctx, bson.M{
		"key":        key,
		"expires_at": bson.M{"$gt": time.Now()},
	}).Decode(&entry)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			mc.logger.WithError(err).Debug("cache lookup failed")
		}
		mc.record(false)
		return nil, false
	}
	mc.record(true)
	return entry.Body, true
}

func (mc *MongoCache) Put(ctx context.Context, key string, body []byte) {
	if mc.coll == nil {
		return
	}

	now := time.Now()
	_, err := mc.coll.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": mongoEntry{Key: key, Body: body, StoredAt: now, ExpiresAt: now.Add(mc.shelfLife)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		mc.logger.WithError(err).Debug("cache store failed")
	}
}

func (mc *MongoCache) Close(ctx context.Context) error {
	if mc.client == nil {
		return nil
	}
	logger.LogComponentStop(mc.logger, "mongo_cache", "closed")
	return mc.client.Disconnect(ctx)
}

package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
)

const databaseName = "member_portal"

type MongoDBConfig struct {
	URI string
}

func NewMongoDBConfig(logger *zerolog.Logger) *MongoDBConfig {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		logger.Fatal().Msg("MONGO_URI not set")
	}
	return &MongoDBConfig{URI: uri}
}

type MongoDBClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDBClient(lc fx.Lifecycle, config *MongoDBConfig, logger *zerolog.Logger) (*MongoDBClient, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(config.URI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping MongoDB")
	}

	logger.Info().Msg("connected to MongoDB")

	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			logger.Info().Msg("closing MongoDB connection")
			return client.Disconnect(stopCtx)
		},
	})
	db := client.Database(databaseName)
	return &MongoDBClient{Client: client, Database: db}, db, nil
}

// EnsureRecipientIndex creates the unique (communication_id, user_id) index on
// the recipient ledger. The uniqueness constraint backs the at-most-one-entry-
// per-pair invariant even when fan-outs race.
func EnsureRecipientIndex(collection *mongo.Collection, logger *zerolog.Logger) {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "communication_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		logger.Fatal().Err(err).Msg("failed to create recipient ledger index")
	}
}

// EnsureNotificationTTLIndex creates the TTL index on expires_at so the storage
// layer physically removes expired notification entries. expireAfterSeconds is
// zero: each document's own expires_at is its deadline.
func EnsureNotificationTTLIndex(collection *mongo.Collection, logger *zerolog.Logger) {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		logger.Fatal().Err(err).Msg("failed to create notification TTL index")
	}
}

func (c *MongoDBClient) GetCollection(collectionName string) *mongo.Collection {
	return c.Client.Database(databaseName).Collection(collectionName)
}

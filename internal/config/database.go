package config

import (
	"context"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type MongoDBConfig struct {
	URI      string
	Database string
}

func NewMongoDBConfig(log *zap.Logger) *MongoDBConfig {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		log.Fatal("MONGO_URI not set")
	}
	dbName := os.Getenv("MONGO_DATABASE")
	if dbName == "" {
		dbName = "notice_board"
	}
	return &MongoDBConfig{URI: uri, Database: dbName}
}

type MongoDBClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDBClient(lc fx.Lifecycle, config *MongoDBConfig, log *zap.Logger) (*MongoDBClient, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(config.URI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	log.Info("Connected to MongoDB", zap.String("database", config.Database))

	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			log.Info("Closing MongoDB connection ...")
			return client.Disconnect(stopCtx)
		},
	})
	db := client.Database(config.Database)
	return &MongoDBClient{Client: client, Database: db}, db, nil
}

func (c *MongoDBClient) GetCollection(collectionName string) *mongo.Collection {
	return c.Database.Collection(collectionName)
}

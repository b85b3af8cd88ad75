package config

import (
	"context"
	"log"
	"time"

	"github.com/avast/retry-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo dials MongoDB with a few startup retries, so the service
// survives the database coming up a moment later than it does.
func ConnectMongo(uri, dbName string) (*mongo.Database, error) {
	var client *mongo.Client

	err := retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
			if err != nil {
				return err
			}
			if err := c.Ping(ctx, nil); err != nil {
				_ = c.Disconnect(ctx)
				return err
			}
			client = c
			return nil
		},
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("MongoDB connection attempt %d failed: %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Println("Connected to MongoDB!")
	return client.Database(dbName), nil
}

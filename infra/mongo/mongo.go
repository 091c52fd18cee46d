package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bitbucket.org/novatechnologies/barfeed/infra"
	"bitbucket.org/novatechnologies/barfeed/infra/logger"
)

const barsIndexName = "bars"

func NewMongoClient(
	ctx context.Context,
	config infra.MongoDbConfig,
) (*mongo.Client, error) {
	serverAPIOptions := options.ServerAPI(options.ServerAPIVersion1)

	clientOptions := options.Client().
		ApplyURI(config.ConnectionUrl).
		SetServerAPIOptions(serverAPIOptions).
		SetMaxPoolSize(100).
		SetConnectTimeout(60 * time.Second)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "[infra.Mongo] failed connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "[infra.Mongo] ping failed")
	}

	return client, nil
}

// GetBarsCollection returns the closed bars collection and makes sure its
// unique (symbol, resolution, open time) index exists.
func GetBarsCollection(
	ctx context.Context,
	client *mongo.Client,
	config infra.MongoDbConfig,
) (*mongo.Collection, error) {
	logger.FromContext(ctx).Infof(
		"[infra.Mongo] Try get collection %s",
		config.BarCollectionName,
	)
	collection := client.Database(config.DatabaseName).Collection(config.BarCollectionName)

	err := createIndex(ctx, collection, barsIndexName,
		bson.D{
			{Key: "s", Value: 1},
			{Key: "r", Value: 1},
			{Key: "t", Value: -1},
		}, true)
	if err != nil {
		return nil, err
	}

	return collection, nil
}

func createIndex(ctx context.Context, coll *mongo.Collection, name string, keys bson.D, isUnique bool) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(name).SetUnique(isUnique),
	})

	return errors.Wrapf(err, "can't create index %s", name)
}

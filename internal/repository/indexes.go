package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	CollectionSurveys     = "surveys"
	CollectionRespondents = "respondents"
	CollectionResponses   = "responses"
)

// EnsureIndexes creates the indexes every repository relies on. Failures are
// logged, not fatal: the server still works without them, only slower.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) {
	createIndex(ctx, logger, db.Collection(CollectionSurveys), bson.D{
		{Key: "createdBy", Value: 1},
		{Key: "updatedAt", Value: -1},
	}, false)

	createIndex(ctx, logger, db.Collection(CollectionRespondents), bson.D{{Key: "email", Value: 1}}, true)

	responses := db.Collection(CollectionResponses)
	createIndex(ctx, logger, responses, bson.D{
		{Key: "surveyId", Value: 1},
		{Key: "respondentId", Value: 1},
		{Key: "createdAt", Value: -1},
	}, false)
	createIndex(ctx, logger, responses, bson.D{
		{Key: "surveyId", Value: 1},
		{Key: "createdAt", Value: -1},
	}, false)

	logger.Info("mongo indexes ensured")
}

func createIndex(ctx context.Context, logger *zap.Logger, coll *mongo.Collection, keys bson.D, unique bool) {
	opts := options.Index().SetUnique(unique)
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts}); err != nil {
		logger.Warn("failed to create index", zap.String("collection", coll.Name()), zap.Error(err))
	}
}

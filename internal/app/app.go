package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"surveychat/internal/cache"
	"surveychat/internal/config"
	"surveychat/internal/memstore"
	"surveychat/internal/repository"
)

const connectTimeout = 10 * time.Second

// App holds the persistence layer shared by the server and the seeder
type App struct {
	SurveyRepo      repository.SurveyRepo
	RespondentRepo  repository.RespondentRepo
	ResponseRepo    repository.ResponseRepo
	SurveyCache     cache.SurveyCache
	SubmissionCache cache.SubmissionCache
	AnalyticsCache  cache.AnalyticsCache
	TokenCache      cache.TokenCache

	mongo *mongo.Client
	redis *redis.Client
}

// Open connects the configured store. "memory" needs no external services.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on exit")
		store := memstore.New()
		return &App{
			SurveyRepo:      store.Surveys(),
			RespondentRepo:  store.Respondents(),
			ResponseRepo:    store.Responses(),
			SurveyCache:     store.SurveyCache(),
			SubmissionCache: store.SubmissionCache(),
			AnalyticsCache:  store.Analytics(),
			TokenCache:      store.Tokens(),
		}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to mongodb", zap.String("database", cfg.MongoDatabase))

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		mongoClient.Disconnect(context.Background())
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	db := mongoClient.Database(cfg.MongoDatabase)
	repository.EnsureIndexes(ctx, db, logger)

	return &App{
		SurveyRepo:      repository.NewSurveyRepo(db),
		RespondentRepo:  repository.NewRespondentRepo(db),
		ResponseRepo:    repository.NewResponseRepo(db),
		SurveyCache:     cache.NewSurveyCache(rdb, cfg.Cache.SurveyTTL),
		SubmissionCache: cache.NewSubmissionCache(rdb, cfg.Cache.SubmissionTTL),
		AnalyticsCache:  cache.NewAnalyticsCache(rdb),
		TokenCache:      cache.NewTokenCache(rdb),
		mongo:           mongoClient,
		redis:           rdb,
	}, nil
}

// Health pings the backing services
func (a *App) Health(ctx context.Context) error {
	if a.mongo != nil {
		if err := a.mongo.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.mongo != nil {
		errs = append(errs, a.mongo.Disconnect(ctx))
	}
	return errors.Join(errs...)
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"surveychat/internal/model"
)

// SurveyCache holds the public projection of published surveys
type SurveyCache interface {
	Get(ctx context.Context, oid string) (*model.PublicSurvey, error)
	Set(ctx context.Context, survey *model.PublicSurvey) error
	Delete(ctx context.Context, oid string) error
}

type surveyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSurveyCache creates a new survey cache
func NewSurveyCache(client *redis.Client, ttl time.Duration) SurveyCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &surveyCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *surveyCache) key(oid string) string {
	return fmt.Sprintf("survey:%s:public", oid)
}

func (c *surveyCache) Get(ctx context.Context, oid string) (*model.PublicSurvey, error) {
	data, err := c.client.Get(ctx, c.key(oid)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var survey model.PublicSurvey
	if err := json.Unmarshal([]byte(data), &survey); err != nil {
		return nil, err
	}
	return &survey, nil
}

func (c *surveyCache) Set(ctx context.Context, survey *model.PublicSurvey) error {
	data, err := json.Marshal(survey)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(survey.ID), data, c.ttl).Err()
}

func (c *surveyCache) Delete(ctx context.Context, oid string) error {
	return c.client.Del(ctx, c.key(oid)).Err()
}

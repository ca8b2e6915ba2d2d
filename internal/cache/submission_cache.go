package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"surveychat/internal/model"
)

// SubmissionCache remembers check-submission answers per survey and email.
// Only positive answers are cached; a negative answer can flip at any time.
type SubmissionCache interface {
	GetCheck(ctx context.Context, surveyID, email string) (*model.SubmissionCheck, error)
	SetCheck(ctx context.Context, surveyID, email string, check *model.SubmissionCheck) error
	Invalidate(ctx context.Context, surveyID, email string) error
}

type submissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSubmissionCache(client *redis.Client, ttl time.Duration) SubmissionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &submissionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *submissionCache) key(surveyID, email string) string {
	return fmt.Sprintf("survey:%s:submitted:%s", surveyID, email)
}

func (c *submissionCache) GetCheck(ctx context.Context, surveyID, email string) (*model.SubmissionCheck, error) {
	data, err := c.client.Get(ctx, c.key(surveyID, email)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var check model.SubmissionCheck
	if err := json.Unmarshal([]byte(data), &check); err != nil {
		return nil, err
	}
	return &check, nil
}

func (c *submissionCache) SetCheck(ctx context.Context, surveyID, email string, check *model.SubmissionCheck) error {
	if check == nil || !check.HasSubmitted {
		return nil
	}
	data, err := json.Marshal(check)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(surveyID, email), data, c.ttl).Err()
}

func (c *submissionCache) Invalidate(ctx context.Context, surveyID, email string) error {
	return c.client.Del(ctx, c.key(surveyID, email)).Err()
}

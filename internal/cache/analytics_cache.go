package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"surveychat/internal/model"
)

const (
	statsTotalField = "total"
	maxTopAnswerLen = 120
)

// QuestionStats are the raw counters kept for one question
type QuestionStats struct {
	AnswerCount int64
	Options     map[string]int64
	Ratings     map[int]int64
	Top         []model.AnswerCount
}

// AnalyticsCache keeps running per-survey response counters in Redis
type AnalyticsCache interface {
	RecordResponse(ctx context.Context, survey *model.Survey, answers map[string]model.Answer) error
	Total(ctx context.Context, surveyID string) (int64, error)
	QuestionStats(ctx context.Context, surveyID string, q model.Question, topN int) (*QuestionStats, error)
	Reset(ctx context.Context, survey *model.Survey) error
}

type analyticsCache struct {
	client *redis.Client
}

// NewAnalyticsCache creates a new analytics cache
func NewAnalyticsCache(client *redis.Client) AnalyticsCache {
	return &analyticsCache{client: client}
}

// Key helpers
func (c *analyticsCache) statsKey(surveyID string) string {
	return fmt.Sprintf("survey:%s:stats", surveyID)
}

func (c *analyticsCache) optionsKey(surveyID, questionKey string) string {
	return fmt.Sprintf("survey:%s:q:%s:options", surveyID, questionKey)
}

func (c *analyticsCache) ratingsKey(surveyID, questionKey string) string {
	return fmt.Sprintf("survey:%s:q:%s:ratings", surveyID, questionKey)
}

func (c *analyticsCache) topKey(surveyID, questionKey string) string {
	return fmt.Sprintf("survey:%s:q:%s:top", surveyID, questionKey)
}

func answeredField(questionKey string) string {
	return "answered:" + questionKey
}

func (c *analyticsCache) RecordResponse(ctx context.Context, survey *model.Survey, answers map[string]model.Answer) error {
	pipe := c.client.TxPipeline()
	pipe.HIncrBy(ctx, c.statsKey(survey.ID), statsTotalField, 1)

	for _, q := range survey.Questions {
		key := q.Key()
		a, ok := answers[key]
		if !ok || a.IsEmpty() {
			continue
		}
		pipe.HIncrBy(ctx, c.statsKey(survey.ID), answeredField(key), 1)

		switch {
		case q.Kind.IsChoice():
			values := a.Choices
			if !a.Multi {
				values = []string{a.Text}
			}
			for _, v := range values {
				pipe.HIncrBy(ctx, c.optionsKey(survey.ID, key), v, 1)
			}
		case q.Kind == model.KindRating:
			pipe.HIncrBy(ctx, c.ratingsKey(survey.ID, key), strings.TrimSpace(a.Text), 1)
		default:
			text := strings.ToLower(strings.TrimSpace(a.String()))
			if len(text) > maxTopAnswerLen {
				text = text[:maxTopAnswerLen]
			}
			pipe.ZIncrBy(ctx, c.topKey(survey.ID, key), 1, text)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (c *analyticsCache) Total(ctx context.Context, surveyID string) (int64, error) {
	n, err := c.client.HGet(ctx, c.statsKey(surveyID), statsTotalField).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (c *analyticsCache) QuestionStats(ctx context.Context, surveyID string, q model.Question, topN int) (*QuestionStats, error) {
	key := q.Key()
	stats := &QuestionStats{}

	answered, err := c.client.HGet(ctx, c.statsKey(surveyID), answeredField(key)).Int64()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	stats.AnswerCount = answered

	switch {
	case q.Kind.IsChoice():
		raw, err := c.client.HGetAll(ctx, c.optionsKey(surveyID, key)).Result()
		if err != nil {
			return nil, err
		}
		stats.Options = make(map[string]int64, len(raw))
		for k, v := range raw {
			n, _ := strconv.ParseInt(v, 10, 64)
			stats.Options[k] = n
		}
	case q.Kind == model.KindRating:
		raw, err := c.client.HGetAll(ctx, c.ratingsKey(surveyID, key)).Result()
		if err != nil {
			return nil, err
		}
		stats.Ratings = make(map[int]int64, len(raw))
		for k, v := range raw {
			rating, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			n, _ := strconv.ParseInt(v, 10, 64)
			stats.Ratings[rating] = n
		}
	default:
		if topN <= 0 {
			return stats, nil
		}
		results, err := c.client.ZRevRangeWithScores(ctx, c.topKey(surveyID, key), 0, int64(topN-1)).Result()
		if err != nil {
			return nil, err
		}
		stats.Top = make([]model.AnswerCount, len(results))
		for i, z := range results {
			stats.Top[i] = model.AnswerCount{Value: z.Member.(string), Count: int64(z.Score)}
		}
	}
	return stats, nil
}

func (c *analyticsCache) Reset(ctx context.Context, survey *model.Survey) error {
	keys := []string{c.statsKey(survey.ID)}
	for _, q := range survey.Questions {
		key := q.Key()
		keys = append(keys, c.optionsKey(survey.ID, key), c.ratingsKey(survey.ID, key), c.topKey(survey.ID, key))
	}
	return c.client.Del(ctx, keys...).Err()
}

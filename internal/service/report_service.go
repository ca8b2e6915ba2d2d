package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"surveychat/internal/cache"
	"surveychat/internal/model"
	"surveychat/internal/repository"
)

const (
	topAnswersLimit = 5
	rebuildPageSize = 500
)

// ReportService builds author summaries from the Redis analytics counters
type ReportService struct {
	surveys      *SurveyService
	responseRepo repository.ResponseRepo
	analytics    cache.AnalyticsCache
	logger       *zap.Logger
	now          func() time.Time
}

// NewReportService creates a new report service
func NewReportService(surveys *SurveyService, responseRepo repository.ResponseRepo, analytics cache.AnalyticsCache, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		surveys:      surveys,
		responseRepo: responseRepo,
		analytics:    analytics,
		logger:       logger,
		now:          time.Now,
	}
}

// Summary aggregates a survey's responses. Counters that drifted from the
// stored responses (Redis flushed, survey edited) are rebuilt first.
func (s *ReportService) Summary(ctx context.Context, authorID, surveyID string) (*model.SurveySummary, error) {
	survey, err := s.surveys.Get(ctx, authorID, surveyID)
	if err != nil {
		return nil, err
	}

	stored, err := s.responseRepo.CountBySurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	counted, err := s.analytics.Total(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("read analytics: %w", err)
	}
	if counted != stored {
		s.logger.Info("rebuilding survey analytics",
			zap.String("survey_id", surveyID), zap.Int64("stored", stored), zap.Int64("counted", counted))
		if err := s.rebuild(ctx, survey); err != nil {
			return nil, err
		}
	}

	summary := &model.SurveySummary{
		SurveyID:       survey.ID,
		Title:          survey.Title,
		TotalResponses: stored,
		Questions:      make([]model.QuestionSummary, 0, len(survey.Questions)),
		GeneratedAt:    s.now().UTC(),
	}
	for _, q := range survey.Questions {
		stats, err := s.analytics.QuestionStats(ctx, surveyID, q, topAnswersLimit)
		if err != nil {
			return nil, fmt.Errorf("read question stats: %w", err)
		}
		summary.Questions = append(summary.Questions, summarize(q, stats))
	}
	return summary, nil
}

func (s *ReportService) rebuild(ctx context.Context, survey *model.Survey) error {
	if err := s.analytics.Reset(ctx, survey); err != nil {
		return fmt.Errorf("reset analytics: %w", err)
	}
	for offset := int64(0); ; offset += rebuildPageSize {
		page, err := s.responseRepo.ListBySurvey(ctx, survey.ID, rebuildPageSize, offset)
		if err != nil {
			return err
		}
		for _, r := range page {
			if err := s.analytics.RecordResponse(ctx, survey, r.Answers); err != nil {
				return fmt.Errorf("record analytics: %w", err)
			}
		}
		if len(page) < rebuildPageSize {
			return nil
		}
	}
}

func summarize(q model.Question, stats *cache.QuestionStats) model.QuestionSummary {
	qs := model.QuestionSummary{
		Key:         q.Key(),
		Label:       q.Label,
		Kind:        q.Kind,
		AnswerCount: stats.AnswerCount,
		TopAnswers:  stats.Top,
	}

	switch {
	case q.Kind.IsChoice():
		// options keyed by value or label both count toward the option
		for _, o := range q.Options {
			n := stats.Options[o.Value]
			if o.Label != o.Value {
				n += stats.Options[o.Label]
			}
			qs.OptionCounts = append(qs.OptionCounts, model.OptionCount{Value: o.Value, Label: o.Label, Count: n})
		}
	case q.Kind == model.KindRating:
		qs.RatingHist = make(map[int]int64, q.EffectiveScale())
		var sum, n int64
		for r := 1; r <= q.EffectiveScale(); r++ {
			c := stats.Ratings[r]
			qs.RatingHist[r] = c
			sum += int64(r) * c
			n += c
		}
		if n > 0 {
			qs.RatingAvg = float64(sum) / float64(n)
		}
	}

	sort.SliceStable(qs.TopAnswers, func(i, j int) bool {
		return qs.TopAnswers[i].Count > qs.TopAnswers[j].Count
	})
	return qs
}

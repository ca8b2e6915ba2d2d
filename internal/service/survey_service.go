package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"surveychat/internal/cache"
	"surveychat/internal/model"
	"surveychat/internal/repository"
	"surveychat/internal/validation"
)

// SurveyService handles survey CRUD and the public survey read path
type SurveyService struct {
	surveyRepo   repository.SurveyRepo
	responseRepo repository.ResponseRepo
	surveyCache  cache.SurveyCache
	analytics    cache.AnalyticsCache
	broadcaster  Broadcaster
	logger       *zap.Logger
	loads        singleflight.Group
	now          func() time.Time
}

// NewSurveyService creates a new survey service
func NewSurveyService(
	surveyRepo repository.SurveyRepo,
	responseRepo repository.ResponseRepo,
	surveyCache cache.SurveyCache,
	analytics cache.AnalyticsCache,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *SurveyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyService{
		surveyRepo:   surveyRepo,
		responseRepo: responseRepo,
		surveyCache:  surveyCache,
		analytics:    analytics,
		broadcaster:  orNop(broadcaster),
		logger:       logger,
		now:          time.Now,
	}
}

// Create creates a new draft survey
func (s *SurveyService) Create(ctx context.Context, authorID string, input *model.SurveyInput) (*model.Survey, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	survey := &model.Survey{Status: model.SurveyDraft, CreatedBy: authorID}
	applyInput(survey, input)

	if _, err := s.surveyRepo.Create(ctx, survey); err != nil {
		return nil, fmt.Errorf("create survey: %w", err)
	}
	s.logger.Info("survey created", zap.String("survey_id", survey.ID), zap.String("author_id", authorID))
	return survey, nil
}

// List returns the author's surveys with response totals
func (s *SurveyService) List(ctx context.Context, authorID string) ([]model.SurveyListItem, error) {
	surveys, err := s.surveyRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	items := make([]model.SurveyListItem, 0, len(surveys))
	for _, sv := range surveys {
		total, err := s.responseRepo.CountBySurvey(ctx, sv.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, model.SurveyListItem{
			ID:             sv.ID,
			Title:          sv.Title,
			Status:         sv.Status,
			QuestionCount:  len(sv.Questions),
			TotalResponses: total,
			UpdatedAt:      sv.UpdatedAt,
		})
	}
	return items, nil
}

// Get returns one of the author's surveys
func (s *SurveyService) Get(ctx context.Context, authorID, id string) (*model.Survey, error) {
	survey, err := s.surveyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	if survey.CreatedBy != authorID {
		return nil, ErrForbidden
	}
	return survey, nil
}

// Update replaces the editable fields of a survey
func (s *SurveyService) Update(ctx context.Context, authorID, id string, input *model.SurveyInput) (*model.Survey, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	survey, err := s.Get(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	applyInput(survey, input)

	if err := s.surveyRepo.Update(ctx, survey); err != nil {
		return nil, fmt.Errorf("update survey: %w", err)
	}
	s.invalidate(ctx, id)
	return survey, nil
}

// Delete removes a survey and its responses. Published surveys that already
// have responses are kept.
func (s *SurveyService) Delete(ctx context.Context, authorID, id string) error {
	survey, err := s.Get(ctx, authorID, id)
	if err != nil {
		return err
	}
	if survey.Status == model.SurveyPublished {
		n, err := s.responseRepo.CountBySurvey(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSurveyHasResponses
		}
	}

	if err := s.surveyRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	if err := s.responseRepo.DeleteBySurvey(ctx, id); err != nil {
		return fmt.Errorf("delete responses: %w", err)
	}
	if err := s.analytics.Reset(ctx, survey); err != nil {
		s.logger.Warn("failed to reset analytics", zap.String("survey_id", id), zap.Error(err))
	}
	s.invalidate(ctx, id)
	return nil
}

// SetStatus applies a publish action: publish, unpublish or close
func (s *SurveyService) SetStatus(ctx context.Context, authorID, id, action string) (*model.Survey, error) {
	survey, err := s.Get(ctx, authorID, id)
	if err != nil {
		return nil, err
	}

	var status model.SurveyStatus
	switch action {
	case "publish":
		if len(survey.Questions) == 0 {
			return nil, ErrNoQuestions
		}
		status = model.SurveyPublished
	case "unpublish":
		status = model.SurveyDraft
	case "close":
		status = model.SurveyClosed
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	if err := s.surveyRepo.SetStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("set survey status: %w", err)
	}
	survey.Status = status
	s.invalidate(ctx, id)

	s.broadcaster.Publish(model.SurveyEvent{
		Type:     model.EventSurveyStatusChanged,
		SurveyID: id,
		Payload:  map[string]interface{}{"status": status},
		At:       s.now().UTC(),
	})
	s.logger.Info("survey status changed", zap.String("survey_id", id), zap.String("status", string(status)))
	return survey, nil
}

// GetPublic returns the respondent view of an active survey. Cache misses
// for the same survey collapse into one store read.
func (s *SurveyService) GetPublic(ctx context.Context, id string) (*model.PublicSurvey, error) {
	now := s.now()
	cached, err := s.surveyCache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("survey cache read failed", zap.String("survey_id", id), zap.Error(err))
	}
	if cached != nil {
		if cached.EndDate != nil && now.After(*cached.EndDate) {
			return nil, ErrSurveyNotActive
		}
		return cached, nil
	}

	v, err, _ := s.loads.Do(id, func() (interface{}, error) {
		survey, err := s.surveyRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if survey == nil {
			return nil, ErrSurveyNotFound
		}
		if !survey.IsActive(now) {
			return nil, ErrSurveyNotActive
		}
		public := survey.Public()
		if err := s.surveyCache.Set(ctx, public); err != nil {
			s.logger.Warn("survey cache write failed", zap.String("survey_id", id), zap.Error(err))
		}
		return public, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.PublicSurvey), nil
}

// LoadActive returns the stored survey if it accepts responses now
func (s *SurveyService) LoadActive(ctx context.Context, id string) (*model.Survey, error) {
	survey, err := s.surveyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	if !survey.IsActive(s.now()) {
		return nil, ErrSurveyNotActive
	}
	return survey, nil
}

func (s *SurveyService) invalidate(ctx context.Context, id string) {
	if err := s.surveyCache.Delete(ctx, id); err != nil {
		s.logger.Warn("survey cache invalidation failed", zap.String("survey_id", id), zap.Error(err))
	}
}

func applyInput(survey *model.Survey, input *model.SurveyInput) {
	survey.Title = input.Title
	survey.Description = input.Description
	survey.Category = input.Category
	survey.AllowMultipleResponses = input.AllowMultipleResponses
	survey.StartDate = input.StartDate
	survey.EndDate = input.EndDate
	survey.Questions = model.NormalizeQuestions(input.Questions)
	survey.Configs = input.Configs
}

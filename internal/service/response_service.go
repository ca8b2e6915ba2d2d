package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"surveychat/internal/cache"
	"surveychat/internal/chat"
	"surveychat/internal/logging"
	"surveychat/internal/mail"
	"surveychat/internal/metrics"
	"surveychat/internal/model"
	"surveychat/internal/repository"
	"surveychat/internal/validation"
)

const backgroundTimeout = 30 * time.Second

// ResponseService collects public submissions and serves them back
type ResponseService struct {
	surveys        *SurveyService
	surveyRepo     repository.SurveyRepo
	respondentRepo repository.RespondentRepo
	responseRepo   repository.ResponseRepo
	checks         cache.SubmissionCache
	analytics      cache.AnalyticsCache
	mailer         mail.Mailer
	broadcaster    Broadcaster
	frontendURL    string
	logger         *zap.Logger
	background     sync.WaitGroup
	now            func() time.Time
}

// NewResponseService creates a new response service
func NewResponseService(
	surveys *SurveyService,
	surveyRepo repository.SurveyRepo,
	respondentRepo repository.RespondentRepo,
	responseRepo repository.ResponseRepo,
	checks cache.SubmissionCache,
	analytics cache.AnalyticsCache,
	mailer mail.Mailer,
	broadcaster Broadcaster,
	frontendURL string,
	logger *zap.Logger,
) *ResponseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseService{
		surveys:        surveys,
		surveyRepo:     surveyRepo,
		respondentRepo: respondentRepo,
		responseRepo:   responseRepo,
		checks:         checks,
		analytics:      analytics,
		mailer:         mailer,
		broadcaster:    orNop(broadcaster),
		frontendURL:    strings.TrimRight(frontendURL, "/"),
		logger:         logger,
		now:            time.Now,
	}
}

// ViewURL is the absolute read-only submission link
func (s *ResponseService) ViewURL(responseID string) string {
	return s.frontendURL + chat.SubmissionViewPath(responseID)
}

// Submit validates and stores one response. A respondent who already
// completed the survey gets a *ConflictError unless multiple responses are
// allowed.
func (s *ResponseService) Submit(ctx context.Context, surveyID string, req *model.SubmitRequest) (*model.SubmitResult, error) {
	log := logging.FromContext(ctx, s.logger).With(zap.String("survey_id", surveyID))

	survey, err := s.surveys.LoadActive(ctx, surveyID)
	if err != nil {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err := validation.Struct(&req.RespondentInfo); err != nil {
		metrics.Submissions.WithLabelValues("invalid").Inc()
		return nil, err
	}

	answers := make(map[string]model.Answer, len(survey.Questions))
	for _, q := range survey.Questions {
		key := q.Key()
		a := req.Responses[key]
		if r := validation.ValidateStored(q, a); !r.OK() {
			metrics.ValidationFailures.WithLabelValues(string(r.Reason)).Inc()
			metrics.Submissions.WithLabelValues("invalid").Inc()
			return nil, &AnswerError{Key: key, Reason: r.Reason, Message: validation.Message(q, r.Reason)}
		}
		if !a.IsEmpty() {
			answers[key] = a
		}
	}

	respondent, err := s.respondentRepo.Upsert(ctx, req.RespondentInfo)
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upsert respondent: %w", err)
	}

	if !survey.AllowMultipleResponses {
		existing, err := s.responseRepo.FindComplete(ctx, survey.ID, respondent.ID)
		if err != nil {
			metrics.Submissions.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("find previous response: %w", err)
		}
		if existing != nil {
			metrics.Submissions.WithLabelValues("conflict").Inc()
			log.Info("duplicate submission refused", zap.String("response_id", existing.ID))
			return nil, &ConflictError{Info: model.ConflictInfo{
				AlreadySubmitted:  true,
				ResponseID:        existing.ID,
				ViewSubmissionURL: s.ViewURL(existing.ID),
				SubmittedAt:       existing.CreatedAt,
			}}
		}
	}

	now := s.now().UTC()
	typed := model.RespondentInfo{
		FullName: strings.TrimSpace(req.RespondentInfo.FullName),
		Email:    strings.TrimSpace(req.RespondentInfo.Email),
		Phone:    strings.TrimSpace(req.RespondentInfo.Phone),
	}
	response := &model.SurveyResponse{
		SurveyID:     survey.ID,
		RespondentID: respondent.ID,
		Respondent:   &typed,
		Answers:      answers,
		IsComplete:   true,
		CompletedAt:  &now,
		CreatedAt:    now,
	}
	if err := s.responseRepo.Create(ctx, response); err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store response: %w", err)
	}
	metrics.Submissions.WithLabelValues("accepted").Inc()
	log.Info("response stored", zap.String("response_id", response.ID), zap.Int("answers", len(answers)))

	result := &model.SubmitResult{
		ResponseID:        response.ID,
		SurveyTitle:       survey.Title,
		SubmittedAt:       response.CreatedAt,
		CompletedAt:       response.CompletedAt,
		AnswersCount:      len(answers),
		ViewSubmissionURL: s.ViewURL(response.ID),
		EmailQueued:       respondent.Email != "",
	}

	s.afterSubmit(log, survey, respondent, response, result)
	return result, nil
}

// afterSubmit runs the side effects that must not fail a stored submission
func (s *ResponseService) afterSubmit(log *zap.Logger, survey *model.Survey, respondent *model.Respondent, response *model.SurveyResponse, result *model.SubmitResult) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		if err := s.analytics.RecordResponse(ctx, survey, response.Answers); err != nil {
			log.Warn("failed to record analytics", zap.Error(err))
		}
		if err := s.checks.Invalidate(ctx, survey.ID, respondent.Email); err != nil {
			log.Warn("failed to invalidate submission check", zap.Error(err))
		}

		s.broadcaster.Publish(model.SurveyEvent{
			Type:     model.EventResponseSubmitted,
			SurveyID: survey.ID,
			Payload: map[string]interface{}{
				"response_id":   response.ID,
				"answers_count": len(response.Answers),
				"submitted_at":  response.CreatedAt,
			},
			At: s.now().UTC(),
		})

		if !result.EmailQueued {
			return
		}
		err := s.mailer.Send(ctx, confirmationMessage(survey, respondent, result))
		if err != nil {
			metrics.Emails.WithLabelValues("confirmation", "failed").Inc()
			log.Warn("failed to send confirmation email", zap.String("response_id", response.ID), zap.Error(err))
			return
		}
		metrics.Emails.WithLabelValues("confirmation", "sent").Inc()
	}()
}

// Wait blocks until queued side effects (mail, analytics) have finished
func (s *ResponseService) Wait() {
	s.background.Wait()
}

// Check reports whether email already completed the survey
func (s *ResponseService) Check(ctx context.Context, surveyID, email string) (*model.SubmissionCheck, error) {
	email = repository.NormalizeEmail(email)

	cached, err := s.checks.GetCheck(ctx, surveyID, email)
	if err != nil {
		s.logger.Warn("submission check cache read failed", zap.String("survey_id", surveyID), zap.Error(err))
	}
	if cached != nil {
		metrics.SubmissionChecks.WithLabelValues("submitted", "cache").Inc()
		return cached, nil
	}

	check := &model.SubmissionCheck{}
	respondent, err := s.respondentRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if respondent != nil {
		existing, err := s.responseRepo.FindComplete(ctx, surveyID, respondent.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			submittedAt := existing.CreatedAt
			check = &model.SubmissionCheck{
				HasSubmitted:      true,
				ResponseID:        existing.ID,
				SubmittedAt:       &submittedAt,
				ViewSubmissionURL: s.ViewURL(existing.ID),
			}
		}
	}

	if check.HasSubmitted {
		metrics.SubmissionChecks.WithLabelValues("submitted", "store").Inc()
		if err := s.checks.SetCheck(ctx, surveyID, email, check); err != nil {
			s.logger.Warn("submission check cache write failed", zap.String("survey_id", surveyID), zap.Error(err))
		}
	} else {
		metrics.SubmissionChecks.WithLabelValues("clear", "store").Inc()
	}
	return check, nil
}

// GetSubmission assembles the read-only view of a stored response
func (s *ResponseService) GetSubmission(ctx context.Context, responseID string) (*model.Submission, error) {
	response, err := s.responseRepo.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, ErrResponseNotFound
	}

	sub := &model.Submission{
		ResponseID:  response.ID,
		Answers:     response.Answers,
		SubmittedAt: response.CreatedAt,
		CompletedAt: response.CompletedAt,
		IsComplete:  response.IsComplete,
	}
	if sub.Answers == nil {
		sub.Answers = map[string]model.Answer{}
	}

	survey, err := s.surveyRepo.GetByID(ctx, response.SurveyID)
	if err != nil {
		return nil, err
	}
	if survey != nil {
		sub.Survey = model.SubmissionSurvey{
			Title:       survey.Title,
			Description: survey.Description,
			Questions:   survey.Questions,
		}
	}

	if response.Respondent != nil {
		sub.Respondent = *response.Respondent
		return sub, nil
	}
	// responses stored before the snapshot existed
	respondent, err := s.respondentRepo.GetByID(ctx, response.RespondentID)
	if err != nil {
		return nil, err
	}
	if respondent != nil {
		sub.Respondent = model.RespondentInfo{
			FullName: respondent.FullName,
			Email:    respondent.Email,
			Phone:    respondent.Phone,
		}
	}
	return sub, nil
}

// Transcript rebuilds the conversation a respondent saw for a stored response
func (s *ResponseService) Transcript(ctx context.Context, responseID string) ([]chat.Message, error) {
	sub, err := s.GetSubmission(ctx, responseID)
	if err != nil {
		return nil, err
	}
	return chat.Reconstruct(*sub), nil
}

// List returns an author's survey responses, newest first
func (s *ResponseService) List(ctx context.Context, authorID, surveyID string, limit, offset int64) ([]model.ResponseListItem, error) {
	if _, err := s.surveys.Get(ctx, authorID, surveyID); err != nil {
		return nil, err
	}
	responses, err := s.responseRepo.ListBySurvey(ctx, surveyID, limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.RespondentID)
	}
	respondents, err := s.respondentRepo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]model.ResponseListItem, 0, len(responses))
	for _, r := range responses {
		item := model.ResponseListItem{
			ResponseID:  r.ID,
			Answers:     r.Answers,
			SubmittedAt: r.CreatedAt,
			IsComplete:  r.IsComplete,
		}
		if p := respondents[r.RespondentID]; p != nil {
			item.Respondent = model.RespondentInfo{FullName: p.FullName, Email: p.Email, Phone: p.Phone}
		}
		items = append(items, item)
	}
	return items, nil
}

func confirmationMessage(survey *model.Survey, respondent *model.Respondent, result *model.SubmitResult) mail.Message {
	var b strings.Builder
	name := respondent.FullName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Thank you for completing %q.\n", survey.Title)
	fmt.Fprintf(&b, "We received %d answers on %s.\n\n", result.AnswersCount, result.SubmittedAt.Format("January 2, 2006 at 15:04 MST"))
	fmt.Fprintf(&b, "You can review your submission here:\n%s\n", result.ViewSubmissionURL)
	return mail.Message{
		To:      respondent.Email,
		Subject: "Your response to " + survey.Title,
		Body:    b.String(),
	}
}

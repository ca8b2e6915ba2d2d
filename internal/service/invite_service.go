package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"surveychat/internal/mail"
	"surveychat/internal/metrics"
	"surveychat/internal/model"
	"surveychat/internal/validation"
)

const inviteConcurrency = 4

// InviteService mails survey links to a list of recipients
type InviteService struct {
	surveys     *SurveyService
	mailer      mail.Mailer
	frontendURL string
	logger      *zap.Logger
}

func NewInviteService(surveys *SurveyService, mailer mail.Mailer, frontendURL string, logger *zap.Logger) *InviteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InviteService{
		surveys:     surveys,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// Send invites every valid address. Invalid addresses and delivery failures
// are reported in the result rather than failing the call.
func (s *InviteService) Send(ctx context.Context, authorID, surveyID string, req *model.InviteRequest) (*model.InviteResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	survey, err := s.surveys.Get(ctx, authorID, surveyID)
	if err != nil {
		return nil, err
	}
	if survey.Status != model.SurveyPublished {
		return nil, ErrSurveyNotActive
	}

	link := req.SurveyURL
	if link == "" {
		link = fmt.Sprintf("%s/survey/%s", s.frontendURL, survey.ID)
	}

	valid, invalid := validation.SplitInviteEmails(req.Emails)
	result := &model.InviteResult{Sent: []string{}, InvalidEmails: invalid, Failed: []string{}}
	if result.InvalidEmails == nil {
		result.InvalidEmails = []string{}
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(inviteConcurrency)
	for _, to := range valid {
		to := to
		g.Go(func() error {
			err := s.mailer.Send(ctx, inviteMessage(survey, to, link, req.CustomMessage))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.Emails.WithLabelValues("invite", "failed").Inc()
				s.logger.Warn("invite not delivered", zap.String("to", to), zap.Error(err))
				result.Failed = append(result.Failed, to)
				return nil
			}
			metrics.Emails.WithLabelValues("invite", "sent").Inc()
			result.Sent = append(result.Sent, to)
			return nil
		})
	}
	g.Wait()

	s.logger.Info("survey invites processed",
		zap.String("survey_id", surveyID),
		zap.Int("sent", len(result.Sent)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("invalid", len(result.InvalidEmails)),
	)
	return result, nil
}

func inviteMessage(survey *model.Survey, to, link, custom string) mail.Message {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "You have been invited to take the survey %q.\n", survey.Title)
	if survey.Description != "" {
		b.WriteString("\n" + survey.Description + "\n")
	}
	if custom = strings.TrimSpace(custom); custom != "" {
		b.WriteString("\n" + custom + "\n")
	}
	fmt.Fprintf(&b, "\nStart here: %s\n", link)
	return mail.Message{
		To:      to,
		Subject: "You're invited: " + survey.Title,
		Body:    b.String(),
	}
}

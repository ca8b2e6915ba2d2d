package model

import "time"

// SurveyStatus is the publishing lifecycle of a survey
type SurveyStatus string

const (
	SurveyDraft     SurveyStatus = "draft"
	SurveyPublished SurveyStatus = "published"
	SurveyClosed    SurveyStatus = "closed"
)

// Survey is an authored questionnaire
type Survey struct {
	ID                     string                 `json:"oid" bson:"_id"`
	Title                  string                 `json:"title" bson:"title"`
	Description            string                 `json:"description" bson:"description"`
	Category               string                 `json:"category,omitempty" bson:"category,omitempty"`
	Status                 SurveyStatus           `json:"status" bson:"status"`
	AllowMultipleResponses bool                   `json:"allow_multiple_responses" bson:"allowMultipleResponses"`
	StartDate              *time.Time             `json:"start_date,omitempty" bson:"startDate,omitempty"`
	EndDate                *time.Time             `json:"end_date,omitempty" bson:"endDate,omitempty"`
	Questions              []Question             `json:"questions" bson:"questions"`
	Configs                map[string]interface{} `json:"configs,omitempty" bson:"configs,omitempty"`
	CreatedBy              string                 `json:"created_by" bson:"createdBy"`
	CreatedAt              time.Time              `json:"created_at" bson:"createdAt"`
	UpdatedAt              time.Time              `json:"updated_at" bson:"updatedAt"`
}

// IsActive reports whether the survey accepts responses at now
func (s *Survey) IsActive(now time.Time) bool {
	if s.Status != SurveyPublished {
		return false
	}
	if s.StartDate != nil && now.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && now.After(*s.EndDate) {
		return false
	}
	return true
}

// Question returns the survey question with the given answer key
func (s *Survey) Question(key string) (Question, bool) {
	for _, q := range s.Questions {
		if q.Key() == key {
			return q, true
		}
	}
	return Question{}, false
}

// PublicSurvey is what respondents see: no author metadata
type PublicSurvey struct {
	ID          string     `json:"oid"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// Public strips author-only fields
func (s *Survey) Public() *PublicSurvey {
	return &PublicSurvey{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Questions:   s.Questions,
		EndDate:     s.EndDate,
	}
}

// SurveyInput is the create/update body for authors
type SurveyInput struct {
	Title                  string                 `json:"title" validate:"required,min=3,max=200"`
	Description            string                 `json:"description" validate:"max=5000"`
	Category               string                 `json:"category" validate:"max=100"`
	AllowMultipleResponses bool                   `json:"allow_multiple_responses"`
	StartDate              *time.Time             `json:"start_date"`
	EndDate                *time.Time             `json:"end_date"`
	Questions              []Question             `json:"questions" validate:"required,min=1,dive"`
	Configs                map[string]interface{} `json:"configs"`
}

// SurveyListItem is the author dashboard row
type SurveyListItem struct {
	ID             string       `json:"oid"`
	Title          string       `json:"title"`
	Status         SurveyStatus `json:"status"`
	QuestionCount  int          `json:"question_count"`
	TotalResponses int64        `json:"total_responses"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PublishRequest switches a survey between draft and published
type PublishRequest struct {
	Action string `json:"action" validate:"required,oneof=publish unpublish close"`
}

// InviteRequest mails a survey link to a list of recipients
type InviteRequest struct {
	Emails        []string `json:"emails" validate:"required,min=1,max=500"`
	SurveyURL     string   `json:"survey_url" validate:"omitempty,url"`
	CustomMessage string   `json:"custom_message" validate:"max=2000"`
}

// InviteResult reports which recipients were mailed
type InviteResult struct {
	Sent          []string `json:"sent"`
	InvalidEmails []string `json:"invalid_emails"`
	Failed        []string `json:"failed"`
}

package model

import "time"

// Respondent-info answer keys, in the order they are asked
const (
	FieldFullName = "full_name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
)

// Respondent is a person who answered at least one survey, unique by email
type Respondent struct {
	ID        string    `json:"oid" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	FullName  string    `json:"full_name" bson:"fullName"`
	Phone     string    `json:"phone" bson:"phone"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

// RespondentInfo is the identity block collected before the survey questions
type RespondentInfo struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,respondent_email"`
	Phone    string `json:"phone" validate:"required,respondent_phone"`
}

// Get returns the value stored under a respondent-info field name
func (r RespondentInfo) Get(field string) string {
	switch field {
	case FieldFullName:
		return r.FullName
	case FieldEmail:
		return r.Email
	case FieldPhone:
		return r.Phone
	}
	return ""
}

// Set stores value under a respondent-info field name
func (r *RespondentInfo) Set(field, value string) {
	switch field {
	case FieldFullName:
		r.FullName = value
	case FieldEmail:
		r.Email = value
	case FieldPhone:
		r.Phone = value
	}
}

// SurveyResponse is one stored submission
type SurveyResponse struct {
	ID           string            `json:"oid" bson:"_id"`
	SurveyID     string            `json:"survey_id" bson:"surveyId"`
	RespondentID string            `json:"respondent_id" bson:"respondentId"`
	// Respondent is the identity as typed in this session; the Respondent
	// record holds the normalized, latest values.
	Respondent   *RespondentInfo   `json:"respondent_info,omitempty" bson:"respondentInfo,omitempty"`
	Answers      map[string]Answer `json:"answers" bson:"answers"`
	IsComplete   bool              `json:"is_complete" bson:"isComplete"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty" bson:"completedAt,omitempty"`
	CreatedAt    time.Time         `json:"submitted_at" bson:"createdAt"`
}

// SubmitRequest is the public submission body
type SubmitRequest struct {
	Responses      map[string]Answer `json:"responses"`
	RespondentInfo RespondentInfo    `json:"respondent_info"`
}

// SubmitResult is returned with 201 Created
type SubmitResult struct {
	ResponseID        string     `json:"response_id"`
	SurveyTitle       string     `json:"survey_title"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	AnswersCount      int        `json:"answers_count"`
	ViewSubmissionURL string     `json:"view_submission_url"`
	EmailQueued       bool       `json:"email_sent"`
}

// CheckSubmissionRequest asks whether an email already answered a survey
type CheckSubmissionRequest struct {
	Email string `json:"email" validate:"required,respondent_email"`
}

// SubmissionCheck answers CheckSubmissionRequest
type SubmissionCheck struct {
	HasSubmitted      bool       `json:"has_submitted"`
	ResponseID        string     `json:"response_id,omitempty"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	ViewSubmissionURL string     `json:"view_submission_url,omitempty"`
}

// ConflictInfo is the 409 payload for a duplicate submission
type ConflictInfo struct {
	AlreadySubmitted  bool      `json:"already_submitted"`
	ResponseID        string    `json:"response_id"`
	ViewSubmissionURL string    `json:"view_submission_url"`
	SubmittedAt       time.Time `json:"submitted_at"`
}

// SubmissionSurvey is the survey part of a submission view
type SubmissionSurvey struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Submission is the read-only view of a stored response
type Submission struct {
	ResponseID  string            `json:"response_id"`
	Survey      SubmissionSurvey  `json:"survey"`
	Respondent  RespondentInfo    `json:"respondent"`
	Answers     map[string]Answer `json:"answers"`
	SubmittedAt time.Time         `json:"submitted_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	IsComplete  bool              `json:"is_complete"`
}

// ResponseListItem is one row of the author responses listing
type ResponseListItem struct {
	ResponseID  string            `json:"response_id"`
	Respondent  RespondentInfo    `json:"respondent"`
	Answers     map[string]Answer `json:"answers"`
	SubmittedAt time.Time         `json:"submitted_at"`
	IsComplete  bool              `json:"is_complete"`
}

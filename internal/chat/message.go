package chat

import (
	"fmt"
	"strings"
	"time"

	"surveychat/internal/model"
)

// Author of a transcript message
type Author string

const (
	AuthorSystem     Author = "system"
	AuthorRespondent Author = "respondent"
)

// Annotation marks how a system message should be rendered
type Annotation string

const (
	AnnotationNone    Annotation = ""
	AnnotationSuccess Annotation = "success"
	AnnotationError   Annotation = "error"
	AnnotationInfo    Annotation = "info"
)

// Message is one transcript entry. Question is set on system messages that
// present a question.
type Message struct {
	ID         int             `json:"id"`
	Author     Author          `json:"author"`
	Text       string          `json:"text"`
	Timestamp  time.Time       `json:"timestamp"`
	Question   *model.Question `json:"question,omitempty"`
	Annotation Annotation      `json:"annotation,omitempty"`
}

// Phase of a conversation. Phases only move forward.
type Phase int

const (
	PhaseRespondentInfo Phase = iota
	PhaseSurveyAnswers
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseRespondentInfo:
		return "collecting_respondent_info"
	case PhaseSurveyAnswers:
		return "collecting_survey_answers"
	case PhaseComplete:
		return "complete"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Outcome of SubmitAnswer or Submit
type Outcome int

const (
	// OutcomeIgnored means the call had no effect (busy, finished or halted)
	OutcomeIgnored Outcome = iota
	// OutcomeAccepted means the answer was recorded or the submission succeeded
	OutcomeAccepted
	// OutcomeRejected means validation failed or the submission did not go through
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	}
	return "ignored"
}

// Conversation copy
const (
	DefaultIntro          = "Before we start with the survey questions, I need to collect some basic information."
	TransitionText        = "Great! Now let's continue with the survey questions."
	InfoOnlyCompleteText  = "Thank you for providing your information! Your response is being submitted..."
	SurveyCompleteText    = "Thank you for completing the survey! Your responses are being submitted..."
	SubmitSuccessText     = "Your responses have been submitted successfully! Redirecting you to view your submission..."
	SubmitConflictText    = "You have already submitted a response to this survey. Redirecting you to view your previous submission..."
	SubmitFailureText     = "There was an error submitting your responses. Please try again."
	NoOptionsSelectedText = "No options selected"
	NoAnswerText          = "No answer provided"
)

// WelcomeText is the first message of every conversation
func WelcomeText(title string) string {
	return "Welcome to \"" + title + "\"!"
}

// IntroText is the second welcome message
func IntroText(description string) string {
	if strings.TrimSpace(description) == "" {
		return DefaultIntro
	}
	return description
}

// PriorSubmissionText is shown when the email check finds an earlier response
func PriorSubmissionText(submittedAt *time.Time) string {
	if submittedAt == nil || submittedAt.IsZero() {
		return "It looks like you've already submitted a response to this survey. Redirecting you to view your submission..."
	}
	return fmt.Sprintf("It looks like you've already submitted a response to this survey on %s. Redirecting you to view your submission...",
		submittedAt.Format("January 2, 2006"))
}

// SubmissionViewPath is the fallback view location for a response id
func SubmissionViewPath(responseID string) string {
	return "/submission/" + responseID + "/view"
}

// respondentInfoQuestions are asked before any survey question, in this order.
var respondentInfoQuestions = []model.Question{
	{ID: model.FieldFullName, Kind: model.KindShortText, Label: "What is your full name?", Required: true},
	{ID: model.FieldEmail, Kind: model.KindEmail, Label: "What is your email address?", Required: true},
	{ID: model.FieldPhone, Kind: model.KindPhone, Label: "What is your phone number?", Required: true},
}

// RespondentInfoQuestions returns a copy of the fixed identity questions
func RespondentInfoQuestions() []model.Question {
	out := make([]model.Question, len(respondentInfoQuestions))
	copy(out, respondentInfoQuestions)
	return out
}

// FormatAnswer renders an answer the way the respondent sees it echoed back.
// Choice values are shown by their option label.
func FormatAnswer(q model.Question, a model.Answer) string {
	if q.Kind == model.KindMultiChoice || a.Multi {
		if len(a.Choices) == 0 && strings.TrimSpace(a.Text) == "" {
			if q.Kind == model.KindMultiChoice {
				return NoOptionsSelectedText
			}
			return NoAnswerText
		}
		values := a.Choices
		if !a.Multi {
			values = []string{a.Text}
		}
		labels := make([]string, len(values))
		for i, v := range values {
			labels[i] = optionLabel(q, v)
		}
		return strings.Join(labels, ", ")
	}
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return NoAnswerText
	}
	if q.Kind.IsChoice() {
		return optionLabel(q, text)
	}
	return text
}

func optionLabel(q model.Question, value string) string {
	for _, o := range q.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

package service

import (
	"errors"
	"fmt"

	"surveychat/internal/model"
	"surveychat/internal/validation"
)

var (
	ErrSurveyNotFound     = errors.New("survey not found")
	ErrSurveyNotActive    = errors.New("This survey is not currently active.")
	ErrForbidden          = errors.New("survey belongs to another author")
	ErrNoQuestions        = errors.New("cannot publish a survey without questions")
	ErrSurveyHasResponses = errors.New("cannot delete a published survey that has responses")
	ErrResponseNotFound   = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("You have already submitted a response to this survey.")
)

// ConflictError is returned when a respondent already completed a survey
// that does not allow multiple responses.
type ConflictError struct {
	Info model.ConflictInfo
}

func (e *ConflictError) Error() string {
	return ErrAlreadySubmitted.Error()
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrAlreadySubmitted
}

// AnswerError reports the first answer that failed validation
type AnswerError struct {
	Key     string
	Reason  validation.Reason
	Message string
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

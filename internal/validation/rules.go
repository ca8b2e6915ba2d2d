package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"surveychat/internal/model"
)

// Reason identifies why an answer was rejected
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonRequired       Reason = "required"
	ReasonEmptySelection Reason = "empty_selection"
	ReasonBadEmail       Reason = "bad_email"
	ReasonBadPhone       Reason = "bad_phone"
	ReasonUnknownOption  Reason = "unknown_option"
	ReasonOutOfRange     Reason = "out_of_range"
)

// Result of validating one answer
type Result struct {
	Reason Reason
}

// OK reports whether the answer was accepted
func (r Result) OK() bool { return r.Reason == ReasonNone }

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[0-9]{1,16}$`)
	phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// IsEmail applies the respondent email rule to a trimmed value
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsPhone applies the respondent phone rule after stripping separators
func IsPhone(s string) bool {
	return phonePattern.MatchString(phoneStripper.Replace(s))
}

// Validate applies the answer rules in order: required, email, phone.
// It never panics and has no side effects.
func Validate(q model.Question, a model.Answer) Result {
	if q.Kind == model.KindMultiChoice && a.Multi {
		if q.Required && len(a.Choices) == 0 {
			return Result{Reason: ReasonEmptySelection}
		}
		return Result{}
	}

	value := a.String()
	empty := strings.TrimSpace(value) == ""
	if empty {
		if q.Required {
			if q.Kind == model.KindMultiChoice {
				return Result{Reason: ReasonEmptySelection}
			}
			return Result{Reason: ReasonRequired}
		}
		return Result{}
	}

	switch q.Kind {
	case model.KindEmail:
		if !IsEmail(value) {
			return Result{Reason: ReasonBadEmail}
		}
	case model.KindPhone:
		if !IsPhone(value) {
			return Result{Reason: ReasonBadPhone}
		}
	}
	return Result{}
}

// ValidateStored is Validate plus the checks a stored response must also
// pass: chosen values exist among the options and ratings fall in the scale.
func ValidateStored(q model.Question, a model.Answer) Result {
	if r := Validate(q, a); !r.OK() || a.IsEmpty() {
		return r
	}
	switch {
	case q.Kind.IsChoice() && len(q.Options) > 0:
		values := a.Choices
		if !a.Multi {
			values = []string{a.Text}
		}
		for _, v := range values {
			if !q.HasOption(v) {
				return Result{Reason: ReasonUnknownOption}
			}
		}
	case q.Kind == model.KindRating:
		n, err := strconv.Atoi(strings.TrimSpace(a.Text))
		if err != nil || n < 1 || n > q.EffectiveScale() {
			return Result{Reason: ReasonOutOfRange}
		}
	}
	return Result{}
}

// Message is the text shown to a respondent for a rejected answer
func Message(q model.Question, reason Reason) string {
	switch reason {
	case ReasonBadEmail:
		return "Please enter a valid email address (e.g., example@email.com)"
	case ReasonBadPhone:
		return "Please enter a valid phone number"
	case ReasonUnknownOption:
		return "Please choose one of the available options"
	case ReasonOutOfRange:
		return fmt.Sprintf("Please pick a rating between 1 and %d", q.EffectiveScale())
	case ReasonNone:
		return ""
	}
	return strings.TrimSuffix(strings.TrimSpace(q.Label), "?") + " is required. Please provide an answer."
}

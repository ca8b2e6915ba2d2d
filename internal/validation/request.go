package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"surveychat/internal/model"
)

// inviteEmailPattern is stricter than the respondent rule: invites require a
// real-looking TLD.
var inviteEmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var allowedScales = map[int]bool{3: true, 5: true, 7: true, 10: true}

// requestValidate is shared by every request type; custom tags are
// registered once in init.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	requestValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = requestValidate.RegisterValidation("respondent_email", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	_ = requestValidate.RegisterValidation("respondent_phone", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
	requestValidate.RegisterStructValidation(validateQuestion, model.Question{})
}

// FieldError describes the first invalid field of a request
type FieldError struct {
	Field string
	Rule  string
}

func (e *FieldError) Error() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "respondent_email", "email":
		return "Please enter a valid email address"
	case "respondent_phone":
		return "Please enter a valid phone number"
	}
	return fmt.Sprintf("%s is invalid (%s)", e.Field, e.Rule)
}

// Struct validates a request body against its validate tags and returns a
// *FieldError for the first failing field.
func Struct(v interface{}) error {
	err := requestValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return &FieldError{Field: field, Rule: fe.Tag()}
	}
	return err
}

// validateQuestion enforces survey-definition rules on authored questions.
func validateQuestion(sl validator.StructLevel) {
	q := sl.Current().Interface().(model.Question)
	if strings.TrimSpace(q.Label) == "" {
		sl.ReportError(q.Label, "label", "Label", "required", "")
	}
	if !q.Kind.Valid() {
		sl.ReportError(q.Kind, "kind", "Kind", "kind", string(q.Kind))
		return
	}
	if q.Kind.IsChoice() && len(q.Options) == 0 {
		sl.ReportError(q.Options, "options", "Options", "required", "")
	}
	if q.Kind == model.KindRating && q.Scale != 0 && !allowedScales[q.Scale] {
		sl.ReportError(q.Scale, "scale", "Scale", "oneof", "3 5 7 10")
	}
}

// SplitInviteEmails separates well-formed invite addresses from the rest,
// dropping blanks and duplicates.
func SplitInviteEmails(emails []string) (valid, invalid []string) {
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" || seen[strings.ToLower(e)] {
			continue
		}
		seen[strings.ToLower(e)] = true
		if inviteEmailPattern.MatchString(e) {
			valid = append(valid, e)
		} else {
			invalid = append(invalid, e)
		}
	}
	return valid, invalid
}

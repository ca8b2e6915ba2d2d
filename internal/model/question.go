package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionKind is the answer-input type of a question
type QuestionKind string

const (
	KindShortText    QuestionKind = "short-text"
	KindLongText     QuestionKind = "long-text"
	KindNumber       QuestionKind = "number"
	KindEmail        QuestionKind = "email"
	KindPhone        QuestionKind = "phone"
	KindDate         QuestionKind = "date"
	KindSingleChoice QuestionKind = "single-choice"
	KindMultiChoice  QuestionKind = "multi-choice"
	KindDropdown     QuestionKind = "dropdown"
	KindRating       QuestionKind = "rating"
)

// DefaultRatingScale is used when a rating question has no scale
const DefaultRatingScale = 5

// legacyKinds maps the builder's original type names onto canonical kinds.
var legacyKinds = map[string]QuestionKind{
	"text":     KindShortText,
	"textarea": KindLongText,
	"radio":    KindSingleChoice,
	"checkbox": KindMultiChoice,
}

// ParseKind folds a raw kind spelling (canonical or legacy) into a QuestionKind.
// Unknown spellings are returned as-is so validation can reject them.
func ParseKind(raw string) QuestionKind {
	s := strings.ToLower(strings.TrimSpace(raw))
	if k, ok := legacyKinds[s]; ok {
		return k
	}
	return QuestionKind(s)
}

// Valid reports whether k is one of the canonical kinds
func (k QuestionKind) Valid() bool {
	switch k {
	case KindShortText, KindLongText, KindNumber, KindEmail, KindPhone, KindDate,
		KindSingleChoice, KindMultiChoice, KindDropdown, KindRating:
		return true
	}
	return false
}

// IsChoice reports whether answers pick from Options
func (k QuestionKind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiChoice || k == KindDropdown
}

// Option is one selectable choice of a choice-kind question
type Option struct {
	Value string `json:"value" bson:"value"`
	Label string `json:"label" bson:"label"`
}

// UnmarshalJSON accepts either {"value","label"} or a bare string.
func (o *Option) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Value, o.Label = s, s
		return nil
	}
	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Label == "" {
		p.Label = p.Value
	}
	if p.Value == "" {
		p.Value = p.Label
	}
	*o = Option(p)
	return nil
}

// Question is one prompt in a survey or a synthesized respondent-info prompt
type Question struct {
	ID       string       `json:"id" bson:"id"`
	Kind     QuestionKind `json:"kind" bson:"kind"`
	Label    string       `json:"label" bson:"label"`
	Required bool         `json:"required" bson:"required"`
	Options  []Option     `json:"options,omitempty" bson:"options,omitempty"`
	Scale    int          `json:"scale,omitempty" bson:"scale,omitempty"`
	Order    int          `json:"order,omitempty" bson:"order,omitempty"`
}

// rawQuestion is the ingestion shape: every spelling the builder ever produced.
type rawQuestion struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Type         string   `json:"type"`
	QuestionType string   `json:"question_type"`
	Label        string   `json:"label"`
	Question     string   `json:"question"`
	QuestionText string   `json:"question_text"`
	Required     bool     `json:"required"`
	Options      []Option `json:"options"`
	Scale        int      `json:"scale"`
	Order        int      `json:"order"`
}

// UnmarshalJSON normalizes legacy field names so nothing past ingestion
// ever sees "type" vs "kind".
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw rawQuestion
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = Question{
		ID:       raw.ID,
		Kind:     EffectiveKind(raw.Kind, raw.Type, raw.QuestionType),
		Label:    firstNonEmpty(raw.Label, raw.Question, raw.QuestionText),
		Required: raw.Required,
		Options:  raw.Options,
		Scale:    raw.Scale,
		Order:    raw.Order,
	}
	if q.Kind == KindRating && q.Scale == 0 {
		q.Scale = DefaultRatingScale
	}
	return nil
}

// EffectiveKind resolves the kind from the current field, falling back to the
// legacy spellings in order.
func EffectiveKind(kind string, legacy ...string) QuestionKind {
	return ParseKind(firstNonEmpty(append([]string{kind}, legacy...)...))
}

// Key is the answer key for a survey question: question_<order>
func (q *Question) Key() string {
	return fmt.Sprintf("question_%d", q.Order)
}

// EffectiveScale returns the rating upper bound
func (q *Question) EffectiveScale() int {
	if q.Scale <= 0 {
		return DefaultRatingScale
	}
	return q.Scale
}

// HasOption reports whether value matches an option value or label
func (q *Question) HasOption(value string) bool {
	for _, o := range q.Options {
		if o.Value == value || o.Label == value {
			return true
		}
	}
	return false
}

// NormalizeQuestions fills order and id defaults from list position and the
// rating scale default. The input slice is modified in place.
func NormalizeQuestions(qs []Question) []Question {
	for i := range qs {
		if qs[i].Order <= 0 {
			qs[i].Order = i + 1
		}
		if qs[i].ID == "" {
			qs[i].ID = qs[i].Key()
		}
		if qs[i].Kind == KindRating && qs[i].Scale == 0 {
			qs[i].Scale = DefaultRatingScale
		}
	}
	return qs
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"surveychat/internal/model"
	"surveychat/internal/validation"
)

type seedFile struct {
	Surveys []seedSurvey `yaml:"surveys"`
}

type seedSurvey struct {
	Title                  string         `yaml:"title"`
	Description            string         `yaml:"description"`
	Category               string         `yaml:"category"`
	Status                 string         `yaml:"status"`
	AllowMultipleResponses bool           `yaml:"allow_multiple_responses"`
	Questions              []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	Label    string       `yaml:"label"`
	Kind     string       `yaml:"kind"`
	Required bool         `yaml:"required"`
	Scale    int          `yaml:"scale"`
	Options  []seedOption `yaml:"options"`
}

// seedOption is either a bare label or a {value, label} mapping
type seedOption model.Option

func (o *seedOption) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Value, o.Label = node.Value, node.Value
		return nil
	}
	var m struct {
		Value string `yaml:"value"`
		Label string `yaml:"label"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	o.Value, o.Label = m.Value, m.Label
	if o.Label == "" {
		o.Label = o.Value
	}
	if o.Value == "" {
		o.Value = o.Label
	}
	return nil
}

// parseSeed decodes and validates a seed file the same way the API
// validates authored surveys.
func parseSeed(data []byte) ([]seedSurvey, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(f.Surveys) == 0 {
		return nil, fmt.Errorf("seed has no surveys")
	}
	for i, s := range f.Surveys {
		input := s.input()
		if err := validation.Struct(&input); err != nil {
			return nil, fmt.Errorf("survey %d (%q): %w", i+1, s.Title, err)
		}
		switch model.SurveyStatus(s.Status) {
		case "", model.SurveyDraft, model.SurveyPublished, model.SurveyClosed:
		default:
			return nil, fmt.Errorf("survey %d (%q): unknown status %q", i+1, s.Title, s.Status)
		}
	}
	return f.Surveys, nil
}

func (s seedSurvey) input() model.SurveyInput {
	qs := make([]model.Question, len(s.Questions))
	for i, q := range s.Questions {
		qs[i] = model.Question{
			Kind:     model.ParseKind(q.Kind),
			Label:    q.Label,
			Required: q.Required,
			Scale:    q.Scale,
		}
		for _, o := range q.Options {
			qs[i].Options = append(qs[i].Options, model.Option(o))
		}
	}
	return model.SurveyInput{
		Title:                  s.Title,
		Description:            s.Description,
		Category:               s.Category,
		AllowMultipleResponses: s.AllowMultipleResponses,
		Questions:              qs,
	}
}

func (s seedSurvey) survey(authorID string) *model.Survey {
	in := s.input()
	status := model.SurveyStatus(s.Status)
	if status == "" {
		status = model.SurveyDraft
	}
	return &model.Survey{
		Title:                  in.Title,
		Description:            in.Description,
		Category:               in.Category,
		Status:                 status,
		AllowMultipleResponses: in.AllowMultipleResponses,
		Questions:              model.NormalizeQuestions(in.Questions),
		CreatedBy:              authorID,
	}
}

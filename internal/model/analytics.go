package model

import "time"

// SurveySummary is the aggregated author view of a survey's responses
type SurveySummary struct {
	SurveyID       string            `json:"survey_id"`
	Title          string            `json:"title"`
	TotalResponses int64             `json:"total_responses"`
	Questions      []QuestionSummary `json:"questions"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// QuestionSummary aggregates the answers to one question
type QuestionSummary struct {
	Key          string        `json:"key"`
	Label        string        `json:"label"`
	Kind         QuestionKind  `json:"kind"`
	AnswerCount  int64         `json:"answer_count"`
	OptionCounts []OptionCount `json:"option_counts,omitempty"`
	RatingHist   map[int]int64 `json:"rating_hist,omitempty"`
	RatingAvg    float64       `json:"rating_avg,omitempty"`
	TopAnswers   []AnswerCount `json:"top_answers,omitempty"`
}

// OptionCount is one option's tally, ordered as the options are
type OptionCount struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// AnswerCount is a free-form answer value with its frequency
type AnswerCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Live events pushed to author websockets
const (
	EventResponseSubmitted   = "response_submitted"
	EventSurveyStatusChanged = "survey_status_changed"
)

// SurveyEvent is the websocket envelope
type SurveyEvent struct {
	Type     string      `json:"type"`
	SurveyID string      `json:"survey_id"`
	Payload  interface{} `json:"payload,omitempty"`
	At       time.Time   `json:"at"`
}

package chat

import (
	"surveychat/internal/model"
)

// Reconstruct rebuilds the transcript of a finished conversation from a stored
// submission. For a clean run (no rejected answers) it pairs system and
// respondent messages exactly as the live conversation did.
func Reconstruct(sub model.Submission) []Message {
	var msgs []Message
	add := func(author Author, text string, q *model.Question, ann Annotation) {
		msgs = append(msgs, Message{
			ID:         len(msgs) + 1,
			Author:     author,
			Text:       text,
			Timestamp:  sub.SubmittedAt,
			Question:   q,
			Annotation: ann,
		})
	}

	add(AuthorSystem, WelcomeText(sub.Survey.Title), nil, AnnotationNone)
	add(AuthorSystem, IntroText(sub.Survey.Description), nil, AnnotationNone)

	for _, q := range RespondentInfoQuestions() {
		q := q
		add(AuthorSystem, q.Label, &q, AnnotationNone)
		add(AuthorRespondent, FormatAnswer(q, model.TextAnswer(sub.Respondent.Get(q.ID))), nil, AnnotationNone)
	}

	questions := make([]model.Question, len(sub.Survey.Questions))
	copy(questions, sub.Survey.Questions)
	questions = model.NormalizeQuestions(questions)

	if len(questions) > 0 {
		add(AuthorSystem, TransitionText, nil, AnnotationNone)
	}
	for _, q := range questions {
		q := q
		add(AuthorSystem, q.Label, &q, AnnotationNone)
		add(AuthorRespondent, FormatAnswer(q, sub.Answers[q.Key()]), nil, AnnotationNone)
	}

	if len(questions) == 0 {
		add(AuthorSystem, InfoOnlyCompleteText, nil, AnnotationNone)
	} else {
		add(AuthorSystem, SurveyCompleteText, nil, AnnotationNone)
	}
	if sub.IsComplete {
		add(AuthorSystem, SubmitSuccessText, nil, AnnotationSuccess)
	}
	return msgs
}

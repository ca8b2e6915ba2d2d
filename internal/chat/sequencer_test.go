package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveychat/internal/gateway"
	"surveychat/internal/model"
)

type fakeGateway struct {
	mu       sync.Mutex
	submits  []model.SubmitRequest
	checks   []string
	submitFn func(ctx context.Context) (*model.SubmitResult, error)
	check    *model.SubmissionCheck
	checkErr error
}

func (g *fakeGateway) SubmitResponse(ctx context.Context, surveyID string, req model.SubmitRequest) (*model.SubmitResult, error) {
	g.mu.Lock()
	g.submits = append(g.submits, req)
	fn := g.submitFn
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return &model.SubmitResult{ResponseID: "r-1"}, nil
}

func (g *fakeGateway) CheckSubmission(ctx context.Context, surveyID, email string) (*model.SubmissionCheck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks = append(g.checks, email)
	if g.checkErr != nil {
		return nil, g.checkErr
	}
	if g.check != nil {
		return g.check, nil
	}
	return &model.SubmissionCheck{}, nil
}

func (g *fakeGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

type recordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNavigator) Navigate(url string) {
	n.mu.Lock()
	n.urls = append(n.urls, url)
	n.mu.Unlock()
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

func teamQuestions() []model.Question {
	return []model.Question{
		{Kind: model.KindShortText, Label: "Which team are you on?", Required: true, Order: 1},
		{Kind: model.KindMultiChoice, Label: "Which departments do you work with?", Required: true, Order: 2,
			Options: []model.Option{{Value: "Sales", Label: "Sales"}, {Value: "HR", Label: "HR"}, {Value: "Ops", Label: "Ops"}}},
	}
}

func infoAnswers() []model.Answer {
	return []model.Answer{
		model.TextAnswer("Ada Lovelace"),
		model.TextAnswer("ada@example.com"),
		model.TextAnswer("+1 (555) 123-4567"),
	}
}

func newTestSequencer(g Gateway, nav Navigator, sched Scheduler) *Sequencer {
	return NewSequencer(Options{Gateway: g, Navigator: nav, Scheduler: sched})
}

func texts(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func countText(msgs []Message, text string) int {
	n := 0
	for _, m := range msgs {
		if m.Text == text {
			n++
		}
	}
	return n
}

func TestFullConversation(t *testing.T) {
	gw := &fakeGateway{submitFn: func(context.Context) (*model.SubmitResult, error) {
		return &model.SubmitResult{ResponseID: "r-1", ViewSubmissionURL: "/submission/r-1/view"}, nil
	}}
	nav := &recordingNavigator{}
	s := newTestSequencer(gw, nav, ImmediateScheduler{})
	ctx := context.Background()

	s.Initialize("s1", "Team survey", "A short check-in.", teamQuestions())

	answers := append(infoAnswers(), model.TextAnswer("Platform"), model.ChoicesAnswer("Sales", "HR"))
	accepted := 0
	for _, a := range answers {
		require.NotNil(t, s.CurrentQuestion())
		if s.SubmitAnswer(ctx, a) == OutcomeAccepted {
			accepted++
		}
	}

	assert.Equal(t, len(teamQuestions())+3, accepted)
	assert.Equal(t, PhaseComplete, s.Phase())
	assert.True(t, s.Submitted())
	assert.Nil(t, s.CurrentQuestion())

	assert.Equal(t, []string{
		`Welcome to "Team survey"!`,
		"A short check-in.",
		"What is your full name?",
		"Ada Lovelace",
		"What is your email address?",
		"ada@example.com",
		"What is your phone number?",
		"+1 (555) 123-4567",
		TransitionText,
		"Which team are you on?",
		"Platform",
		"Which departments do you work with?",
		"Sales, HR",
		SurveyCompleteText,
		SubmitSuccessText,
	}, texts(s.Transcript()))

	transcript := s.Transcript()
	assert.Equal(t, AnnotationSuccess, transcript[len(transcript)-1].Annotation)
	require.NotNil(t, transcript[2].Question)
	assert.Equal(t, model.FieldFullName, transcript[2].Question.ID)

	require.Len(t, gw.submits, 1)
	req := gw.submits[0]
	assert.Equal(t, model.RespondentInfo{FullName: "Ada Lovelace", Email: "ada@example.com", Phone: "+1 (555) 123-4567"}, req.RespondentInfo)
	assert.Equal(t, map[string]model.Answer{
		"question_1": model.TextAnswer("Platform"),
		"question_2": model.ChoicesAnswer("Sales", "HR"),
	}, req.Responses)
	assert.Equal(t, []string{"ada@example.com"}, gw.checks)
	assert.Equal(t, []string{"/submission/r-1/view"}, nav.visited())
}

func TestEmptyRequiredAnswerDoesNotAdvance(t *testing.T) {
	s := newTestSequencer(&fakeGateway{}, nil, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())

	before := s.State()
	assert.Equal(t, OutcomeRejected, s.SubmitAnswer(ctx, model.TextAnswer("   ")))
	after := s.State()

	assert.Equal(t, before.Cursor, after.Cursor)
	assert.Equal(t, PhaseRespondentInfo, after.Phase)
	for _, m := range after.Transcript {
		assert.NotEqual(t, AuthorRespondent, m.Author)
	}
	last := after.Transcript[len(after.Transcript)-1]
	assert.Equal(t, "What is your full name is required. Please provide an answer.", last.Text)
	assert.Equal(t, AnnotationError, last.Annotation)
}

func TestEmailValidationOnInfoQuestion(t *testing.T) {
	s := newTestSequencer(&fakeGateway{}, nil, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())

	require.Equal(t, OutcomeAccepted, s.SubmitAnswer(ctx, model.TextAnswer("Ada")))
	assert.Equal(t, OutcomeRejected, s.SubmitAnswer(ctx, model.TextAnswer("not-an-email")))
	assert.Equal(t, "Please enter a valid email address (e.g., example@email.com)", lastText(s))
	assert.Equal(t, model.FieldEmail, s.CurrentQuestion().ID)

	assert.Equal(t, OutcomeAccepted, s.SubmitAnswer(ctx, model.TextAnswer("user@example.com")))
	assert.Equal(t, model.FieldPhone, s.CurrentQuestion().ID)

	assert.Equal(t, OutcomeRejected, s.SubmitAnswer(ctx, model.TextAnswer("abc")))
	assert.Equal(t, "Please enter a valid phone number", lastText(s))
}

func lastText(s *Sequencer) string {
	tr := s.Transcript()
	return tr[len(tr)-1].Text
}

func TestRequiredMultiChoiceEmptySelection(t *testing.T) {
	s := newTestSequencer(&fakeGateway{}, nil, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())
	for _, a := range append(infoAnswers(), model.TextAnswer("Platform")) {
		require.Equal(t, OutcomeAccepted, s.SubmitAnswer(ctx, a))
	}

	assert.Equal(t, OutcomeRejected, s.SubmitAnswer(ctx, model.ChoicesAnswer()))
	assert.Equal(t, 0, countText(s.Transcript(), NoOptionsSelectedText))
	assert.Equal(t, "question_2", s.CurrentQuestion().Key())
}

func TestInitializeIsIdempotent(t *testing.T) {
	sched := NewManualScheduler()
	s := newTestSequencer(&fakeGateway{}, nil, sched)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Initialize("s1", "T", "", teamQuestions())
		}()
	}
	wg.Wait()
	s.Initialize("s1", "T", "", teamQuestions())

	assert.Len(t, s.Transcript(), 2)
	assert.Equal(t, 1, sched.Pending())

	sched.RunAll()
	assert.Len(t, s.Transcript(), 3)
	assert.Equal(t, 1, countText(s.Transcript(), "What is your full name?"))
}

func TestInitializeNewSurveyStartsOver(t *testing.T) {
	sched := NewManualScheduler()
	s := newTestSequencer(&fakeGateway{}, nil, sched)

	s.Initialize("s1", "First", "", teamQuestions())
	s.Initialize("s2", "Second", "", nil)
	sched.RunAll()

	assert.Equal(t, []string{`Welcome to "Second"!`, DefaultIntro, "What is your full name?"}, texts(s.Transcript()))
	assert.Equal(t, "s2", s.State().SurveyID)
}

func TestZeroQuestionSurveySubmitsWithoutTransition(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSequencer(gw, nil, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "Sign-up", "", nil)

	for _, a := range infoAnswers() {
		require.Equal(t, OutcomeAccepted, s.SubmitAnswer(ctx, a))
	}

	tr := s.Transcript()
	assert.Equal(t, 0, countText(tr, TransitionText))
	assert.Equal(t, 1, countText(tr, InfoOnlyCompleteText))
	assert.Equal(t, 1, gw.submitCount())
	assert.Empty(t, gw.submits[0].Responses)
	assert.Equal(t, PhaseComplete, s.Phase())
	assert.Equal(t, SubmissionViewPath("r-1"), s.State().RedirectURL)
}

func TestSubmitConflictRedirectsOnce(t *testing.T) {
	gw := &fakeGateway{submitFn: func(context.Context) (*model.SubmitResult, error) {
		return nil, &gateway.ConflictError{Info: model.ConflictInfo{
			AlreadySubmitted: true, ResponseID: "r-old", ViewSubmissionURL: "/submission/r-old/view",
		}}
	}}
	nav := &recordingNavigator{}
	s := newTestSequencer(gw, nav, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())

	for _, a := range append(infoAnswers(), model.TextAnswer("Platform"), model.ChoicesAnswer("Ops")) {
		s.SubmitAnswer(ctx, a)
	}

	tr := s.Transcript()
	assert.Equal(t, 1, countText(tr, SubmitConflictText))
	assert.Equal(t, 0, countText(tr, SubmitSuccessText))
	assert.Equal(t, AnnotationInfo, tr[len(tr)-1].Annotation)
	assert.Equal(t, []string{"/submission/r-old/view"}, nav.visited())
	assert.True(t, s.Halted())
	assert.False(t, s.Submitted())

	assert.Equal(t, OutcomeIgnored, s.Submit(ctx))
	assert.Equal(t, 1, gw.submitCount())
}

func TestSubmitConflictWithoutLinkHalts(t *testing.T) {
	gw := &fakeGateway{submitFn: func(context.Context) (*model.SubmitResult, error) {
		return nil, &gateway.ConflictError{Info: model.ConflictInfo{AlreadySubmitted: true}}
	}}
	nav := &recordingNavigator{}
	s := newTestSequencer(gw, nav, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())

	for _, a := range append(infoAnswers(), model.TextAnswer("Platform"), model.ChoicesAnswer("Ops")) {
		s.SubmitAnswer(ctx, a)
	}

	tr := s.Transcript()
	assert.Equal(t, SubmitConflictText, tr[len(tr)-1].Text)
	assert.Equal(t, AnnotationInfo, tr[len(tr)-1].Annotation)
	assert.Equal(t, 0, countText(tr, SubmitFailureText))
	assert.Empty(t, nav.visited())
	assert.Empty(t, s.State().RedirectURL)
	assert.True(t, s.Halted())

	assert.Equal(t, OutcomeIgnored, s.Submit(ctx))
	assert.Equal(t, 1, gw.submitCount())
}

func TestSubmitFailureIsRetryable(t *testing.T) {
	fail := true
	gw := &fakeGateway{}
	gw.submitFn = func(context.Context) (*model.SubmitResult, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return &model.SubmitResult{ResponseID: "r-2"}, nil
	}
	s := newTestSequencer(gw, nil, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())
	for _, a := range append(infoAnswers(), model.TextAnswer("Platform"), model.ChoicesAnswer("Ops")) {
		s.SubmitAnswer(ctx, a)
	}

	st := s.State()
	assert.False(t, st.Submitting)
	assert.False(t, st.Submitted)
	assert.Equal(t, PhaseSurveyAnswers, st.Phase)
	assert.Equal(t, 2, st.Cursor)
	assert.Equal(t, SubmitFailureText, lastText(s))
	assert.Equal(t, OutcomeIgnored, s.SubmitAnswer(ctx, model.TextAnswer("more")))

	fail = false
	assert.Equal(t, OutcomeAccepted, s.Submit(ctx))
	assert.Equal(t, PhaseComplete, s.Phase())
	assert.Equal(t, 2, gw.submitCount())
	assert.Equal(t, 1, countText(s.Transcript(), SurveyCompleteText))
	assert.Equal(t, SubmissionViewPath("r-2"), s.State().RedirectURL)
}

func TestSubmitTimeoutIsOrdinaryFailure(t *testing.T) {
	gw := &fakeGateway{submitFn: func(ctx context.Context) (*model.SubmitResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := NewSequencer(Options{Gateway: gw, Timing: Timing{SubmitTimeout: 10 * time.Millisecond}})
	ctx := context.Background()
	s.Initialize("s1", "T", "", nil)
	for _, a := range infoAnswers() {
		s.SubmitAnswer(ctx, a)
	}

	assert.Equal(t, SubmitFailureText, lastText(s))
	assert.False(t, s.Submitting())
	assert.False(t, s.Submitted())
}

func TestAnswersIgnoredWhileSubmitting(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{submitFn: func(context.Context) (*model.SubmitResult, error) {
		<-release
		return &model.SubmitResult{ResponseID: "r-3"}, nil
	}}
	s := newTestSequencer(gw, nil, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", nil)
	s.SubmitAnswer(ctx, infoAnswers()[0])
	s.SubmitAnswer(ctx, infoAnswers()[1])

	done := make(chan Outcome)
	go func() { done <- s.SubmitAnswer(ctx, infoAnswers()[2]) }()

	require.Eventually(t, s.Submitting, time.Second, time.Millisecond)
	assert.Equal(t, OutcomeIgnored, s.Submit(ctx))
	assert.Equal(t, OutcomeIgnored, s.SubmitAnswer(ctx, model.TextAnswer("x")))

	close(release)
	assert.Equal(t, OutcomeAccepted, <-done)
	assert.True(t, s.Submitted())
	assert.Equal(t, 1, gw.submitCount())
}

func TestPreflightCheckHaltsConversation(t *testing.T) {
	at := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	gw := &fakeGateway{check: &model.SubmissionCheck{
		HasSubmitted: true, ResponseID: "r-old", SubmittedAt: &at,
	}}
	nav := &recordingNavigator{}
	s := newTestSequencer(gw, nav, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())

	s.SubmitAnswer(ctx, model.TextAnswer("Ada"))
	assert.Equal(t, OutcomeAccepted, s.SubmitAnswer(ctx, model.TextAnswer("ada@example.com")))

	tr := s.Transcript()
	last := tr[len(tr)-1]
	assert.Equal(t, PriorSubmissionText(&at), last.Text)
	assert.Contains(t, last.Text, "February 3, 2026")
	assert.Equal(t, AnnotationInfo, last.Annotation)
	assert.Equal(t, 0, countText(tr, "What is your phone number?"))
	assert.True(t, s.Halted())
	assert.Equal(t, []string{SubmissionViewPath("r-old")}, nav.visited())

	assert.Equal(t, OutcomeIgnored, s.SubmitAnswer(ctx, model.TextAnswer("+15551234567")))
	assert.Equal(t, 0, gw.submitCount())
}

func TestPreflightCheckErrorProceeds(t *testing.T) {
	gw := &fakeGateway{checkErr: errors.New("timeout")}
	s := newTestSequencer(gw, nil, ImmediateScheduler{})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())

	s.SubmitAnswer(ctx, model.TextAnswer("Ada"))
	s.SubmitAnswer(ctx, model.TextAnswer("ada@example.com"))
	assert.False(t, s.Halted())
	assert.Equal(t, model.FieldPhone, s.CurrentQuestion().ID)
	assert.Equal(t, "What is your phone number?", lastText(s))
}

func TestScheduledDelays(t *testing.T) {
	sched := NewManualScheduler()
	s := NewSequencer(Options{
		Gateway:   &fakeGateway{},
		Scheduler: sched,
		Timing: Timing{
			Welcome:          1500 * time.Millisecond,
			Step:             500 * time.Millisecond,
			SurveyStart:      time.Second,
			SuccessRedirect:  2 * time.Second,
			ConflictRedirect: 3 * time.Second,
		},
	})
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions()[:1])
	sched.RunAll()
	for _, a := range append(infoAnswers(), model.TextAnswer("Platform")) {
		require.Equal(t, OutcomeAccepted, s.SubmitAnswer(ctx, a))
		sched.RunAll()
	}

	ms := time.Millisecond
	assert.Equal(t, []time.Duration{1500 * ms, 500 * ms, 500 * ms, 500 * ms, 1000 * ms, 500 * ms, 2000 * ms}, sched.Delays())
	assert.Equal(t, 1, countText(s.Transcript(), TransitionText))
	assert.True(t, s.Submitted())
}

func TestAnswerBeforeDelayedPrompt(t *testing.T) {
	sched := NewManualScheduler()
	s := newTestSequencer(&fakeGateway{}, nil, sched)
	ctx := context.Background()
	s.Initialize("s1", "T", "", teamQuestions())

	require.Equal(t, OutcomeAccepted, s.SubmitAnswer(ctx, model.TextAnswer("Ada")))
	sched.RunAll()

	assert.Equal(t, []string{
		`Welcome to "T"!`,
		DefaultIntro,
		"What is your full name?",
		"Ada",
		"What is your email address?",
	}, texts(s.Transcript()))
}

func TestPendingAnswerClearedOnAccept(t *testing.T) {
	s := newTestSequencer(&fakeGateway{}, nil, ImmediateScheduler{})
	s.Initialize("s1", "T", "", nil)

	s.SetPendingAnswer(model.TextAnswer("Ad"))
	assert.Equal(t, "Ad", s.State().PendingAnswer.Text)
	s.SubmitAnswer(context.Background(), model.TextAnswer("Ada"))
	assert.True(t, s.State().PendingAnswer.IsEmpty())
	assert.Equal(t, "Ada", s.State().RespondentInfo.FullName)
}

func TestFormatAnswer(t *testing.T) {
	multi := teamQuestions()[1]
	assert.Equal(t, "Sales, HR", FormatAnswer(multi, model.ChoicesAnswer("Sales", "HR")))
	assert.Equal(t, NoOptionsSelectedText, FormatAnswer(multi, model.ChoicesAnswer()))
	assert.Equal(t, NoOptionsSelectedText, FormatAnswer(multi, model.Answer{}))

	single := model.Question{Kind: model.KindSingleChoice, Options: []model.Option{{Value: "y", Label: "Yes"}}}
	assert.Equal(t, "Yes", FormatAnswer(single, model.TextAnswer("y")))
	assert.Equal(t, NoAnswerText, FormatAnswer(model.Question{Kind: model.KindLongText}, model.TextAnswer("")))
}

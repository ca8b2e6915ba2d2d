package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"surveychat/internal/gateway"
	"surveychat/internal/model"
	"surveychat/internal/validation"
)

// Gateway is the backend the sequencer submits to
type Gateway interface {
	SubmitResponse(ctx context.Context, surveyID string, req model.SubmitRequest) (*model.SubmitResult, error)
	CheckSubmission(ctx context.Context, surveyID, email string) (*model.SubmissionCheck, error)
}

// Navigator performs the redirect at the end of a conversation
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(url string)

func (f NavigatorFunc) Navigate(url string) { f(url) }

// Timing paces the conversation. Zero values make every step immediate.
type Timing struct {
	Welcome          time.Duration
	Step             time.Duration
	SurveyStart      time.Duration
	SuccessRedirect  time.Duration
	ConflictRedirect time.Duration
	SubmitTimeout    time.Duration
}

// Options configures a Sequencer
type Options struct {
	Gateway   Gateway
	Navigator Navigator
	Scheduler Scheduler
	Timing    Timing
	Logger    *zap.Logger
	Clock     func() time.Time
	// Context is used for submissions triggered by scheduled effects
	Context context.Context
}

// State is a point-in-time copy of a conversation
type State struct {
	SurveyID       string
	Phase          Phase
	Cursor         int
	PendingAnswer  model.Answer
	RespondentInfo model.RespondentInfo
	SurveyAnswers  map[string]model.Answer
	Transcript     []Message
	Submitting     bool
	Submitted      bool
	Halted         bool
	RedirectURL    string
}

type effect struct {
	delay time.Duration
	fn    func()
}

// Sequencer drives one respondent through the identity questions and then the
// survey's questions, and submits the collected answers. It is safe for
// concurrent use; one Sequencer serves one respondent session.
type Sequencer struct {
	mu sync.Mutex

	gateway Gateway
	nav     Navigator
	sched   Scheduler
	timing  Timing
	logger  *zap.Logger
	now     func() time.Time
	baseCtx context.Context

	gen         uint64
	initialized bool
	surveyID    string
	info        []model.Question
	questions   []model.Question

	phase        Phase
	cursor       int
	pending      model.Answer
	respondent   model.RespondentInfo
	answers      map[string]model.Answer
	transcript   []Message
	presented    map[string]bool
	transitioned bool
	announced    bool
	checking     bool
	submitting   bool
	submitted    bool
	halted       bool
	redirect     string
	nextID       int

	effects []effect
}

func NewSequencer(opts Options) *Sequencer {
	s := &Sequencer{
		gateway: opts.Gateway,
		nav:     opts.Navigator,
		sched:   opts.Scheduler,
		timing:  opts.Timing,
		logger:  opts.Logger,
		now:     opts.Clock,
		baseCtx: opts.Context,
	}
	if s.sched == nil {
		s.sched = ImmediateScheduler{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}
	s.resetLocked()
	return s
}

func (s *Sequencer) resetLocked() {
	s.gen++
	s.info = RespondentInfoQuestions()
	s.questions = nil
	s.phase = PhaseRespondentInfo
	s.cursor = 0
	s.pending = model.Answer{}
	s.respondent = model.RespondentInfo{}
	s.answers = make(map[string]model.Answer)
	s.transcript = nil
	s.presented = make(map[string]bool)
	s.transitioned = false
	s.announced = false
	s.checking = false
	s.submitting = false
	s.submitted = false
	s.halted = false
	s.redirect = ""
}

// Initialize starts the conversation for a survey. Repeated calls for the
// same survey id are no-ops; a different id starts over.
func (s *Sequencer) Initialize(surveyID, title, description string, questions []model.Question) {
	s.mu.Lock()
	if s.initialized && s.surveyID == surveyID {
		s.mu.Unlock()
		return
	}
	if s.initialized {
		s.resetLocked()
	}
	s.initialized = true
	s.surveyID = surveyID

	qs := make([]model.Question, len(questions))
	copy(qs, questions)
	for i := range qs {
		qs[i].Options = append([]model.Option(nil), qs[i].Options...)
	}
	s.questions = model.NormalizeQuestions(qs)

	s.appendLocked(AuthorSystem, WelcomeText(title), nil, AnnotationNone)
	s.appendLocked(AuthorSystem, IntroText(description), nil, AnnotationNone)
	s.scheduleLocked(s.timing.Welcome, s.presentEffect(PhaseRespondentInfo, 0))
	s.logger.Debug("conversation initialized",
		zap.String("survey_id", surveyID), zap.Int("questions", len(qs)))
	s.unlockAndDispatch()
}

// CurrentQuestion returns the question awaiting an answer, or nil when none is.
func (s *Sequencer) CurrentQuestion() *model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.currentLocked()
	if !ok {
		return nil
	}
	return &q
}

// SetPendingAnswer stores the respondent's unsent draft
func (s *Sequencer) SetPendingAnswer(a model.Answer) {
	s.mu.Lock()
	s.pending = a
	s.mu.Unlock()
}

// SubmitAnswer validates and records an answer to the current question.
func (s *Sequencer) SubmitAnswer(ctx context.Context, a model.Answer) Outcome {
	s.mu.Lock()
	if !s.initialized || s.busyLocked() {
		s.mu.Unlock()
		return OutcomeIgnored
	}
	q, ok := s.currentLocked()
	if !ok {
		s.mu.Unlock()
		return OutcomeIgnored
	}
	s.ensurePresentedLocked()

	if res := validation.Validate(q, a); !res.OK() {
		s.appendLocked(AuthorSystem, validation.Message(q, res.Reason), nil, AnnotationError)
		s.logger.Debug("answer rejected",
			zap.String("question", q.ID), zap.String("reason", string(res.Reason)))
		s.unlockAndDispatch()
		return OutcomeRejected
	}

	if !a.Multi {
		a = model.TextAnswer(strings.TrimSpace(a.Text))
	}
	s.appendLocked(AuthorRespondent, FormatAnswer(q, a), nil, AnnotationNone)
	s.pending = model.Answer{}

	if s.phase == PhaseRespondentInfo {
		s.respondent.Set(q.ID, a.Text)
		if q.ID == model.FieldEmail && s.gateway != nil {
			s.checking = true
			gen := s.gen
			s.unlockAndDispatch()

			proceed := s.CheckExistingSubmission(ctx, a.Text)

			s.mu.Lock()
			if gen != s.gen {
				s.mu.Unlock()
				return OutcomeIgnored
			}
			s.checking = false
			if !proceed || s.halted {
				s.unlockAndDispatch()
				return OutcomeAccepted
			}
		}
	} else {
		s.answers[q.Key()] = a
	}

	s.advanceLocked()
	s.unlockAndDispatch()
	return OutcomeAccepted
}

// Submit sends the collected answers. It is invoked automatically after the
// last answer and may be called again to retry after a failure.
func (s *Sequencer) Submit(ctx context.Context) Outcome {
	s.mu.Lock()
	if !s.initialized || s.busyLocked() || s.submitted || !s.readyLocked() {
		s.mu.Unlock()
		return OutcomeIgnored
	}
	s.submitting = true
	s.announceLocked()
	gen := s.gen
	surveyID := s.surveyID
	req := model.SubmitRequest{
		Responses:      copyAnswers(s.answers),
		RespondentInfo: s.respondent,
	}
	s.unlockAndDispatch()

	if s.timing.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timing.SubmitTimeout)
		defer cancel()
	}

	var (
		res *model.SubmitResult
		err error
	)
	if s.gateway == nil {
		err = errors.New("no submission gateway configured")
	} else {
		res, err = s.gateway.SubmitResponse(ctx, surveyID, req)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return OutcomeIgnored
	}
	s.submitting = false

	if err == nil && res != nil {
		s.submitted = true
		s.phase = PhaseComplete
		s.appendLocked(AuthorSystem, SubmitSuccessText, nil, AnnotationSuccess)
		url := res.ViewSubmissionURL
		if url == "" && res.ResponseID != "" {
			url = SubmissionViewPath(res.ResponseID)
		}
		if url != "" {
			s.redirectLocked(s.timing.SuccessRedirect, url)
		}
		s.logger.Info("survey response submitted",
			zap.String("survey_id", surveyID), zap.String("response_id", res.ResponseID))
		s.unlockAndDispatch()
		return OutcomeAccepted
	}

	var conflict *gateway.ConflictError
	if errors.As(err, &conflict) {
		s.halted = true
		s.appendLocked(AuthorSystem, SubmitConflictText, nil, AnnotationInfo)
		if url := conflictURL(conflict.Info); url != "" {
			s.redirectLocked(s.timing.ConflictRedirect, url)
		}
		s.logger.Info("response already submitted",
			zap.String("survey_id", surveyID), zap.String("response_id", conflict.Info.ResponseID))
		s.unlockAndDispatch()
		return OutcomeRejected
	}

	if err == nil {
		err = errors.New("empty submission result")
	}
	s.appendLocked(AuthorSystem, SubmitFailureText, nil, AnnotationError)
	s.logger.Warn("survey submission failed", zap.String("survey_id", surveyID), zap.Error(err))
	s.unlockAndDispatch()
	return OutcomeRejected
}

// CheckExistingSubmission asks the backend whether email already answered the
// survey. It returns false, after posting a notice and scheduling a redirect,
// when a prior submission exists. Lookup errors let the conversation proceed.
func (s *Sequencer) CheckExistingSubmission(ctx context.Context, email string) bool {
	s.mu.Lock()
	if s.halted {
		s.mu.Unlock()
		return false
	}
	surveyID, gen := s.surveyID, s.gen
	s.mu.Unlock()

	if s.gateway == nil || surveyID == "" {
		return true
	}
	check, err := s.gateway.CheckSubmission(ctx, surveyID, strings.TrimSpace(email))
	if err != nil {
		s.logger.Warn("submission check failed, continuing",
			zap.String("survey_id", surveyID), zap.Error(err))
		return true
	}
	if check == nil || !check.HasSubmitted {
		return true
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return true
	}
	if !s.halted {
		s.halted = true
		s.appendLocked(AuthorSystem, PriorSubmissionText(check.SubmittedAt), nil, AnnotationInfo)
		url := check.ViewSubmissionURL
		if url == "" && check.ResponseID != "" {
			url = SubmissionViewPath(check.ResponseID)
		}
		if url != "" {
			s.redirectLocked(s.timing.ConflictRedirect, url)
		}
	}
	s.unlockAndDispatch()
	return false
}

// Transcript returns a copy of the conversation so far
func (s *Sequencer) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.transcript...)
}

func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Sequencer) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

func (s *Sequencer) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// Halted reports whether the conversation stopped for a redirect
func (s *Sequencer) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		SurveyID:       s.surveyID,
		Phase:          s.phase,
		Cursor:         s.cursor,
		PendingAnswer:  s.pending,
		RespondentInfo: s.respondent,
		SurveyAnswers:  copyAnswers(s.answers),
		Transcript:     append([]Message(nil), s.transcript...),
		Submitting:     s.submitting,
		Submitted:      s.submitted,
		Halted:         s.halted,
		RedirectURL:    s.redirect,
	}
}

func (s *Sequencer) busyLocked() bool {
	return s.submitting || s.checking || s.halted || s.phase == PhaseComplete
}

// readyLocked reports whether every question has been answered.
func (s *Sequencer) readyLocked() bool {
	return s.phase == PhaseSurveyAnswers && s.cursor >= len(s.questions)
}

func (s *Sequencer) currentLocked() (model.Question, bool) {
	switch s.phase {
	case PhaseRespondentInfo:
		if s.cursor < len(s.info) {
			return s.info[s.cursor], true
		}
	case PhaseSurveyAnswers:
		if s.cursor < len(s.questions) {
			return s.questions[s.cursor], true
		}
	}
	return model.Question{}, false
}

func presentedKey(p Phase, i int) string {
	return fmt.Sprintf("%d:%d", p, i)
}

// ensurePresentedLocked posts the current question (and the transition
// message before the first survey question) if its delayed effect has not
// fired yet, so every answer follows its question in the transcript.
func (s *Sequencer) ensurePresentedLocked() {
	if s.phase == PhaseSurveyAnswers && s.cursor == 0 {
		s.transitionLocked()
	}
	s.presentLocked(s.phase, s.cursor)
}

func (s *Sequencer) presentLocked(p Phase, i int) {
	if s.halted || s.phase != p || s.cursor != i {
		return
	}
	key := presentedKey(p, i)
	if s.presented[key] {
		return
	}
	q, ok := s.currentLocked()
	if !ok {
		return
	}
	s.presented[key] = true
	s.appendLocked(AuthorSystem, q.Label, &q, AnnotationNone)
}

func (s *Sequencer) transitionLocked() {
	if s.transitioned || s.halted || len(s.questions) == 0 {
		return
	}
	s.transitioned = true
	s.appendLocked(AuthorSystem, TransitionText, nil, AnnotationNone)
}

// announceLocked posts the completion message once.
func (s *Sequencer) announceLocked() {
	if s.announced {
		return
	}
	s.announced = true
	text := SurveyCompleteText
	if len(s.questions) == 0 {
		text = InfoOnlyCompleteText
	}
	s.appendLocked(AuthorSystem, text, nil, AnnotationNone)
}

func (s *Sequencer) advanceLocked() {
	s.cursor++
	switch s.phase {
	case PhaseRespondentInfo:
		if s.cursor < len(s.info) {
			s.scheduleLocked(s.timing.Step, s.presentEffect(PhaseRespondentInfo, s.cursor))
			return
		}
		s.phase = PhaseSurveyAnswers
		s.cursor = 0
		if len(s.questions) == 0 {
			s.scheduleLocked(s.timing.Step, s.finishEffect())
			return
		}
		s.scheduleLocked(s.timing.Step, s.transitionEffect())
	case PhaseSurveyAnswers:
		if s.cursor < len(s.questions) {
			s.scheduleLocked(s.timing.Step, s.presentEffect(PhaseSurveyAnswers, s.cursor))
			return
		}
		s.scheduleLocked(s.timing.Step, s.finishEffect())
	}
}

func (s *Sequencer) presentEffect(p Phase, i int) func() {
	gen := s.gen
	return func() {
		s.mu.Lock()
		if gen == s.gen {
			s.presentLocked(p, i)
		}
		s.unlockAndDispatch()
	}
}

func (s *Sequencer) transitionEffect() func() {
	gen := s.gen
	return func() {
		s.mu.Lock()
		if gen != s.gen || s.phase != PhaseSurveyAnswers || s.cursor != 0 || s.transitioned {
			s.unlockAndDispatch()
			return
		}
		s.transitionLocked()
		s.scheduleLocked(s.timing.SurveyStart, s.presentEffect(PhaseSurveyAnswers, 0))
		s.unlockAndDispatch()
	}
}

func (s *Sequencer) finishEffect() func() {
	gen := s.gen
	return func() {
		s.mu.Lock()
		if gen != s.gen || s.announced || !s.readyLocked() {
			s.mu.Unlock()
			return
		}
		s.announceLocked()
		ctx := s.baseCtx
		s.unlockAndDispatch()
		s.Submit(ctx)
	}
}

func (s *Sequencer) redirectLocked(delay time.Duration, url string) {
	s.redirect = url
	nav := s.nav
	s.scheduleLocked(delay, func() {
		if nav != nil {
			nav.Navigate(url)
		}
	})
}

func (s *Sequencer) appendLocked(author Author, text string, q *model.Question, ann Annotation) {
	s.nextID++
	s.transcript = append(s.transcript, Message{
		ID:         s.nextID,
		Author:     author,
		Text:       text,
		Timestamp:  s.now(),
		Question:   q,
		Annotation: ann,
	})
}

func (s *Sequencer) scheduleLocked(delay time.Duration, fn func()) {
	s.effects = append(s.effects, effect{delay: delay, fn: fn})
}

// unlockAndDispatch releases mu and hands queued effects to the scheduler.
// Effects never run while mu is held.
func (s *Sequencer) unlockAndDispatch() {
	effects := s.effects
	s.effects = nil
	s.mu.Unlock()
	for _, e := range effects {
		s.sched.Schedule(e.delay, e.fn)
	}
}

func conflictURL(info model.ConflictInfo) string {
	if info.ViewSubmissionURL != "" {
		return info.ViewSubmissionURL
	}
	if info.ResponseID != "" {
		return SubmissionViewPath(info.ResponseID)
	}
	return ""
}

func copyAnswers(in map[string]model.Answer) map[string]model.Answer {
	out := make(map[string]model.Answer, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

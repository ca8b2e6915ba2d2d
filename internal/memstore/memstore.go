// Package memstore keeps surveys, responses and cache state in process
// memory. It backs STORE=memory (local demos without Mongo or Redis) and the
// service and transport tests.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"surveychat/internal/cache"
	"surveychat/internal/model"
	"surveychat/internal/repository"
)

// Store implements every repository and cache interface over maps
type Store struct {
	mu          sync.RWMutex
	surveys     map[string]model.Survey
	respondents map[string]model.Respondent
	responses   map[string]model.SurveyResponse
	public      map[string]model.PublicSurvey
	checks      map[string]model.SubmissionCheck
	revoked     map[string]time.Time
	counters    map[string]map[string]int64
}

func New() *Store {
	return &Store{
		surveys:     make(map[string]model.Survey),
		respondents: make(map[string]model.Respondent),
		responses:   make(map[string]model.SurveyResponse),
		public:      make(map[string]model.PublicSurvey),
		checks:      make(map[string]model.SubmissionCheck),
		revoked:     make(map[string]time.Time),
		counters:    make(map[string]map[string]int64),
	}
}

func (s *Store) Surveys() repository.SurveyRepo         { return surveyRepo{s} }
func (s *Store) Respondents() repository.RespondentRepo { return respondentRepo{s} }
func (s *Store) Responses() repository.ResponseRepo     { return responseRepo{s} }
func (s *Store) SurveyCache() cache.SurveyCache         { return surveyCache{s} }
func (s *Store) SubmissionCache() cache.SubmissionCache { return submissionCache{s} }
func (s *Store) Analytics() cache.AnalyticsCache        { return analytics{s} }
func (s *Store) Tokens() cache.TokenCache               { return tokens{s} }

// surveys

type surveyRepo struct{ s *Store }

func (r surveyRepo) Create(_ context.Context, survey *model.Survey) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if survey.ID == "" {
		survey.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	survey.CreatedAt = now
	survey.UpdatedAt = now
	r.s.surveys[survey.ID] = cloneSurvey(*survey)
	return survey.ID, nil
}

func (r surveyRepo) GetByID(_ context.Context, id string) (*model.Survey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sv, ok := r.s.surveys[id]
	if !ok {
		return nil, nil
	}
	out := cloneSurvey(sv)
	return &out, nil
}

func (r surveyRepo) ListByAuthor(_ context.Context, authorID string) ([]*model.Survey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Survey
	for _, sv := range r.s.surveys {
		if sv.CreatedBy == authorID {
			c := cloneSurvey(sv)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r surveyRepo) Update(_ context.Context, survey *model.Survey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.surveys[survey.ID]; !ok {
		return nil
	}
	survey.UpdatedAt = time.Now().UTC()
	r.s.surveys[survey.ID] = cloneSurvey(*survey)
	return nil
}

func (r surveyRepo) SetStatus(_ context.Context, id string, status model.SurveyStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sv, ok := r.s.surveys[id]
	if !ok {
		return nil
	}
	sv.Status = status
	sv.UpdatedAt = time.Now().UTC()
	r.s.surveys[id] = sv
	return nil
}

func (r surveyRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.surveys, id)
	return nil
}

// respondents

type respondentRepo struct{ s *Store }

func (r respondentRepo) Upsert(_ context.Context, info model.RespondentInfo) (*model.Respondent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	email := repository.NormalizeEmail(info.Email)
	for id, p := range r.s.respondents {
		if p.Email == email {
			p.FullName = strings.TrimSpace(info.FullName)
			p.Phone = strings.TrimSpace(info.Phone)
			p.UpdatedAt = now
			r.s.respondents[id] = p
			return &p, nil
		}
	}
	p := model.Respondent{
		ID:        uuid.NewString(),
		Email:     email,
		FullName:  strings.TrimSpace(info.FullName),
		Phone:     strings.TrimSpace(info.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.respondents[p.ID] = p
	return &p, nil
}

func (r respondentRepo) GetByID(_ context.Context, id string) (*model.Respondent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.respondents[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r respondentRepo) GetByEmail(_ context.Context, email string) (*model.Respondent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = repository.NormalizeEmail(email)
	for _, p := range r.s.respondents {
		if p.Email == email {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r respondentRepo) GetMany(_ context.Context, ids []string) (map[string]*model.Respondent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*model.Respondent, len(ids))
	for _, id := range ids {
		if p, ok := r.s.respondents[id]; ok {
			p := p
			out[id] = &p
		}
	}
	return out, nil
}

// responses

type responseRepo struct{ s *Store }

func (r responseRepo) Create(_ context.Context, response *model.SurveyResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	if response.CreatedAt.IsZero() {
		response.CreatedAt = time.Now().UTC()
	}
	r.s.responses[response.ID] = *response
	return nil
}

func (r responseRepo) GetByID(_ context.Context, id string) (*model.SurveyResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	resp, ok := r.s.responses[id]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (r responseRepo) FindComplete(_ context.Context, surveyID, respondentID string) (*model.SurveyResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *model.SurveyResponse
	for _, resp := range r.s.responses {
		if resp.SurveyID != surveyID || resp.RespondentID != respondentID || !resp.IsComplete {
			continue
		}
		if latest == nil || resp.CreatedAt.After(latest.CreatedAt) {
			resp := resp
			latest = &resp
		}
	}
	return latest, nil
}

func (r responseRepo) ListBySurvey(_ context.Context, surveyID string, limit, offset int64) ([]*model.SurveyResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []*model.SurveyResponse
	for _, resp := range r.s.responses {
		if resp.SurveyID == surveyID {
			resp := resp
			all = append(all, &resp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= int64(len(all)) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < int64(len(all)) {
		all = all[:limit]
	}
	return all, nil
}

func (r responseRepo) CountBySurvey(_ context.Context, surveyID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, resp := range r.s.responses {
		if resp.SurveyID == surveyID {
			n++
		}
	}
	return n, nil
}

func (r responseRepo) DeleteBySurvey(_ context.Context, surveyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, resp := range r.s.responses {
		if resp.SurveyID == surveyID {
			delete(r.s.responses, id)
		}
	}
	return nil
}

// caches (no expiry)

type surveyCache struct{ s *Store }

func (c surveyCache) Get(_ context.Context, oid string) (*model.PublicSurvey, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	p, ok := c.s.public[oid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c surveyCache) Set(_ context.Context, survey *model.PublicSurvey) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.public[survey.ID] = *survey
	return nil
}

func (c surveyCache) Delete(_ context.Context, oid string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.public, oid)
	return nil
}

type submissionCache struct{ s *Store }

func checkKey(surveyID, email string) string { return surveyID + "|" + email }

func (c submissionCache) GetCheck(_ context.Context, surveyID, email string) (*model.SubmissionCheck, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	check, ok := c.s.checks[checkKey(surveyID, email)]
	if !ok {
		return nil, nil
	}
	return &check, nil
}

func (c submissionCache) SetCheck(_ context.Context, surveyID, email string, check *model.SubmissionCheck) error {
	if check == nil || !check.HasSubmitted {
		return nil
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.checks[checkKey(surveyID, email)] = *check
	return nil
}

func (c submissionCache) Invalidate(_ context.Context, surveyID, email string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.checks, checkKey(surveyID, email))
	return nil
}

type tokens struct{ s *Store }

func (t tokens) Revoke(_ context.Context, jti string, until time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.revoked[jti] = until
	return nil
}

func (t tokens) IsRevoked(_ context.Context, jti string) (bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	until, ok := t.s.revoked[jti]
	return ok && time.Now().Before(until), nil
}

// analytics: one counter map per survey, keyed like the Redis fields

type analytics struct{ s *Store }

func (a analytics) bump(surveyID, field string) {
	m := a.s.counters[surveyID]
	if m == nil {
		m = make(map[string]int64)
		a.s.counters[surveyID] = m
	}
	m[field]++
}

func (a analytics) RecordResponse(_ context.Context, survey *model.Survey, answers map[string]model.Answer) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.bump(survey.ID, "total")
	for _, q := range survey.Questions {
		key := q.Key()
		ans, ok := answers[key]
		if !ok || ans.IsEmpty() {
			continue
		}
		a.bump(survey.ID, "answered:"+key)
		switch {
		case q.Kind.IsChoice():
			values := ans.Choices
			if !ans.Multi {
				values = []string{ans.Text}
			}
			for _, v := range values {
				a.bump(survey.ID, "opt:"+key+":"+v)
			}
		case q.Kind == model.KindRating:
			a.bump(survey.ID, "rating:"+key+":"+strings.TrimSpace(ans.Text))
		default:
			a.bump(survey.ID, "top:"+key+":"+strings.ToLower(strings.TrimSpace(ans.String())))
		}
	}
	return nil
}

func (a analytics) Total(_ context.Context, surveyID string) (int64, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return a.s.counters[surveyID]["total"], nil
}

func (a analytics) QuestionStats(_ context.Context, surveyID string, q model.Question, topN int) (*cache.QuestionStats, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	key := q.Key()
	m := a.s.counters[surveyID]
	stats := &cache.QuestionStats{
		AnswerCount: m["answered:"+key],
		Options:     make(map[string]int64),
		Ratings:     make(map[int]int64),
	}
	var top []model.AnswerCount
	for field, n := range m {
		switch {
		case strings.HasPrefix(field, "opt:"+key+":"):
			stats.Options[strings.TrimPrefix(field, "opt:"+key+":")] = n
		case strings.HasPrefix(field, "rating:"+key+":"):
			if r, err := strconv.Atoi(strings.TrimPrefix(field, "rating:"+key+":")); err == nil {
				stats.Ratings[r] = n
			}
		case strings.HasPrefix(field, "top:"+key+":"):
			top = append(top, model.AnswerCount{Value: strings.TrimPrefix(field, "top:"+key+":"), Count: n})
		}
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Value < top[j].Value
	})
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	stats.Top = top
	return stats, nil
}

func (a analytics) Reset(_ context.Context, survey *model.Survey) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	delete(a.s.counters, survey.ID)
	return nil
}

func cloneSurvey(sv model.Survey) model.Survey {
	sv.Questions = append([]model.Question(nil), sv.Questions...)
	return sv
}

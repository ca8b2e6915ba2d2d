package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"surveychat/internal/model"
)

// TokenStore holds the author session between requests
type TokenStore interface {
	Tokens() (access, refresh string)
	SetTokens(access, refresh string)
	Clear()
}

// MemoryTokens is an in-process TokenStore
type MemoryTokens struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func (m *MemoryTokens) Tokens() (string, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access, m.refresh
}

func (m *MemoryTokens) SetTokens(access, refresh string) {
	m.mu.Lock()
	m.access, m.refresh = access, refresh
	m.mu.Unlock()
}

func (m *MemoryTokens) Clear() { m.SetTokens("", "") }

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenStore
	Logger     *zap.Logger
	// MaxRetries bounds attempts on 429 responses
	MaxRetries int
	// Backoff is the first 429 wait; it doubles per attempt
	Backoff time.Duration
}

// Client talks to the survey API. It satisfies chat.Gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration
	group      singleflight.Group
}

func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		tokens:     cfg.Tokens,
		logger:     cfg.Logger,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.tokens == nil {
		c.tokens = &MemoryTokens{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 5
	}
	if c.backoff <= 0 {
		c.backoff = time.Second
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// GetSurvey loads a public survey. Concurrent loads of the same survey share
// one request.
func (c *Client) GetSurvey(ctx context.Context, oid string) (*model.PublicSurvey, error) {
	v, err, _ := c.group.Do("survey:"+oid, func() (interface{}, error) {
		var survey model.PublicSurvey
		if err := c.do(ctx, http.MethodGet, "/v1/public/surveys/"+url.PathEscape(oid), nil, &survey, false); err != nil {
			return nil, err
		}
		return &survey, nil
	})
	if err != nil {
		return nil, classifyFetch(err)
	}
	return v.(*model.PublicSurvey), nil
}

func classifyFetch(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return &FetchError{Kind: FetchNotFound, Message: apiErr.Message, Err: err}
		case http.StatusBadRequest:
			return &FetchError{Kind: FetchNotActive, Message: apiErr.Message, Err: err}
		}
	}
	return &FetchError{Kind: FetchOther, Err: err}
}

func (c *Client) CheckSubmission(ctx context.Context, surveyID, email string) (*model.SubmissionCheck, error) {
	var check model.SubmissionCheck
	body := model.CheckSubmissionRequest{Email: email}
	path := "/v1/public/surveys/" + url.PathEscape(surveyID) + "/check-submission"
	if err := c.do(ctx, http.MethodPost, path, body, &check, false); err != nil {
		return nil, err
	}
	return &check, nil
}

// SubmitResponse posts a finished conversation. A duplicate yields *ConflictError.
func (c *Client) SubmitResponse(ctx context.Context, surveyID string, req model.SubmitRequest) (*model.SubmitResult, error) {
	var result model.SubmitResult
	path := "/v1/public/surveys/" + url.PathEscape(surveyID) + "/responses"
	err := c.do(ctx, http.MethodPost, path, req, &result, false)
	if err == nil {
		return &result, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		var info model.ConflictInfo
		if len(apiErr.Data) > 0 {
			if jerr := json.Unmarshal(apiErr.Data, &info); jerr != nil {
				return nil, fmt.Errorf("decode conflict: %w", jerr)
			}
		}
		info.AlreadySubmitted = true
		return nil, &ConflictError{Info: info}
	}
	return nil, err
}

func (c *Client) GetSubmission(ctx context.Context, responseID string) (*model.Submission, error) {
	var sub model.Submission
	if err := c.do(ctx, http.MethodGet, "/v1/public/submissions/"+url.PathEscape(responseID), nil, &sub, false); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Login authenticates an author and keeps the issued tokens
func (c *Client) Login(ctx context.Context, username, password string) (*model.TokenPair, error) {
	var pair model.TokenPair
	body := model.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", body, &pair, false); err != nil {
		return nil, err
	}
	c.tokens.SetTokens(pair.Access, pair.Refresh)
	return &pair, nil
}

// Logout revokes the refresh token and forgets the session
func (c *Client) Logout(ctx context.Context) error {
	_, refresh := c.tokens.Tokens()
	defer c.tokens.Clear()
	if refresh == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", model.RefreshRequest{RefreshToken: refresh}, nil, false)
}

// Refresh rotates the token pair. Concurrent callers share one refresh.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		_, refresh := c.tokens.Tokens()
		if refresh == "" {
			return nil, ErrUnauthorized
		}
		var pair model.TokenPair
		err := c.do(ctx, http.MethodPost, "/v1/auth/token/refresh", model.RefreshRequest{RefreshToken: refresh}, &pair, false)
		if err != nil {
			c.tokens.Clear()
			c.logger.Info("token refresh failed", zap.Error(err))
			return nil, ErrUnauthorized
		}
		c.tokens.SetTokens(pair.Access, pair.Refresh)
		return nil, nil
	})
	return err
}

// Summary fetches the aggregated results of an authored survey
func (c *Client) Summary(ctx context.Context, surveyID string) (*model.SurveySummary, error) {
	var summary model.SurveySummary
	if err := c.do(ctx, http.MethodGet, "/v1/surveys/"+url.PathEscape(surveyID)+"/summary", nil, &summary, true); err != nil {
		return nil, err
	}
	return &summary, nil
}

// do performs one API call with 429 backoff and, for authenticated calls, a
// single refresh-and-replay on 401.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, auth bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	refreshed := false
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if auth {
			if access, _ := c.tokens.Tokens(); access != "" {
				req.Header.Set("Authorization", "Bearer "+access)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
			c.logger.Debug("rate limited", zap.String("path", path), zap.Int("attempt", attempt+1), zap.Duration("backoff", wait))
			lastErr = &APIError{Status: resp.StatusCode, Message: "rate limited"}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized && auth && !strings.HasPrefix(path, "/v1/auth/") {
			if refreshed {
				c.tokens.Clear()
				return ErrUnauthorized
			}
			if err := c.Refresh(ctx); err != nil {
				return ErrUnauthorized
			}
			refreshed = true
			attempt--
			continue
		}

		var env envelope
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, &env); err != nil {
				if resp.StatusCode >= 400 {
					return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
				}
				return fmt.Errorf("decode response: %w", err)
			}
		}
		if resp.StatusCode >= 400 {
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
			return &APIError{Status: resp.StatusCode, Message: msg, Data: env.Data}
		}
		if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("decode data: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

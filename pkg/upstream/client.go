package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/pkg/logger"
	"github.com/noah-isme/sma-class-console/pkg/middleware/requestid"
)

var (
	// ErrSessionExpired is returned when the session has no token or the backend rejected it.
	ErrSessionExpired = errors.New("upstream session expired")
	// ErrDecode is returned when a response body does not match the documented envelope.
	ErrDecode = errors.New("upstream response does not match schema")
)

// maxErrorBody bounds how much of an error response is read for diagnostics.
const maxErrorBody = 4 << 10

// StatusError describes a non-2xx answer from the backend.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.StatusCode, msg)
}

// Observer receives one sample per outbound call.
type Observer interface {
	ObserveUpstreamCall(endpoint string, status int, duration time.Duration)
}

// Client talks to the school REST backend. Every endpoint answers with {"data": ...}.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
	logger   *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithObserver records call latency.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Client for baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Login exchanges credentials for a token. It is the only call made without a session.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	var out models.LoginResult
	if err := c.do(ctx, nil, http.MethodPost, "/auth/login", "/auth/login", req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login: %w", ErrDecode)
	}
	return &out, nil
}

// Me resolves the acting principal's profile.
func (c *Client) Me(ctx context.Context, s *Session) (*models.Principal, error) {
	var out models.Principal
	if err := c.do(ctx, s, http.MethodGet, "/principals/me", "/principals/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSubjects returns the school's subjects.
func (c *Client) ListSubjects(ctx context.Context, s *Session, schoolID int64) ([]models.Subject, error) {
	var out []models.Subject
	path := "/subjects/school/" + strconv.FormatInt(schoolID, 10)
	if err := c.do(ctx, s, http.MethodGet, path, "/subjects/school/{id}", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTeachers returns the school's teachers.
func (c *Client) ListTeachers(ctx context.Context, s *Session, schoolID int64) ([]models.Teacher, error) {
	var out []models.Teacher
	path := "/teachers/school/" + strconv.FormatInt(schoolID, 10)
	if err := c.do(ctx, s, http.MethodGet, path, "/teachers/school/{id}", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateClass posts a new class and returns the created record.
func (c *Client) CreateClass(ctx context.Context, s *Session, payload models.ClassPayload) (*models.Class, error) {
	var out models.Class
	if err := c.do(ctx, s, http.MethodPost, "/classes", "/classes", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClass fetches one class.
func (c *Client) GetClass(ctx context.Context, s *Session, classID int64) (*models.Class, error) {
	var out models.Class
	path := "/classes/" + strconv.FormatInt(classID, 10)
	if err := c.do(ctx, s, http.MethodGet, path, "/classes/{id}", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateClass replaces a class together with its weekly schedule.
func (c *Client) UpdateClass(ctx context.Context, s *Session, classID int64, payload models.ClassUpdatePayload) (*models.Class, error) {
	var out models.Class
	path := "/classes/" + strconv.FormatInt(classID, 10)
	if err := c.do(ctx, s, http.MethodPut, path, "/classes/{id}", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSchedule posts one schedule slot.
func (c *Client) CreateSchedule(ctx context.Context, s *Session, payload models.SchedulePayload) (*models.Schedule, error) {
	var out models.Schedule
	if err := c.do(ctx, s, http.MethodPost, "/schedules", "/schedules", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSchedules returns the schedules of a class.
func (c *Client) ListSchedules(ctx context.Context, s *Session, classID int64) ([]models.Schedule, error) {
	var out []models.Schedule
	query := url.Values{"class_id": []string{strconv.FormatInt(classID, 10)}}
	if err := c.do(ctx, s, http.MethodGet, "/schedules?"+query.Encode(), "/schedules", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, s *Session, method, path, endpoint string, body, out interface{}) error {
	var token string
	if s != nil {
		token = s.Token()
		if token == "" {
			return ErrSessionExpired
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.HeaderKey, reqID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, 0, time.Since(start))
		logger.WithRequest(ctx, c.logger).Warn("upstream call failed", zap.String("method", method), zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	c.observe(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized && s != nil {
		s.Clear()
		return ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode}
		var failure errorEnvelope
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); readErr == nil {
			if json.Unmarshal(raw, &failure) == nil {
				statusErr.Code = failure.Error.Code
				statusErr.Message = failure.Error.Message
			}
		}
		logger.WithRequest(ctx, c.logger).Warn("upstream rejected call",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", statusErr.Message),
		)
		return statusErr
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, endpoint, ErrDecode, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s %s: %w: missing data", method, endpoint, ErrDecode)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, endpoint, ErrDecode, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstreamCall(endpoint, status, d)
	}
}

// Package backend talks to the SchoolAI REST backend and provides an
// in-memory fixture implementation of the same surface.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// ErrNotFound is returned when the upstream has no record for the request.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx upstream response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type tokenKey struct{}

// ContextWithToken attaches the upstream bearer token to ctx.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the upstream bearer token carried by ctx.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// HTTPClient calls the upstream REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

// NewHTTPClient creates a client for the API rooted at baseURL
// (e.g. http://localhost:3001/api-v1).
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, respBody)
	}

	slog.Debug("backend request completed", "method", method, "path", path, "status", resp.StatusCode)

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	return &APIError{Status: status, Message: msg}
}

// Login authenticates against the upstream. The upstream replies with
// {"success": true, "data": <user>, "token": "..."}.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var resp struct {
		Success bool   `json:"success"`
		Data    User   `json:"data"`
		Token   string `json:"token"`
		Error   string `json:"error"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return LoginResult{}, err
	}
	if !resp.Success || resp.Token == "" {
		msg := resp.Error
		if msg == "" {
			msg = "Login failed"
		}
		return LoginResult{}, &APIError{Status: http.StatusUnauthorized, Message: msg}
	}
	return LoginResult{Token: resp.Token, User: resp.Data}, nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPost, "/usuario", req, &u)
	return u, err
}

func (c *HTTPClient) CurrentUser(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/usuario/me", nil, &u)
	return u, err
}

func (c *HTTPClient) UpdateUser(ctx context.Context, update UserUpdate) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPut, "/usuario", update, &u)
	return u, err
}

func (c *HTTPClient) ChangePassword(ctx context.Context, current, next string) error {
	return c.do(ctx, http.MethodPatch, "/usuario/password", map[string]string{
		"currentPassword": current,
		"newPassword":     next,
	}, nil)
}

func (c *HTTPClient) Users(ctx context.Context) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet, "/usuario", nil, &users)
	return users, err
}

func (c *HTTPClient) Subjects(ctx context.Context) ([]Subject, error) {
	var subjects []Subject
	err := c.do(ctx, http.MethodGet, "/subjects", nil, &subjects)
	return subjects, err
}

func (c *HTTPClient) Subject(ctx context.Context, id string) (Subject, error) {
	var s Subject
	err := c.do(ctx, http.MethodGet, "/subjects/"+url.PathEscape(id), nil, &s)
	return s, err
}

func (c *HTTPClient) CreateSubject(ctx context.Context, in SubjectInput) (Subject, error) {
	var s Subject
	err := c.do(ctx, http.MethodPost, "/subjects", in, &s)
	return s, err
}

func (c *HTTPClient) UpdateSubject(ctx context.Context, id string, in SubjectInput) (Subject, error) {
	var s Subject
	err := c.do(ctx, http.MethodPut, "/subjects/"+url.PathEscape(id), in, &s)
	return s, err
}

func (c *HTTPClient) DeleteSubject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/subjects/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) SubjectsByTeacher(ctx context.Context, teacherID string) ([]Subject, error) {
	var subjects []Subject
	err := c.do(ctx, http.MethodGet, "/teachers/"+url.PathEscape(teacherID)+"/subjects", nil, &subjects)
	return subjects, err
}

func (c *HTTPClient) StudentsByTeacher(ctx context.Context, teacherID string) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet, "/teachers/"+url.PathEscape(teacherID)+"/students", nil, &users)
	return users, err
}

// Subtopics lists subtopics, filtered by subject when subjectID is set.
func (c *HTTPClient) Subtopics(ctx context.Context, subjectID string) ([]Subtopic, error) {
	path := "/subtopics"
	if subjectID != "" {
		path += "?subjectId=" + url.QueryEscape(subjectID)
	}
	var subtopics []Subtopic
	err := c.do(ctx, http.MethodGet, path, nil, &subtopics)
	return subtopics, err
}

func (c *HTTPClient) Subtopic(ctx context.Context, id string) (Subtopic, error) {
	var s Subtopic
	err := c.do(ctx, http.MethodGet, "/subtopics/"+url.PathEscape(id), nil, &s)
	return s, err
}

func (c *HTTPClient) CreateSubtopic(ctx context.Context, in SubtopicInput) (Subtopic, error) {
	var s Subtopic
	err := c.do(ctx, http.MethodPost, "/subtopics", in, &s)
	return s, err
}

func (c *HTTPClient) UpdateSubtopic(ctx context.Context, id string, in SubtopicInput) (Subtopic, error) {
	var s Subtopic
	err := c.do(ctx, http.MethodPut, "/subtopics/"+url.PathEscape(id), in, &s)
	return s, err
}

func (c *HTTPClient) DeleteSubtopic(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/subtopics/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) Progress(ctx context.Context) ([]Progress, error) {
	var progress []Progress
	err := c.do(ctx, http.MethodGet, "/progress", nil, &progress)
	return progress, err
}

func (c *HTTPClient) ProgressByUser(ctx context.Context, userID string) ([]Progress, error) {
	var progress []Progress
	err := c.do(ctx, http.MethodGet, "/progress/user/"+url.PathEscape(userID), nil, &progress)
	return progress, err
}

func (c *HTTPClient) CreateProgress(ctx context.Context, in ProgressInput) (Progress, error) {
	var p Progress
	err := c.do(ctx, http.MethodPost, "/progress", in, &p)
	return p, err
}

func (c *HTTPClient) AssignmentsByTeacher(ctx context.Context, teacherID string) ([]ClassAssignment, error) {
	var assignments []ClassAssignment
	err := c.do(ctx, http.MethodGet, "/class-assignments/teacher/"+url.PathEscape(teacherID), nil, &assignments)
	return assignments, err
}

func (c *HTTPClient) Feedback(ctx context.Context) ([]AIFeedback, error) {
	var steps []AIFeedback
	err := c.do(ctx, http.MethodGet, "/ai-feedback", nil, &steps)
	return steps, err
}

func (c *HTTPClient) FeedbackBySubtopic(ctx context.Context, subtopicID string) ([]AIFeedback, error) {
	var steps []AIFeedback
	err := c.do(ctx, http.MethodGet, "/ai-feedback/subtopic/"+url.PathEscape(subtopicID), nil, &steps)
	return steps, err
}

func (c *HTTPClient) CreateFeedbackStep(ctx context.Context, in FeedbackInput) (AIFeedback, error) {
	var step AIFeedback
	err := c.do(ctx, http.MethodPost, "/ai-feedback", in, &step)
	return step, err
}

func (c *HTTPClient) UpdateFeedbackStep(ctx context.Context, id string, in FeedbackUpdate) (AIFeedback, error) {
	var step AIFeedback
	err := c.do(ctx, http.MethodPut, "/ai-feedback/"+url.PathEscape(id), in, &step)
	return step, err
}

func (c *HTTPClient) DeleteFeedbackStep(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/ai-feedback/"+url.PathEscape(id), nil, nil)
}

// GenerateFeedback asks the upstream AI writing assistant for a lesson plan.
// The raw response is schema-checked before decoding.
func (c *HTTPClient) GenerateFeedback(ctx context.Context, subtopicID string) (GeneratedFeedback, error) {
	var raw json.RawMessage
	path := "/ai-writing-assistant/generate-feedback/" + url.PathEscape(subtopicID)
	if err := c.do(ctx, http.MethodPost, path, nil, &raw); err != nil {
		return GeneratedFeedback{}, err
	}
	return decodeGenerated(raw)
}

// HealthCheck verifies the upstream answers.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/subjects", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// API is the upstream surface. HTTPClient and Fixture both implement it.
type API interface {
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Register(ctx context.Context, req RegisterRequest) (User, error)
	CurrentUser(ctx context.Context) (User, error)
	UpdateUser(ctx context.Context, update UserUpdate) (User, error)
	ChangePassword(ctx context.Context, current, next string) error
	Users(ctx context.Context) ([]User, error)

	Subjects(ctx context.Context) ([]Subject, error)
	Subject(ctx context.Context, id string) (Subject, error)
	CreateSubject(ctx context.Context, in SubjectInput) (Subject, error)
	UpdateSubject(ctx context.Context, id string, in SubjectInput) (Subject, error)
	DeleteSubject(ctx context.Context, id string) error
	SubjectsByTeacher(ctx context.Context, teacherID string) ([]Subject, error)
	StudentsByTeacher(ctx context.Context, teacherID string) ([]User, error)

	Subtopics(ctx context.Context, subjectID string) ([]Subtopic, error)
	Subtopic(ctx context.Context, id string) (Subtopic, error)
	CreateSubtopic(ctx context.Context, in SubtopicInput) (Subtopic, error)
	UpdateSubtopic(ctx context.Context, id string, in SubtopicInput) (Subtopic, error)
	DeleteSubtopic(ctx context.Context, id string) error

	Progress(ctx context.Context) ([]Progress, error)
	ProgressByUser(ctx context.Context, userID string) ([]Progress, error)
	CreateProgress(ctx context.Context, in ProgressInput) (Progress, error)
	AssignmentsByTeacher(ctx context.Context, teacherID string) ([]ClassAssignment, error)

	Feedback(ctx context.Context) ([]AIFeedback, error)
	FeedbackBySubtopic(ctx context.Context, subtopicID string) ([]AIFeedback, error)
	CreateFeedbackStep(ctx context.Context, in FeedbackInput) (AIFeedback, error)
	UpdateFeedbackStep(ctx context.Context, id string, in FeedbackUpdate) (AIFeedback, error)
	DeleteFeedbackStep(ctx context.Context, id string) error
	GenerateFeedback(ctx context.Context, subtopicID string) (GeneratedFeedback, error)

	HealthCheck(ctx context.Context) error
}

var (
	_ API = (*HTTPClient)(nil)
	_ API = (*Fixture)(nil)
)

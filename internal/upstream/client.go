package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/codetrail/learngate/internal/domain"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// Client talks to the remote course API. It owns the status-to-error mapping
// of the client: 401/403 become domain.ErrUnauthenticated, 404 becomes
// domain.ErrNotFound and everything else surfaces as a TransportError the
// caller may retry.
type Client struct {
	base   string
	conn   *http.Client
	logger *zap.Logger
}

// NewClient create an API client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		conn: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type loginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResult struct {
	Token string `json:"token"`
}

// RegisterForm payload for account creation
type RegisterForm struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type createProgressForm struct {
	CourseID int `json:"course_id"`
}

type completeLessonForm struct {
	LessonID int `json:"lesson_id"`
}

type completeAssignmentForm struct {
	AssignmentID int `json:"assignment_id"`
}

// Login exchange learner credentials for a bearer token
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	result := new(loginResult)
	err := c.do(ctx, "auth.login", http.MethodPost, "/api/auth/login/", "", &loginForm{username, password}, result)
	if err != nil {
		// the store reports bad credentials as a client error
		if te, ok := err.(*domain.TransportError); ok && te.Status == http.StatusBadRequest {
			return "", domain.ErrUnauthenticated
		}
		return "", err
	}
	return result.Token, nil
}

// Register create a learner account in the remote store
func (c *Client) Register(ctx context.Context, form *RegisterForm) error {
	err := c.do(ctx, "auth.register", http.MethodPost, "/api/auth/register/", "", form, nil)
	if te, ok := err.(*domain.TransportError); ok && te.Status == http.StatusBadRequest {
		return domain.ErrDuplicatedUser
	}
	return err
}

// GetUser fetch the authenticated learner's profile
func (c *Client) GetUser(ctx context.Context, credential string) (*domain.UserModel, error) {
	user := new(domain.UserModel)
	if err := c.do(ctx, "auth.user", http.MethodGet, "/api/auth/user/", credential, nil, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListCourses fetch the full course catalog
func (c *Client) ListCourses(ctx context.Context) ([]*domain.CourseModel, error) {
	var courses []*domain.CourseModel
	if err := c.do(ctx, "catalog.courses", http.MethodGet, "/api/courses/", "", nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// GetCourse fetch one course with its lesson sequence
func (c *Client) GetCourse(ctx context.Context, courseID int) (*domain.CourseModel, error) {
	course := new(domain.CourseModel)
	path := fmt.Sprintf("/api/courses/%d/", courseID)
	if err := c.do(ctx, "catalog.course", http.MethodGet, path, "", nil, course); err != nil {
		return nil, err
	}
	return course, nil
}

// GetLesson fetch one lesson with its assignments
func (c *Client) GetLesson(ctx context.Context, lessonID int) (*domain.LessonModel, error) {
	lesson := new(domain.LessonModel)
	path := fmt.Sprintf("/api/lessons/%d/", lessonID)
	if err := c.do(ctx, "catalog.lesson", http.MethodGet, path, "", nil, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// GetAssignment fetch one assignment, credential optional
func (c *Client) GetAssignment(ctx context.Context, credential string, assignmentID int) (*domain.AssignmentModel, error) {
	assignment := new(domain.AssignmentModel)
	path := fmt.Sprintf("/api/assignments/%d/", assignmentID)
	if err := c.do(ctx, "catalog.assignment", http.MethodGet, path, credential, nil, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// ListProgress fetch the learner's full collection of progress records
func (c *Client) ListProgress(ctx context.Context, credential string) ([]*domain.ProgressModel, error) {
	var records []*domain.ProgressModel
	if err := c.do(ctx, "progress.list", http.MethodGet, "/api/progress/", credential, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateProgress create an empty progress record scoped to the course
func (c *Client) CreateProgress(ctx context.Context, credential string, courseID int) (*domain.ProgressModel, error) {
	record := new(domain.ProgressModel)
	err := c.do(ctx, "progress.create", http.MethodPost, "/api/progress/", credential, &createProgressForm{courseID}, record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CompleteLesson mark a lesson complete on an existing progress record.
// The store may answer with the updated record or a bare acknowledgment.
func (c *Client) CompleteLesson(ctx context.Context, credential string, progressID, lessonID int) (*domain.ProgressModel, error) {
	record := new(domain.ProgressModel)
	path := fmt.Sprintf("/api/progress/%d/complete_lesson/", progressID)
	err := c.do(ctx, "progress.complete_lesson", http.MethodPost, path, credential, &completeLessonForm{lessonID}, record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CompleteAssignment mark an assignment complete on an existing progress record
func (c *Client) CompleteAssignment(ctx context.Context, credential string, progressID, assignmentID int) (*domain.ProgressModel, error) {
	record := new(domain.ProgressModel)
	path := fmt.Sprintf("/api/progress/%d/complete_assignment/", progressID)
	err := c.do(ctx, "progress.complete_assignment", http.MethodPost, path, credential, &completeAssignmentForm{assignmentID}, record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Ping probe upstream reachability
func (c *Client) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var courses []*domain.CourseModel
	return c.do(ctx, "ping", http.MethodGet, "/api/courses/", "", nil, &courses)
}

func (c *Client) do(ctx context.Context, op, method, path, credential string, body, out interface{}) error {
	apmSpan, ctx := apm.StartSpan(ctx, "upstream."+op, "external.http")
	defer apmSpan.End()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return domain.NewTransportError(op, 0, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Token "+credential)
	}

	res, err := c.conn.Do(req)
	if err != nil {
		c.logger.Warn("Upstream request failed", zap.String("upstream.op", op), zap.Error(err))
		return domain.NewTransportError(op, 0, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return domain.ErrUnauthenticated
	case res.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case res.StatusCode >= http.StatusBadRequest:
		c.logger.Warn("Upstream rejected request",
			zap.String("upstream.op", op),
			zap.Int("http.response.status_code", res.StatusCode),
		)
		return domain.NewTransportError(op, res.StatusCode, nil)
	}

	if out == nil {
		return nil
	}
	data, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	if len(data) == 0 {
		// acknowledgment without a body
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewTransportError(op, 0, err)
	}
	return nil
}

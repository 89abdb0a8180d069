package catalog

import (
	"context"

	"github.com/codetrail/learngate/internal/domain"
	"go.elastic.co/apm"
)

// API the read-only slice of the course store the catalog consumes
type API interface {
	ListCourses(ctx context.Context) ([]*domain.CourseModel, error)
	GetCourse(ctx context.Context, courseID int) (*domain.CourseModel, error)
	GetLesson(ctx context.Context, lessonID int) (*domain.LessonModel, error)
	GetAssignment(ctx context.Context, credential string, assignmentID int) (*domain.AssignmentModel, error)
}

// Service stateless catalog reader over the course API
type Service struct {
	api API
}

var _ domain.CatalogReader = &Service{}

// NewService .
func NewService(api API) *Service {
	return &Service{api: api}
}

// ListCourses list the catalog, optionally narrowed to one difficulty level
func (s *Service) ListCourses(ctx context.Context, difficulty string) ([]*domain.CourseModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "catalog.Service.ListCourses", "service")
	defer apmSpan.End()

	courses, err := s.api.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	if difficulty == "" || difficulty == "all" {
		return courses, nil
	}
	filtered := make([]*domain.CourseModel, 0, len(courses))
	for _, course := range courses {
		if course.Difficulty == difficulty {
			filtered = append(filtered, course)
		}
	}
	return filtered, nil
}

// GetCourse .
func (s *Service) GetCourse(ctx context.Context, courseID int) (*domain.CourseModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "catalog.Service.GetCourse", "service")
	defer apmSpan.End()

	return s.api.GetCourse(ctx, courseID)
}

// GetLesson .
func (s *Service) GetLesson(ctx context.Context, lessonID int) (*domain.LessonModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "catalog.Service.GetLesson", "service")
	defer apmSpan.End()

	return s.api.GetLesson(ctx, lessonID)
}

// GetAssignment assignment detail, works with or without a session
func (s *Service) GetAssignment(ctx context.Context, sess *domain.SessionModel, assignmentID int) (*domain.AssignmentModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "catalog.Service.GetAssignment", "service")
	defer apmSpan.End()

	var credential string
	if sess.Authenticated() {
		credential = sess.Credential
	}
	return s.api.GetAssignment(ctx, credential, assignmentID)
}

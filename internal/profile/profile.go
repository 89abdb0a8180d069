package profile

import (
	"context"

	"github.com/codetrail/learngate/internal/domain"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// UserAPI learner profile accessor of the course store
type UserAPI interface {
	GetUser(ctx context.Context, credential string) (*domain.UserModel, error)
}

// CourseProgressView one course on the profile page
type CourseProgressView struct {
	CourseID             int    `json:"course_id"`
	CourseTitle          string `json:"course_title"`
	CompletedLessons     int    `json:"completed_lessons"`
	TotalLessons         int    `json:"total_lessons"`
	CompletedAssignments int    `json:"completed_assignments"`
	TotalAssignments     int    `json:"total_assignments"`
	Percent              int    `json:"percent"`
	Completed            bool   `json:"completed"`
}

// CompletedAssignmentView recently completed assignment entry
type CompletedAssignmentView struct {
	AssignmentID int    `json:"assignment_id"`
	LessonID     int    `json:"lesson_id"`
	Title        string `json:"title"`
	CourseID     int    `json:"course_id"`
	CourseTitle  string `json:"course_title"`
}

// View the assembled profile page payload
type View struct {
	User                 *domain.UserModel          `json:"user"`
	Courses              []*CourseProgressView      `json:"courses"`
	CompletedAssignments []*CompletedAssignmentView `json:"completed_assignments"`
}

// Service aggregates the learner's progress records into per-course
// percentages. The arithmetic is deliberately simple: completion counts come
// from the progress records, totals from the catalog.
type Service struct {
	users   UserAPI
	tracker domain.ProgressTracker
	catalog domain.CatalogReader
	logger  *zap.Logger
}

// NewService .
func NewService(users UserAPI, tracker domain.ProgressTracker, catalog domain.CatalogReader, logger *zap.Logger) *Service {
	return &Service{
		users:   users,
		tracker: tracker,
		catalog: catalog,
		logger:  logger,
	}
}

// Assemble build the profile view for the session's learner
func (s *Service) Assemble(ctx context.Context, sess *domain.SessionModel) (*View, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	apmSpan, ctx := apm.StartSpan(ctx, "profile.Service.Assemble", "service")
	defer apmSpan.End()

	user, err := s.users.GetUser(ctx, sess.Credential)
	if err != nil {
		return nil, err
	}
	records, err := s.tracker.List(ctx, sess)
	if err != nil {
		return nil, err
	}

	view := &View{
		User:                 user,
		Courses:              make([]*CourseProgressView, 0, len(records)),
		CompletedAssignments: make([]*CompletedAssignmentView, 0),
	}
	for _, record := range records {
		view.Courses = append(view.Courses, s.courseView(ctx, record))
		for _, assignment := range record.CompletedAssignments {
			entry := &CompletedAssignmentView{
				AssignmentID: assignment.ID,
				LessonID:     assignment.LessonID,
				Title:        assignment.Title,
				CourseID:     record.CourseID(),
			}
			if record.Course != nil {
				entry.CourseTitle = record.Course.Title
			}
			view.CompletedAssignments = append(view.CompletedAssignments, entry)
		}
	}
	return view, nil
}

func (s *Service) courseView(ctx context.Context, record *domain.ProgressModel) *CourseProgressView {
	view := &CourseProgressView{
		CourseID:             record.CourseID(),
		CompletedLessons:     len(record.CompletedLessons),
		CompletedAssignments: len(record.CompletedAssignments),
	}
	if record.Course != nil {
		view.CourseTitle = record.Course.Title
	}

	totalLessons, totalAssignments := s.totals(ctx, record)
	view.TotalLessons = totalLessons
	view.TotalAssignments = totalAssignments
	view.Percent = percent(view.CompletedLessons, totalLessons)
	view.Completed = totalLessons > 0 && view.Percent == 100
	return view
}

// totals consult the catalog for what "complete" means for the course. The
// embedded course summary of the progress record is the fallback when the
// catalog is unreachable.
func (s *Service) totals(ctx context.Context, record *domain.ProgressModel) (int, int) {
	course, err := s.catalog.GetCourse(ctx, record.CourseID())
	if err != nil {
		s.logger.Warn("Falling back to embedded course summary",
			zap.Int("course.id", record.CourseID()),
			zap.Error(err),
		)
		course = record.Course
	}
	if course == nil {
		return 0, 0
	}
	assignments := 0
	for _, lesson := range course.Lessons {
		assignments += len(lesson.Assignments)
	}
	return len(course.Lessons), assignments
}

func percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := (completed*100 + total/2) / total
	if p > 100 {
		p = 100
	}
	return p
}

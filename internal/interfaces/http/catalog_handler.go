package http

import (
	"net/http"
	"strconv"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/codetrail/learngate/internal/infrastructure/logging"
	"github.com/codetrail/learngate/internal/interfaces/http/middleware"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CourseDetailView course page payload: the catalog entry plus the completion
// state of the current learner, when one is signed in
type CourseDetailView struct {
	Course                 *domain.CourseModel `json:"course"`
	CompletedLessonIDs     []int               `json:"completed_lesson_ids"`
	CompletedAssignmentIDs []int               `json:"completed_assignment_ids"`
}

// LessonDetailView lesson page payload
type LessonDetailView struct {
	Lesson    *domain.LessonModel `json:"lesson"`
	CourseID  int                 `json:"course_id"`
	Completed bool                `json:"completed"`
}

// CatalogHandler course/lesson/assignment pages
type CatalogHandler struct {
	catalog domain.CatalogReader
	tracker domain.ProgressTracker
}

// NewCatalogHandler .
func NewCatalogHandler(catalog domain.CatalogReader, tracker domain.ProgressTracker) *CatalogHandler {
	return &CatalogHandler{catalog, tracker}
}

// HandleListCourses catalog listing, `difficulty` query narrows the list
func (ch *CatalogHandler) HandleListCourses(c echo.Context) (err error) {
	courses, err := ch.catalog.ListCourses(c.Request().Context(), c.QueryParam("difficulty"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, courses)
}

// HandleGetCourse course detail merged with the learner's progress. Progress
// is decoration here: failing to resolve it degrades to the anonymous view
// instead of failing the page.
func (ch *CatalogHandler) HandleGetCourse(c echo.Context) (err error) {
	courseID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	course, err := ch.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}

	view := &CourseDetailView{
		Course:                 course,
		CompletedLessonIDs:     []int{},
		CompletedAssignmentIDs: []int{},
	}
	if sess := middleware.CurrentSession(c); sess.Authenticated() {
		record, err := ch.tracker.Resolve(ctx, sess, courseID)
		if err != nil {
			logging.ExtractLoggerFromContext(ctx).Warn("Rendering course without progress",
				zap.Int("course.id", courseID), zap.Error(err))
		} else if record != nil {
			for _, lesson := range record.CompletedLessons {
				view.CompletedLessonIDs = append(view.CompletedLessonIDs, lesson.ID)
			}
			for _, assignment := range record.CompletedAssignments {
				view.CompletedAssignmentIDs = append(view.CompletedAssignmentIDs, assignment.ID)
			}
		}
	}
	return c.JSON(http.StatusOK, view)
}

// HandleGetLesson lesson detail with the learner's completion flag
func (ch *CatalogHandler) HandleGetLesson(c echo.Context) (err error) {
	courseID, err := pathID(c, "courseID")
	if err != nil {
		return err
	}
	lessonID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	lesson, err := ch.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return err
	}

	view := &LessonDetailView{
		Lesson:   lesson,
		CourseID: courseID,
	}
	if sess := middleware.CurrentSession(c); sess.Authenticated() {
		record, err := ch.tracker.Resolve(ctx, sess, courseID)
		if err != nil {
			logging.ExtractLoggerFromContext(ctx).Warn("Rendering lesson without progress",
				zap.Int("lesson.id", lessonID), zap.Error(err))
		} else if record != nil {
			view.Completed = record.HasLesson(lessonID)
		}
	}
	return c.JSON(http.StatusOK, view)
}

// HandleGetAssignment assignment detail, anonymous access allowed
func (ch *CatalogHandler) HandleGetAssignment(c echo.Context) (err error) {
	assignmentID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sess := middleware.CurrentSession(c)
	assignment, err := ch.catalog.GetAssignment(c.Request().Context(), sess, assignmentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, assignment)
}

// pathID parse a numeric path parameter
func pathID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

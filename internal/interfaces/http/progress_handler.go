package http

import (
	"net/http"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/codetrail/learngate/internal/interfaces/http/middleware"
	"github.com/labstack/echo/v4"
)

// ProgressHandler completion endpoints, the only writers in the app
type ProgressHandler struct {
	tracker domain.ProgressTracker
	feed    *ProgressFeed
}

// NewProgressHandler .
func NewProgressHandler(tracker domain.ProgressTracker, feed *ProgressFeed) *ProgressHandler {
	return &ProgressHandler{tracker, feed}
}

// HandleCompleteLesson mark a lesson complete for the current learner
func (ph *ProgressHandler) HandleCompleteLesson(c echo.Context) (err error) {
	courseID, err := pathID(c, "courseID")
	if err != nil {
		return err
	}
	lessonID, err := pathID(c, "lessonID")
	if err != nil {
		return err
	}

	sess := middleware.CurrentSession(c)
	record, err := ph.tracker.CompleteLesson(c.Request().Context(), sess, courseID, lessonID)
	if err != nil {
		return err
	}
	ph.feed.Publish(sess.ID, &ProgressEvent{
		Type:     EventLessonCompleted,
		CourseID: courseID,
		ItemID:   lessonID,
		Progress: record,
	})
	return c.JSON(http.StatusOK, record)
}

// HandleCompleteAssignment mark an assignment complete for the current learner
func (ph *ProgressHandler) HandleCompleteAssignment(c echo.Context) (err error) {
	courseID, err := pathID(c, "courseID")
	if err != nil {
		return err
	}
	assignmentID, err := pathID(c, "assignmentID")
	if err != nil {
		return err
	}

	sess := middleware.CurrentSession(c)
	record, err := ph.tracker.CompleteAssignment(c.Request().Context(), sess, courseID, assignmentID)
	if err != nil {
		return err
	}
	ph.feed.Publish(sess.ID, &ProgressEvent{
		Type:     EventAssignmentCompleted,
		CourseID: courseID,
		ItemID:   assignmentID,
		Progress: record,
	})
	return c.JSON(http.StatusOK, record)
}

package domain

import "context"

// ProgressModel the one mutable entity the client owns: a learner's
// completion state for a single course. The identifier is assigned by the
// remote store on creation. Course reference never changes once set.
type ProgressModel struct {
	ID                   int                `json:"id"`
	Course               *CourseModel       `json:"course"`
	CompletedLessons     []*LessonModel     `json:"completed_lessons"`
	CompletedAssignments []*AssignmentModel `json:"completed_assignments"`
}

// CourseID course reference of the record, 0 if unset
func (p *ProgressModel) CourseID() int {
	if p.Course == nil {
		return 0
	}
	return p.Course.ID
}

// HasLesson membership test on the completed-lesson set
func (p *ProgressModel) HasLesson(lessonID int) bool {
	for _, l := range p.CompletedLessons {
		if l.ID == lessonID {
			return true
		}
	}
	return false
}

// HasAssignment membership test on the completed-assignment set
func (p *ProgressModel) HasAssignment(assignmentID int) bool {
	for _, a := range p.CompletedAssignments {
		if a.ID == assignmentID {
			return true
		}
	}
	return false
}

// ProgressTracker resolve, lazily create and mutate the learner's per-course
// progress record.
//
// Resolve returns (nil, nil) when the learner has no record for the course,
// a normal outcome for a course they never interacted with. All operations
// fail with ErrUnauthenticated before any network access when the session
// holds no credential.
type ProgressTracker interface {
	List(ctx context.Context, sess *SessionModel) ([]*ProgressModel, error)
	Resolve(ctx context.Context, sess *SessionModel, courseID int) (*ProgressModel, error)
	Ensure(ctx context.Context, sess *SessionModel, courseID int) (*ProgressModel, error)
	CompleteLesson(ctx context.Context, sess *SessionModel, courseID, lessonID int) (*ProgressModel, error)
	CompleteAssignment(ctx context.Context, sess *SessionModel, courseID, assignmentID int) (*ProgressModel, error)
}

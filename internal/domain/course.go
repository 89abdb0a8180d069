package domain

import (
	"context"
	"encoding/json"
)

// InstructorModel course author, display only
type InstructorModel struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type CourseModel struct {
	ID          int              `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Difficulty  string           `json:"difficulty"`
	Image       string           `json:"image,omitempty"`
	Rating      float32          `json:"rating"`
	RatingCount int              `json:"rating_count"`
	Instructor  *InstructorModel `json:"instructor,omitempty"`
	Lessons     []*LessonModel   `json:"lessons"`
}

type LessonModel struct {
	ID          int                `json:"id"`
	Title       string             `json:"title"`
	Content     string             `json:"content,omitempty"`
	Assignments []*AssignmentModel `json:"assignments"`
}

type AssignmentModel struct {
	ID               int             `json:"id"`
	LessonID         int             `json:"lesson,omitempty"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	TestCases        json.RawMessage `json:"test_cases,omitempty"`
	SolutionTemplate string          `json:"solution_template,omitempty"`
}

// CatalogReader read-only accessors for the course catalog. The catalog is
// owned by the remote store, the client never mutates it.
type CatalogReader interface {
	ListCourses(ctx context.Context, difficulty string) ([]*CourseModel, error)
	GetCourse(ctx context.Context, courseID int) (*CourseModel, error)
	GetLesson(ctx context.Context, lessonID int) (*LessonModel, error)
	GetAssignment(ctx context.Context, sess *SessionModel, assignmentID int) (*AssignmentModel, error)
}

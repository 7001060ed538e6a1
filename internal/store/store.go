// Package store is the data-access boundary behind the platform functions:
// courses, assignments, enrollments, notifications, FAQs and profiles.
// Capability handlers call through these interfaces and never see which
// backend is wired in.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a lookup that matched nothing. Backends return it
// for missing rows and for rows the caller may not see, so existence never
// leaks through an ownership check.
var ErrNotFound = errors.New("store: not found")

type Course struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Credits     int    `json:"credits"`
	Instructor  string `json:"instructor,omitempty"`
	Published   bool   `json:"published"`
}

type Assignment struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueAt       time.Time `json:"due_at"`
	MaxPoints   int       `json:"max_points"`
}

type Submission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	UserID       string     `json:"user_id"`
	Body         string     `json:"body,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Points       *int       `json:"points,omitempty"`
	GradedBy     string     `json:"graded_by,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
}

type Enrollment struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	UserID     string    `json:"user_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

type FAQ struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags,omitempty"`
}

type Profile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// CourseStore reads the course catalog. ListCourses returns published
// courses; a non-empty userID additionally includes unpublished courses
// that user is enrolled in.
type CourseStore interface {
	ListCourses(ctx context.Context, userID string) ([]Course, error)
	Course(ctx context.Context, id string) (Course, error)
}

// AssignmentStore covers coursework: listing, authoring, submitting and
// grading. SubmitAssignment upserts per (assignment, user) so resubmission
// replaces the earlier attempt.
type AssignmentStore interface {
	Assignments(ctx context.Context, courseID string) ([]Assignment, error)
	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	SubmitAssignment(ctx context.Context, s Submission) (Submission, error)
	GradeSubmission(ctx context.Context, submissionID string, points int, gradedBy string) (Submission, error)
}

// EnrollmentStore tracks course membership. Enroll is idempotent: an
// existing enrollment is returned, not duplicated.
type EnrollmentStore interface {
	Enroll(ctx context.Context, courseID, userID string) (Enrollment, error)
	EnrollmentsForUser(ctx context.Context, userID string) ([]Enrollment, error)
}

// NotificationStore delivers per-user messages, newest first.
// MarkNotificationRead scopes to the owning user; another user's
// notification reads as ErrNotFound.
type NotificationStore interface {
	NotificationsForUser(ctx context.Context, userID string) ([]Notification, error)
	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

type FAQStore interface {
	SearchFAQs(ctx context.Context, query string) ([]FAQ, error)
}

type ProfileStore interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// Store is the full platform surface a function-handler set needs.
type Store interface {
	CourseStore
	AssignmentStore
	EnrollmentStore
	NotificationStore
	FAQStore
	ProfileStore
}

package functions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"educore/internal/capability"
	"educore/internal/store"
)

// --------------------- getAssignments ---------------------

type assignmentList struct {
	CourseID    string             `json:"course_id"`
	Assignments []store.Assignment `json:"assignments"`
	Count       int                `json:"count"`
}

func newGetAssignments(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "getAssignments",
		Description: "List a course's assignments with due dates and point values.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"course_id": capability.String("Course whose assignments to list."),
		}, "course_id"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			id := str(args, "course_id")
			if id == "" {
				return nil, errors.New("course_id is required")
			}
			as, err := d.Store.Assignments(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("assignments for %q: %w", id, err)
			}
			return assignmentList{CourseID: id, Assignments: as, Count: len(as)}, nil
		}),
	}
}

// --------------------- createAssignment ---------------------

func newCreateAssignment(d Deps) capability.Registration {
	return capability.Registration{
		Name:         "createAssignment",
		Description:  "Create an assignment in a course. Faculty only.",
		AllowedRoles: []string{"faculty", capability.RoleAdmin},
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"course_id":   capability.String("Course the assignment belongs to."),
			"title":       capability.String("Assignment title."),
			"description": capability.String("What the students are asked to do. Optional."),
			"due_at":      capability.String("Due date in RFC 3339 form, e.g. 2026-10-01T23:59:00Z."),
			"max_points":  capability.Integer("Maximum score. Defaults to 100."),
		}, "course_id", "title", "due_at"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			courseID := str(args, "course_id")
			title := str(args, "title")
			if courseID == "" || title == "" {
				return nil, errors.New("course_id and title are required")
			}
			dueAt, err := time.Parse(time.RFC3339, str(args, "due_at"))
			if err != nil {
				return nil, fmt.Errorf("due_at: %w", err)
			}
			maxPoints := intArg(args, "max_points", 100)
			if maxPoints <= 0 {
				return nil, errors.New("max_points must be positive")
			}
			a, err := d.Store.CreateAssignment(ctx, store.Assignment{
				CourseID:    courseID,
				Title:       title,
				Description: str(args, "description"),
				DueAt:       dueAt.UTC(),
				MaxPoints:   maxPoints,
			})
			if err != nil {
				return nil, fmt.Errorf("create assignment in %q: %w", courseID, err)
			}
			return a, nil
		}),
	}
}

// --------------------- submitAssignment ---------------------

func newSubmitAssignment(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "submitAssignment",
		Description: "Submit work for an assignment. Resubmitting replaces the earlier attempt and clears any grade on it.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"assignment_id": capability.String("Assignment being submitted to."),
			"user_id":       capability.String("Submitting user."),
			"body":          capability.String("The submission text."),
		}, "assignment_id", "user_id", "body"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			assignmentID := str(args, "assignment_id")
			userID := str(args, "user_id")
			body := str(args, "body")
			if assignmentID == "" || userID == "" {
				return nil, errors.New("assignment_id and user_id are required")
			}
			if body == "" {
				return nil, errors.New("body must not be empty")
			}
			sub, err := d.Store.SubmitAssignment(ctx, store.Submission{
				AssignmentID: assignmentID,
				UserID:       userID,
				Body:         body,
			})
			if err != nil {
				return nil, fmt.Errorf("submit to %q: %w", assignmentID, err)
			}
			return sub, nil
		}),
	}
}

// --------------------- gradeSubmission ---------------------

func newGradeSubmission(d Deps) capability.Registration {
	return capability.Registration{
		Name:         "gradeSubmission",
		Description:  "Record a grade on a submission. Faculty only.",
		AllowedRoles: []string{"faculty", capability.RoleAdmin},
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"submission_id": capability.String("Submission being graded."),
			"points":        capability.Integer("Points awarded."),
			"graded_by":     capability.String("Grader's user id."),
		}, "submission_id", "points", "graded_by"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			submissionID := str(args, "submission_id")
			gradedBy := str(args, "graded_by")
			if submissionID == "" || gradedBy == "" {
				return nil, errors.New("submission_id and graded_by are required")
			}
			points := intArg(args, "points", -1)
			if points < 0 {
				return nil, errors.New("points must be zero or positive")
			}
			sub, err := d.Store.GradeSubmission(ctx, submissionID, points, gradedBy)
			if err != nil {
				return nil, fmt.Errorf("grade %q: %w", submissionID, err)
			}
			return sub, nil
		}),
	}
}

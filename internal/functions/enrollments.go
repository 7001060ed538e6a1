package functions

import (
	"context"
	"errors"
	"fmt"

	"educore/internal/capability"
	"educore/internal/store"
)

// --------------------- enrollInCourse ---------------------

func newEnrollInCourse(d Deps) capability.Registration {
	return capability.Registration{
		Name:         "enrollInCourse",
		Description:  "Enroll a user in a course. Enrolling twice is a no-op and returns the existing enrollment.",
		AllowedRoles: []string{"student", capability.RoleAdmin},
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"course_id": capability.String("Course to enroll in."),
			"user_id":   capability.String("User being enrolled."),
		}, "course_id", "user_id"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			courseID := str(args, "course_id")
			userID := str(args, "user_id")
			if courseID == "" || userID == "" {
				return nil, errors.New("course_id and user_id are required")
			}
			e, err := d.Store.Enroll(ctx, courseID, userID)
			if err != nil {
				return nil, fmt.Errorf("enroll in %q: %w", courseID, err)
			}
			return e, nil
		}),
	}
}

// --------------------- getMyEnrollments ---------------------

// enrollmentView adds the course title so the model can answer without a
// second lookup. A failed title lookup leaves the field empty rather than
// failing the listing.
type enrollmentView struct {
	store.Enrollment
	CourseTitle string `json:"course_title,omitempty"`
}

type enrollmentList struct {
	Enrollments []enrollmentView `json:"enrollments"`
	Count       int              `json:"count"`
}

func newGetMyEnrollments(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "getMyEnrollments",
		Description: "List the courses a user is enrolled in.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"user_id": capability.String("User whose enrollments to list."),
		}, "user_id"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			userID := str(args, "user_id")
			if userID == "" {
				return nil, errors.New("user_id is required")
			}
			es, err := d.Store.EnrollmentsForUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			views := make([]enrollmentView, 0, len(es))
			for _, e := range es {
				v := enrollmentView{Enrollment: e}
				if c, err := d.Store.Course(ctx, e.CourseID); err == nil {
					v.CourseTitle = c.Title
				}
				views = append(views, v)
			}
			return enrollmentList{Enrollments: views, Count: len(views)}, nil
		}),
	}
}

package functions

import (
	"context"
	"errors"
	"fmt"

	"educore/internal/capability"
	"educore/internal/store"
)

// --------------------- getCourses ---------------------

type courseList struct {
	Courses []store.Course `json:"courses"`
	Count   int            `json:"count"`
}

func newGetCourses(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "getCourses",
		Description: "List the published courses. With user_id, unpublished courses that user is enrolled in are included.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"user_id": capability.String("User whose private enrollments should also be visible. Optional."),
		}),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			courses, err := d.Store.ListCourses(ctx, str(args, "user_id"))
			if err != nil {
				return nil, err
			}
			return courseList{Courses: courses, Count: len(courses)}, nil
		}),
	}
}

// --------------------- getCourseDetails ---------------------

func newGetCourseDetails(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "getCourseDetails",
		Description: "Fetch one course by its identifier.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"course_id": capability.String("Course identifier, e.g. crs-cs101."),
		}, "course_id"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			id := str(args, "course_id")
			if id == "" {
				return nil, errors.New("course_id is required")
			}
			c, err := d.Store.Course(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("course %q: %w", id, err)
			}
			return c, nil
		}),
	}
}

// --------------------- getCourseMaterials ---------------------

type materialList struct {
	CourseID  string           `json:"course_id"`
	Materials []store.Material `json:"materials"`
	Count     int              `json:"count"`
}

func newGetCourseMaterials(d Deps) capability.Registration {
	return capability.Registration{
		Name:        "getCourseMaterials",
		Description: "List a course's materials with short-lived download links.",
		Parameters: capability.Object(map[string]*capability.ParameterSchema{
			"course_id": capability.String("Course whose materials to list."),
		}, "course_id"),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			if d.Materials == nil {
				return nil, errors.New("material storage is not configured")
			}
			id := str(args, "course_id")
			if id == "" {
				return nil, errors.New("course_id is required")
			}
			mats, err := d.Materials.ListMaterials(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("materials for %q: %w", id, err)
			}
			return materialList{CourseID: id, Materials: mats, Count: len(mats)}, nil
		}),
	}
}

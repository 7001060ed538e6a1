// Package functions defines the platform's callable capability set —
// course catalog, assignments, enrollments, notifications, FAQ search and
// profile lookup — and installs it into a capability registry. Handlers
// speak to the store layer only; they never know which backend is wired.
package functions

import (
	"educore/internal/capability"
	"educore/internal/store"
)

// Deps carries what handlers need. Store is required. Materials may be nil,
// in which case the material capability reports itself unavailable. Pool
// bounds the adapted synchronous lookups; nil runs them inline.
type Deps struct {
	Store     store.Store
	Materials store.MaterialStore
	Pool      *capability.Pool
}

// RegisterAll installs the default capability set and returns one result
// per definition for the startup pass to log. A rejected definition never
// aborts the rest.
func RegisterAll(reg *capability.Registry, d Deps) []capability.RegisterResult {
	defs := []capability.Registration{
		newGetCourses(d),
		newGetCourseDetails(d),
		newGetCourseMaterials(d),
		newGetAssignments(d),
		newCreateAssignment(d),
		newSubmitAssignment(d),
		newGradeSubmission(d),
		newEnrollInCourse(d),
		newGetMyEnrollments(d),
		newGetMyNotifications(d),
		newMarkNotificationRead(d),
		newPostNotification(d),
		newSearchFaqs(d),
		newGetMyProfile(d),
	}
	out := make([]capability.RegisterResult, 0, len(defs))
	for _, def := range defs {
		out = append(out, reg.Register(def))
	}
	return out
}

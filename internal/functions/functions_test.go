package functions

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"educore/internal/capability"
	"educore/internal/store"
	"educore/internal/tester"
)

func setup(t *testing.T) (*capability.Dispatcher, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	reg := capability.NewRegistry()
	for _, r := range RegisterAll(reg, Deps{Store: mem, Materials: mem, Pool: capability.NewPool(2)}) {
		if !r.Accepted {
			t.Fatalf("registration %s rejected: %s", r.Name, r.Reason)
		}
	}
	return capability.NewDispatcher(reg, 0, zap.NewNop()), mem
}

func call(t *testing.T, d *capability.Dispatcher, role, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := d.Execute(context.Background(), capability.CallRequest{
		Name: name, Arguments: args, CallerRole: role,
	})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	m, ok := res.Result.(map[string]any)
	if !ok {
		t.Fatalf("%s: result is %T, want an object", name, res.Result)
	}
	return m
}

func TestRegisterAllAccepted(t *testing.T) {
	reg := capability.NewRegistry()
	results := RegisterAll(reg, Deps{Store: store.NewMemory()})
	tester.Eq(t, len(results), 14)
	for _, r := range results {
		tester.True(t, r.Accepted, "%s rejected: %s", r.Name, r.Reason)
	}
	tester.Eq(t, reg.Len(), 14)
}

func TestDeclarationsFollowRoles(t *testing.T) {
	mem := store.NewMemory()
	reg := capability.NewRegistry()
	RegisterAll(reg, Deps{Store: mem})

	names := func(role string) map[string]bool {
		out := map[string]bool{}
		for _, decl := range reg.DeclarationsForRole(role) {
			out[decl.Name] = true
		}
		return out
	}

	student := names("student")
	tester.Eq(t, len(student), 11)
	tester.True(t, student["enrollInCourse"])
	tester.False(t, student["gradeSubmission"])
	tester.False(t, student["createAssignment"])
	tester.False(t, student["postNotification"])

	faculty := names("faculty")
	tester.Eq(t, len(faculty), 13)
	tester.True(t, faculty["gradeSubmission"])
	tester.False(t, faculty["enrollInCourse"])

	tester.Eq(t, len(names("admin")), 14)
	tester.Eq(t, len(names("")), 14)
}

func TestGetCoursesVisibility(t *testing.T) {
	d, _ := setup(t)

	anon := call(t, d, "", "getCourses", nil)
	tester.Eq(t, anon["count"], any(float64(3)), "anonymous sees only published courses")

	// Enrolling in the unpublished course makes it visible to that user.
	call(t, d, "student", "enrollInCourse", map[string]any{
		"course_id": "crs-cs401", "user_id": "u-alice",
	})
	mine := call(t, d, "student", "getCourses", map[string]any{"user_id": "u-alice"})
	tester.Eq(t, mine["count"], any(float64(4)))
}

func TestGetCoursesResolvesSnakeCase(t *testing.T) {
	d, _ := setup(t)
	res, err := d.Execute(context.Background(), capability.CallRequest{Name: "get_courses"})
	tester.NoErr(t, err)
	tester.Eq(t, res.Name, "getCourses")
}

func TestGetCourseDetails(t *testing.T) {
	d, _ := setup(t)
	c := call(t, d, "student", "getCourseDetails", map[string]any{"course_id": "crs-ma201"})
	tester.Eq(t, c["title"], any("Linear Algebra"))

	_, err := d.Execute(context.Background(), capability.CallRequest{
		Name: "getCourseDetails", Arguments: map[string]any{"course_id": "crs-nope"},
	})
	tester.ErrIs(t, err, store.ErrNotFound)
}

func TestGetCourseMaterials(t *testing.T) {
	d, _ := setup(t)
	out := call(t, d, "student", "getCourseMaterials", map[string]any{"course_id": "crs-cs101"})
	tester.Eq(t, out["count"], any(float64(2)))
	mats := out["materials"].([]any)
	first := mats[0].(map[string]any)
	tester.Eq(t, first["key"], any("syllabus.pdf"))
	tester.Contains(t, first["url"].(string), "memory://")
}

func TestGetCourseMaterialsUnconfigured(t *testing.T) {
	mem := store.NewMemory()
	reg := capability.NewRegistry()
	RegisterAll(reg, Deps{Store: mem}) // no material store wired
	d := capability.NewDispatcher(reg, 0, zap.NewNop())

	_, err := d.Execute(context.Background(), capability.CallRequest{
		Name: "getCourseMaterials", Arguments: map[string]any{"course_id": "crs-cs101"},
	})
	tester.True(t, err != nil)
	tester.Contains(t, err.Error(), "not configured")
}

func TestAssignmentLifecycle(t *testing.T) {
	d, _ := setup(t)

	due := time.Now().UTC().Add(72 * time.Hour).Format(time.RFC3339)
	created := call(t, d, "faculty", "createAssignment", map[string]any{
		"course_id": "crs-cs301",
		"title":     "Scheduler Lab",
		"due_at":    due,
	})
	tester.Eq(t, created["max_points"], any(float64(100)), "max_points defaults when omitted")
	tester.True(t, created["id"].(string) != "")

	listed := call(t, d, "student", "getAssignments", map[string]any{"course_id": "crs-cs301"})
	tester.Eq(t, listed["count"], any(float64(1)))

	sub := call(t, d, "student", "submitAssignment", map[string]any{
		"assignment_id": created["id"],
		"user_id":       "u-alice",
		"body":          "round robin beats FIFO here because...",
	})
	graded := call(t, d, "faculty", "gradeSubmission", map[string]any{
		"submission_id": sub["id"],
		"points":        91,
		"graded_by":     "u-bob",
	})
	tester.Eq(t, graded["points"], any(float64(91)))
	tester.Eq(t, graded["graded_by"], any("u-bob"))
}

func TestCreateAssignmentDeniedForStudents(t *testing.T) {
	d, _ := setup(t)
	_, err := d.Execute(context.Background(), capability.CallRequest{
		Name:       "createAssignment",
		Arguments:  map[string]any{"course_id": "crs-cs101", "title": "x", "due_at": "2026-10-01T00:00:00Z"},
		CallerRole: "student",
	})
	tester.ErrIs(t, err, capability.ErrNotAuthorized)
}

func TestCreateAssignmentRejectsBadDueDate(t *testing.T) {
	d, _ := setup(t)
	_, err := d.Execute(context.Background(), capability.CallRequest{
		Name:       "createAssignment",
		Arguments:  map[string]any{"course_id": "crs-cs101", "title": "x", "due_at": "next tuesday"},
		CallerRole: "faculty",
	})
	tester.True(t, err != nil)
	tester.Contains(t, err.Error(), "due_at")
}

func TestGradeSubmissionArgumentChecks(t *testing.T) {
	d, _ := setup(t)

	// Missing required points is caught by the schema before the handler.
	_, err := d.Execute(context.Background(), capability.CallRequest{
		Name:       "gradeSubmission",
		Arguments:  map[string]any{"submission_id": "sub-1", "graded_by": "u-bob"},
		CallerRole: "faculty",
	})
	tester.ErrIs(t, err, capability.ErrInvalidArguments)

	_, err = d.Execute(context.Background(), capability.CallRequest{
		Name:       "gradeSubmission",
		Arguments:  map[string]any{"submission_id": "sub-1", "points": -3, "graded_by": "u-bob"},
		CallerRole: "faculty",
	})
	tester.True(t, err != nil)
	tester.Contains(t, err.Error(), "zero or positive")
}

func TestEnrollTwiceReturnsSameEnrollment(t *testing.T) {
	d, _ := setup(t)
	args := map[string]any{"course_id": "crs-cs301", "user_id": "u-alice"}
	first := call(t, d, "student", "enrollInCourse", args)
	second := call(t, d, "student", "enrollInCourse", args)
	tester.Eq(t, first["id"], second["id"])
}

func TestGetMyEnrollmentsJoinsTitles(t *testing.T) {
	d, _ := setup(t)
	out := call(t, d, "student", "getMyEnrollments", map[string]any{"user_id": "u-alice"})
	tester.Eq(t, out["count"], any(float64(2)))
	first := out["enrollments"].([]any)[0].(map[string]any)
	tester.Eq(t, first["course_id"], any("crs-cs101"))
	tester.Eq(t, first["course_title"], any("Intro to Computer Science"))
}

func TestNotificationFlow(t *testing.T) {
	d, _ := setup(t)

	all := call(t, d, "student", "getMyNotifications", map[string]any{"user_id": "u-alice"})
	tester.Eq(t, all["count"], any(float64(2)))
	tester.Eq(t, all["unread"], any(float64(1)))

	unread := call(t, d, "student", "getMyNotifications", map[string]any{
		"user_id": "u-alice", "unread_only": true,
	})
	tester.Eq(t, unread["count"], any(float64(1)))
	only := unread["notifications"].([]any)[0].(map[string]any)
	tester.Eq(t, only["id"], any("ntf-ps1"))

	call(t, d, "student", "markNotificationRead", map[string]any{
		"notification_id": "ntf-ps1", "user_id": "u-alice",
	})
	after := call(t, d, "student", "getMyNotifications", map[string]any{
		"user_id": "u-alice", "unread_only": true,
	})
	tester.Eq(t, after["count"], any(float64(0)))
}

func TestMarkNotificationReadWrongOwner(t *testing.T) {
	d, _ := setup(t)
	_, err := d.Execute(context.Background(), capability.CallRequest{
		Name:      "markNotificationRead",
		Arguments: map[string]any{"notification_id": "ntf-ps1", "user_id": "u-bob"},
	})
	tester.ErrIs(t, err, store.ErrNotFound, "foreign notifications look nonexistent")
}

func TestPostNotificationLandsInInbox(t *testing.T) {
	d, _ := setup(t)
	call(t, d, "faculty", "postNotification", map[string]any{
		"user_id": "u-alice", "title": "Office hours moved", "body": "Now Thursdays 14:00.",
	})
	out := call(t, d, "student", "getMyNotifications", map[string]any{"user_id": "u-alice"})
	tester.Eq(t, out["count"], any(float64(3)))
	newest := out["notifications"].([]any)[0].(map[string]any)
	tester.Eq(t, newest["title"], any("Office hours moved"))

	_, err := d.Execute(context.Background(), capability.CallRequest{
		Name:       "postNotification",
		Arguments:  map[string]any{"user_id": "u-alice", "title": "x"},
		CallerRole: "student",
	})
	tester.ErrIs(t, err, capability.ErrNotAuthorized)
}

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a seeded in-process Store for tests and offline runs. Safe for
// concurrent use.
type Memory struct {
	mu            sync.RWMutex
	courses       map[string]Course
	assignments   map[string]Assignment
	submissions   map[string]Submission
	enrollments   map[string]Enrollment
	notifications map[string]Notification
	faqs          []FAQ
	profiles      map[string]Profile
	materials     map[string][]Material
}

var (
	_ Store         = (*Memory)(nil)
	_ MaterialStore = (*Memory)(nil)
)

// NewMemory returns a store preloaded with a small demo campus.
func NewMemory() *Memory {
	now := time.Now().UTC()
	m := &Memory{
		courses:       map[string]Course{},
		assignments:   map[string]Assignment{},
		submissions:   map[string]Submission{},
		enrollments:   map[string]Enrollment{},
		notifications: map[string]Notification{},
		profiles:      map[string]Profile{},
		materials:     map[string][]Material{},
	}

	for _, c := range []Course{
		{ID: "crs-cs101", Code: "CS101", Title: "Intro to Computer Science", Description: "Programs, data, and how to think about both.", Credits: 3, Instructor: "Dr. Imai", Published: true},
		{ID: "crs-ma201", Code: "MATH201", Title: "Linear Algebra", Description: "Vectors, matrices, eigenvalues.", Credits: 4, Instructor: "Prof. Okafor", Published: true},
		{ID: "crs-cs301", Code: "CS301", Title: "Operating Systems", Description: "Processes, memory, filesystems.", Credits: 3, Instructor: "Dr. Imai", Published: true},
		{ID: "crs-cs401", Code: "CS401", Title: "Advanced Compilers", Description: "Draft syllabus, not yet offered.", Credits: 3, Instructor: "Dr. Sato", Published: false},
	} {
		m.courses[c.ID] = c
	}

	for _, a := range []Assignment{
		{ID: "asg-ps1", CourseID: "crs-cs101", Title: "Problem Set 1", Description: "Loops and recursion.", DueAt: now.Add(7 * 24 * time.Hour), MaxPoints: 100},
		{ID: "asg-essay", CourseID: "crs-cs101", Title: "Essay: History of Computing", DueAt: now.Add(21 * 24 * time.Hour), MaxPoints: 50},
		{ID: "asg-matrix", CourseID: "crs-ma201", Title: "Matrix Worksheet", DueAt: now.Add(5 * 24 * time.Hour), MaxPoints: 20},
	} {
		m.assignments[a.ID] = a
	}

	for _, p := range []Profile{
		{UserID: "u-alice", Name: "Alice Tanaka", Email: "alice@example.edu", Role: "student"},
		{UserID: "u-bob", Name: "Bob Ueda", Email: "bob@example.edu", Role: "faculty"},
		{UserID: "u-admin", Name: "Site Admin", Email: "admin@example.edu", Role: "admin"},
	} {
		m.profiles[p.UserID] = p
	}

	for _, e := range []Enrollment{
		{ID: "enr-1", CourseID: "crs-cs101", UserID: "u-alice", EnrolledAt: now.Add(-30 * 24 * time.Hour)},
		{ID: "enr-2", CourseID: "crs-ma201", UserID: "u-alice", EnrolledAt: now.Add(-29 * 24 * time.Hour)},
	} {
		m.enrollments[e.ID] = e
	}

	for _, n := range []Notification{
		{ID: "ntf-welcome", UserID: "u-alice", Title: "Welcome to the platform", Body: "Your account is ready.", CreatedAt: now.Add(-30 * 24 * time.Hour), Read: true},
		{ID: "ntf-ps1", UserID: "u-alice", Title: "Problem Set 1 posted", Body: "Due in one week.", CreatedAt: now.Add(-2 * time.Hour)},
	} {
		m.notifications[n.ID] = n
	}

	m.faqs = []FAQ{
		{ID: "faq-enroll", Question: "How do I enroll in a course?", Answer: "Open the course page and press Enroll, or ask the assistant to enroll you.", Tags: []string{"enrollment"}},
		{ID: "faq-deadline", Question: "When is the enrollment deadline?", Answer: "Two weeks after term start.", Tags: []string{"enrollment", "dates"}},
		{ID: "faq-grading", Question: "What grading scale is used?", Answer: "Percentage scores; 60% passes.", Tags: []string{"grading"}},
		{ID: "faq-password", Question: "I forgot my password.", Answer: "Use the reset link on the sign-in page.", Tags: []string{"account"}},
	}

	m.materials["crs-cs101"] = []Material{
		{Key: "syllabus.pdf", Name: "Course syllabus", ContentType: "application/pdf", Size: 48231},
		{Key: "week1-slides.pdf", Name: "Week 1 slides", ContentType: "application/pdf", Size: 220114},
	}
	m.materials["crs-ma201"] = []Material{
		{Key: "notes.pdf", Name: "Lecture notes", ContentType: "application/pdf", Size: 90210},
	}

	return m
}

func (m *Memory) ListCourses(ctx context.Context, userID string) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enrolled := map[string]bool{}
	if userID != "" {
		for _, e := range m.enrollments {
			if e.UserID == userID {
				enrolled[e.CourseID] = true
			}
		}
	}
	out := make([]Course, 0, len(m.courses))
	for _, c := range m.courses {
		if c.Published || enrolled[c.ID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) Course(ctx context.Context, id string) (Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[strings.TrimSpace(id)]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) Assignments(ctx context.Context, courseID string) ([]Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.courses[courseID]; !ok {
		return nil, ErrNotFound
	}
	out := []Assignment{}
	for _, a := range m.assignments {
		if a.CourseID == courseID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out, nil
}

func (m *Memory) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[a.CourseID]; !ok {
		return Assignment{}, ErrNotFound
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.assignments[a.ID] = a
	return a, nil
}

func (m *Memory) SubmitAssignment(ctx context.Context, s Submission) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[s.AssignmentID]; !ok {
		return Submission{}, ErrNotFound
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = time.Now().UTC()
	}
	// Resubmission replaces the earlier attempt and clears its grade.
	for id, old := range m.submissions {
		if old.AssignmentID == s.AssignmentID && old.UserID == s.UserID {
			s.ID = id
			m.submissions[id] = s
			return s, nil
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.submissions[s.ID] = s
	return s, nil
}

func (m *Memory) GradeSubmission(ctx context.Context, submissionID string, points int, gradedBy string) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[submissionID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	now := time.Now().UTC()
	s.Points = &points
	s.GradedBy = gradedBy
	s.GradedAt = &now
	m.submissions[submissionID] = s
	return s, nil
}

func (m *Memory) Enroll(ctx context.Context, courseID, userID string) (Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[courseID]; !ok {
		return Enrollment{}, ErrNotFound
	}
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.UserID == userID {
			return e, nil
		}
	}
	e := Enrollment{ID: uuid.NewString(), CourseID: courseID, UserID: userID, EnrolledAt: time.Now().UTC()}
	m.enrollments[e.ID] = e
	return e, nil
}

func (m *Memory) EnrollmentsForUser(ctx context.Context, userID string) ([]Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Enrollment{}
	for _, e := range m.enrollments {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out, nil
}

func (m *Memory) NotificationsForUser(ctx context.Context, userID string) ([]Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Notification{}
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateNotification(ctx context.Context, n Notification) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.notifications[n.ID] = n
	return n, nil
}

func (m *Memory) MarkNotificationRead(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	m.notifications[id] = n
	return nil
}

func (m *Memory) SearchFAQs(ctx context.Context, query string) ([]FAQ, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]FAQ{}, m.faqs...), nil
	}
	out := []FAQ{}
	for _, f := range m.faqs {
		if strings.Contains(strings.ToLower(f.Question), q) ||
			strings.Contains(strings.ToLower(f.Answer), q) ||
			tagMatch(f.Tags, q) {
			out = append(out, f)
		}
	}
	return out, nil
}

func tagMatch(tags []string, q string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func (m *Memory) Profile(ctx context.Context, userID string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListMaterials(ctx context.Context, courseID string) ([]Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.courses[courseID]; !ok {
		return nil, ErrNotFound
	}
	out := append([]Material{}, m.materials[courseID]...)
	for i := range out {
		out[i].URL = "memory://" + courseID + "/" + out[i].Key
	}
	return out, nil
}

func (m *Memory) MaterialURL(ctx context.Context, courseID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mat := range m.materials[courseID] {
		if mat.Key == key {
			return "memory://" + courseID + "/" + key, nil
		}
	}
	return "", ErrNotFound
}

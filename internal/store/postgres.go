package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const courseCacheSize = 256

// Postgres backs the Store with a relational database. Course rows are
// immutable through this API, so lookups sit behind a small LRU.
type Postgres struct {
	db         *sql.DB
	courses    *lru.Cache[string, Course]
	schemaOnce sync.Once
	schemaErr  error
}

var _ Store = (*Postgres)(nil)

// OpenPostgres opens and pings a pgx-driven connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("store: postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgres(db *sql.DB) *Postgres {
	cache, _ := lru.New[string, Course](courseCacheSize)
	return &Postgres{db: db, courses: cache}
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    credits INT NOT NULL DEFAULT 0,
    instructor TEXT NOT NULL DEFAULT '',
    published BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS assignments (
    id TEXT PRIMARY KEY,
    course_id TEXT NOT NULL REFERENCES courses(id),
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    due_at TIMESTAMP WITH TIME ZONE NOT NULL,
    max_points INT NOT NULL DEFAULT 100
);
CREATE TABLE IF NOT EXISTS submissions (
    id TEXT PRIMARY KEY,
    assignment_id TEXT NOT NULL REFERENCES assignments(id),
    user_id TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    points INT,
    graded_by TEXT NOT NULL DEFAULT '',
    graded_at TIMESTAMP WITH TIME ZONE,
    UNIQUE(assignment_id, user_id)
);
CREATE TABLE IF NOT EXISTS enrollments (
    id TEXT PRIMARY KEY,
    course_id TEXT NOT NULL REFERENCES courses(id),
    user_id TEXT NOT NULL,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE(course_id, user_id)
);
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    is_read BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);
CREATE TABLE IF NOT EXISTS faqs (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT 'student'
);
`)
	})
	return s.schemaErr
}

const courseColumns = "id, code, title, description, credits, instructor, published"

func scanCourse(row interface{ Scan(...any) error }) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Code, &c.Title, &c.Description, &c.Credits, &c.Instructor, &c.Published)
	return c, err
}

func (s *Postgres) ListCourses(ctx context.Context, userID string) ([]Course, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var (
		rows *sql.Rows
		err  error
	)
	if userID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+courseColumns+` FROM courses WHERE published ORDER BY code`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+courseColumns+` FROM courses c
			 WHERE c.published OR EXISTS (
			     SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.user_id = $1
			 ) ORDER BY code`, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) Course(ctx context.Context, id string) (Course, error) {
	id = strings.TrimSpace(id)
	if s.courses != nil {
		if c, ok := s.courses.Get(id); ok {
			return c, nil
		}
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Course{}, err
	}
	c, err := scanCourse(s.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, err
	}
	if s.courses != nil {
		s.courses.Add(id, c)
	}
	return c, nil
}

func (s *Postgres) Assignments(ctx context.Context, courseID string) ([]Assignment, error) {
	if _, err := s.Course(ctx, courseID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, title, description, due_at, max_points
		 FROM assignments WHERE course_id = $1 ORDER BY due_at, id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.CourseID, &a.Title, &a.Description, &a.DueAt, &a.MaxPoints); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	if _, err := s.Course(ctx, a.CourseID); err != nil {
		return Assignment{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (id, course_id, title, description, due_at, max_points)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.CourseID, a.Title, a.Description, a.DueAt, a.MaxPoints)
	if err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (s *Postgres) SubmitAssignment(ctx context.Context, sub Submission) (Submission, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Submission{}, err
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM assignments WHERE id = $1)`, sub.AssignmentID).Scan(&exists); err != nil {
		return Submission{}, err
	}
	if !exists {
		return Submission{}, ErrNotFound
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	// Resubmission replaces the earlier attempt and clears its grade.
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO submissions (id, assignment_id, user_id, body, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (assignment_id, user_id)
		 DO UPDATE SET body = EXCLUDED.body, submitted_at = EXCLUDED.submitted_at,
		               points = NULL, graded_by = '', graded_at = NULL
		 RETURNING id`,
		sub.ID, sub.AssignmentID, sub.UserID, sub.Body, sub.SubmittedAt).Scan(&sub.ID)
	if err != nil {
		return Submission{}, err
	}
	sub.Points = nil
	sub.GradedBy = ""
	sub.GradedAt = nil
	return sub, nil
}

func (s *Postgres) GradeSubmission(ctx context.Context, submissionID string, points int, gradedBy string) (Submission, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Submission{}, err
	}
	var sub Submission
	err := s.db.QueryRowContext(ctx,
		`UPDATE submissions SET points = $2, graded_by = $3, graded_at = NOW()
		 WHERE id = $1
		 RETURNING id, assignment_id, user_id, body, submitted_at, points, graded_by, graded_at`,
		submissionID, points, gradedBy).
		Scan(&sub.ID, &sub.AssignmentID, &sub.UserID, &sub.Body, &sub.SubmittedAt, &sub.Points, &sub.GradedBy, &sub.GradedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (s *Postgres) Enroll(ctx context.Context, courseID, userID string) (Enrollment, error) {
	if _, err := s.Course(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	e := Enrollment{CourseID: courseID, UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO enrollments (id, course_id, user_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (course_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id, enrolled_at`,
		uuid.NewString(), courseID, userID).Scan(&e.ID, &e.EnrolledAt)
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func (s *Postgres) EnrollmentsForUser(ctx context.Context, userID string) ([]Enrollment, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, user_id, enrolled_at
		 FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Enrollment{}
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.CourseID, &e.UserID, &e.EnrolledAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) NotificationsForUser(ctx context.Context, userID string) ([]Notification, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, body, created_at, is_read
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.CreatedAt, &n.Read); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateNotification(ctx context.Context, n Notification) (Notification, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Notification{}, err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, body, created_at, is_read)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Title, n.Body, n.CreatedAt, n.Read)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (s *Postgres) MarkNotificationRead(ctx context.Context, id, userID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) SearchFAQs(ctx context.Context, query string) ([]FAQ, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, tags FROM faqs
		 WHERE $1 = '' OR question ILIKE '%' || $1 || '%'
		    OR answer ILIKE '%' || $1 || '%'
		    OR tags ILIKE '%' || $1 || '%'
		 ORDER BY id`, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FAQ{}
	for rows.Next() {
		var (
			f    FAQ
			tags string
		)
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer, &tags); err != nil {
			return nil, err
		}
		if tags != "" {
			f.Tags = strings.Split(tags, ",")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Postgres) Profile(ctx context.Context, userID string) (Profile, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Profile{}, err
	}
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, role FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Name, &p.Email, &p.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

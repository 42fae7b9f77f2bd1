package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnrollmentStore persists enrollments and per-lesson progress
type EnrollmentStore struct {
	conns *ConnectionManager
}

// NewEnrollmentStore creates an enrollment store
func NewEnrollmentStore(conns *ConnectionManager) *EnrollmentStore {
	return &EnrollmentStore{conns: conns}
}

const enrollmentColumns = `id, student_id, course_id, status, progress_percentage, enrollment_date, completion_date`

func scanEnrollment(row *sql.Row) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.Status, &e.ProgressPercentage, &e.EnrollmentDate, &e.CompletionDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}
	return &e, nil
}

// Create enrolls a student in a course. A second enrollment in the same
// course fails with ErrDuplicate.
func (s *EnrollmentStore) Create(ctx context.Context, studentID, courseID int64) (*Enrollment, error) {
	row := s.conns.Primary().QueryRowContext(ctx,
		`INSERT INTO enrollments (student_id, course_id, status)
		 VALUES ($1, $2, 'ENROLLED')
		 RETURNING `+enrollmentColumns, studentID, courseID)
	enrollment, err := scanEnrollment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return enrollment, nil
}

// Get returns an enrollment by id
func (s *EnrollmentStore) Get(ctx context.Context, id int64) (*Enrollment, error) {
	row := s.conns.Replica().QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
	return scanEnrollment(row)
}

// ListByStudent returns a student's enrollments, newest first
func (s *EnrollmentStore) ListByStudent(ctx context.Context, studentID int64) ([]*Enrollment, error) {
	rows, err := s.conns.Replica().QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE student_id = $1 ORDER BY enrollment_date DESC`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*Enrollment
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.Status, &e.ProgressPercentage, &e.EnrollmentDate, &e.CompletionDate); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, &e)
	}
	return enrollments, rows.Err()
}

// CompleteLesson marks a lesson done within an enrollment and recomputes
// progress. Completing the last published lesson completes the enrollment.
// The whole step runs in one transaction.
func (s *EnrollmentStore) CompleteLesson(ctx context.Context, enrollmentID, lessonID int64) (*Enrollment, error) {
	tx, err := s.conns.Primary().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	// upsert keeps the call idempotent: completing twice is a no-op
	_, err = tx.ExecContext(ctx,
		`INSERT INTO lesson_progress (enrollment_id, lesson_id, is_completed, completed_at, last_accessed_at)
		 VALUES ($1, $2, TRUE, $3, $3)
		 ON CONFLICT (enrollment_id, lesson_id)
		 DO UPDATE SET is_completed = TRUE,
		               completed_at = COALESCE(lesson_progress.completed_at, $3),
		               last_accessed_at = $3`,
		enrollmentID, lessonID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record lesson completion: %w", err)
	}

	var completed, published int
	err = tx.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM lesson_progress lp
		      JOIN lessons l ON l.id = lp.lesson_id AND l.is_published
		    WHERE lp.enrollment_id = $1 AND lp.is_completed),
		   (SELECT COUNT(*) FROM lessons l
		      JOIN enrollments e ON e.course_id = l.course_id
		    WHERE e.id = $1 AND l.is_published)`,
		enrollmentID).Scan(&completed, &published)
	if err != nil {
		return nil, fmt.Errorf("failed to compute progress: %w", err)
	}

	progress := 0.0
	if published > 0 {
		progress = float64(completed) / float64(published) * 100
	}

	var row *sql.Row
	if published > 0 && completed >= published {
		row = tx.QueryRowContext(ctx,
			`UPDATE enrollments
			 SET progress_percentage = $2, status = 'COMPLETED', completion_date = COALESCE(completion_date, $3)
			 WHERE id = $1
			 RETURNING `+enrollmentColumns, enrollmentID, progress, now)
	} else {
		row = tx.QueryRowContext(ctx,
			`UPDATE enrollments SET progress_percentage = $2 WHERE id = $1
			 RETURNING `+enrollmentColumns, enrollmentID, progress)
	}

	enrollment, err := scanEnrollment(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lesson completion: %w", err)
	}
	return enrollment, nil
}

// ListProgress returns the per-lesson progress rows for an enrollment
func (s *EnrollmentStore) ListProgress(ctx context.Context, enrollmentID int64) ([]*LessonProgress, error) {
	rows, err := s.conns.Replica().QueryContext(ctx,
		`SELECT id, enrollment_id, lesson_id, is_completed, completed_at, last_accessed_at
		 FROM lesson_progress WHERE enrollment_id = $1 ORDER BY lesson_id`,
		enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}
	defer rows.Close()

	var progress []*LessonProgress
	for rows.Next() {
		var p LessonProgress
		if err := rows.Scan(&p.ID, &p.EnrollmentID, &p.LessonID, &p.IsCompleted, &p.CompletedAt, &p.LastAccessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lesson progress: %w", err)
		}
		progress = append(progress, &p)
	}
	return progress, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LessonStore persists lessons
type LessonStore struct {
	conns *ConnectionManager
}

// NewLessonStore creates a lesson store
func NewLessonStore(conns *ConnectionManager) *LessonStore {
	return &LessonStore{conns: conns}
}

const lessonColumns = `id, course_id, title, content_url, text_content, order_index, is_published, created_at, updated_at`

func scanLesson(row *sql.Row) (*Lesson, error) {
	var l Lesson
	err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.ContentURL, &l.TextContent, &l.OrderIndex, &l.IsPublished, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}
	return &l, nil
}

// Create inserts a lesson. A zero OrderIndex places it after the course's
// current last lesson.
func (s *LessonStore) Create(ctx context.Context, lesson *Lesson) (*Lesson, error) {
	db := s.conns.Primary()

	if lesson.OrderIndex == 0 {
		err := db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index), 0) + 1 FROM lessons WHERE course_id = $1`,
			lesson.CourseID).Scan(&lesson.OrderIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to compute order index: %w", err)
		}
	}

	row := db.QueryRowContext(ctx,
		`INSERT INTO lessons (course_id, title, content_url, text_content, order_index, is_published)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+lessonColumns,
		lesson.CourseID, lesson.Title, lesson.ContentURL, lesson.TextContent, lesson.OrderIndex, lesson.IsPublished)
	return scanLesson(row)
}

// Get returns a lesson by id
func (s *LessonStore) Get(ctx context.Context, id int64) (*Lesson, error) {
	row := s.conns.Replica().QueryRowContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id)
	return scanLesson(row)
}

// ListByCourse returns a course's lessons in order. publishedOnly hides
// unpublished lessons from students.
func (s *LessonStore) ListByCourse(ctx context.Context, courseID int64, publishedOnly bool) ([]*Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE course_id = $1`
	if publishedOnly {
		query += ` AND is_published`
	}
	query += ` ORDER BY order_index, id`

	rows, err := s.conns.Replica().QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.ContentURL, &l.TextContent, &l.OrderIndex, &l.IsPublished, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, &l)
	}
	return lessons, rows.Err()
}

// CountPublished returns the number of published lessons in a course
func (s *LessonStore) CountPublished(ctx context.Context, courseID int64) (int, error) {
	var count int
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lessons WHERE course_id = $1 AND is_published`, courseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}
	return count, nil
}

// Update rewrites the mutable lesson fields
func (s *LessonStore) Update(ctx context.Context, lesson *Lesson) (*Lesson, error) {
	row := s.conns.Primary().QueryRowContext(ctx,
		`UPDATE lessons
		 SET title = $2, content_url = $3, text_content = $4, order_index = $5, is_published = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+lessonColumns,
		lesson.ID, lesson.Title, lesson.ContentURL, lesson.TextContent, lesson.OrderIndex, lesson.IsPublished)
	return scanLesson(row)
}

// Delete removes a lesson
func (s *LessonStore) Delete(ctx context.Context, id int64) error {
	result, err := s.conns.Primary().ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

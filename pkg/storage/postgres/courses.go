package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CourseStore persists courses. Single-course reads go through the cache
// when one is attached.
type CourseStore struct {
	conns *ConnectionManager
	cache *CourseCache
}

// NewCourseStore creates a course store. cache may be nil.
func NewCourseStore(conns *ConnectionManager, cache *CourseCache) *CourseStore {
	return &CourseStore{conns: conns, cache: cache}
}

const courseColumns = `id, title, description, teacher_id, price, duration_hours, status, created_at, updated_at`

func scanCourse(row *sql.Row) (*Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.TeacherID, &c.Price, &c.DurationHours, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}
	return &c, nil
}

// Create inserts a new course in DRAFT status unless one is given
func (s *CourseStore) Create(ctx context.Context, course *Course) (*Course, error) {
	if course.Status == "" {
		course.Status = CourseDraft
	}
	row := s.conns.Primary().QueryRowContext(ctx,
		`INSERT INTO courses (title, description, teacher_id, price, duration_hours, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+courseColumns,
		course.Title, course.Description, course.TeacherID, course.Price, course.DurationHours, course.Status)
	return scanCourse(row)
}

// Get returns a course by id, consulting the cache first
func (s *CourseStore) Get(ctx context.Context, id int64) (*Course, error) {
	if s.cache != nil {
		if course, ok := s.cache.Get(id); ok {
			return course, nil
		}
	}

	row := s.conns.Replica().QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	course, err := scanCourse(row)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(course)
	}
	return course, nil
}

// CourseFilter narrows a course listing. Zero values impose no constraint.
// Keyword matches title or description, case-insensitively.
type CourseFilter struct {
	Status    CourseStatus
	Keyword   string
	TeacherID int64
}

func (f CourseFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Keyword != "" {
		args = append(args, "%"+f.Keyword+"%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if f.TeacherID != 0 {
		args = append(args, f.TeacherID)
		clauses = append(clauses, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns a page of courses matching the filter plus the total count
func (s *CourseStore) List(ctx context.Context, filter CourseFilter, limit, offset int) ([]*Course, int, error) {
	db := s.conns.Replica()
	where, args := filter.where()

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count courses: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+courseColumns+` FROM courses%s ORDER BY id LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)

	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.TeacherID, &c.Price, &c.DurationHours, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, &c)
	}
	return courses, total, rows.Err()
}

// Update rewrites the mutable course fields and invalidates the cache
func (s *CourseStore) Update(ctx context.Context, course *Course) (*Course, error) {
	row := s.conns.Primary().QueryRowContext(ctx,
		`UPDATE courses
		 SET title = $2, description = $3, price = $4, duration_hours = $5, status = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+courseColumns,
		course.ID, course.Title, course.Description, course.Price, course.DurationHours, course.Status)
	updated, err := scanCourse(row)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(course.ID)
	}
	return updated, nil
}

// Delete removes a course and its lessons
func (s *CourseStore) Delete(ctx context.Context, id int64) error {
	result, err := s.conns.Primary().ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReviewStore persists course reviews
type ReviewStore struct {
	conns *ConnectionManager
}

// NewReviewStore creates a review store
func NewReviewStore(conns *ConnectionManager) *ReviewStore {
	return &ReviewStore{conns: conns}
}

const reviewColumns = `id, course_id, student_id, rating, comment, created_at`

// Create inserts a review. A second review of the same course by the same
// student fails with ErrDuplicate.
func (s *ReviewStore) Create(ctx context.Context, review *Review) (*Review, error) {
	row := s.conns.Primary().QueryRowContext(ctx,
		`INSERT INTO reviews (course_id, student_id, rating, comment)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+reviewColumns,
		review.CourseID, review.StudentID, review.Rating, review.Comment)

	var r Review
	err := row.Scan(&r.ID, &r.CourseID, &r.StudentID, &r.Rating, &r.Comment, &r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return &r, nil
}

// ListByCourse returns a course's reviews plus the average rating
func (s *ReviewStore) ListByCourse(ctx context.Context, courseID int64) ([]*Review, float64, error) {
	db := s.conns.Replica()

	var average sql.NullFloat64
	if err := db.QueryRowContext(ctx,
		`SELECT AVG(rating) FROM reviews WHERE course_id = $1`, courseID).Scan(&average); err != nil {
		return nil, 0, fmt.Errorf("failed to average reviews: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE course_id = $1 ORDER BY created_at DESC`, courseID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.CourseID, &r.StudentID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, &r)
	}
	return reviews, average.Float64, rows.Err()
}

// HasEnrollment reports whether the student is (or was) enrolled in the
// course; only enrolled students may review
func (s *ReviewStore) HasEnrollment(ctx context.Context, studentID, courseID int64) (bool, error) {
	var exists bool
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)`,
		studentID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return exists, nil
}

// Delete removes a review by id
func (s *ReviewStore) Delete(ctx context.Context, id int64) error {
	result, err := s.conns.Primary().ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
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

// GetOwner returns the student id that wrote a review
func (s *ReviewStore) GetOwner(ctx context.Context, id int64) (int64, error) {
	var studentID int64
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT student_id FROM reviews WHERE id = $1`, id).Scan(&studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up review owner: %w", err)
	}
	return studentID, nil
}

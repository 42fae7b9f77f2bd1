package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied at startup; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'STUDENT',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		teacher_id BIGINT NOT NULL REFERENCES users(id),
		price NUMERIC(10,2) NOT NULL DEFAULT 0,
		duration_hours INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS lessons (
		id BIGSERIAL PRIMARY KEY,
		course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		content_url TEXT NOT NULL DEFAULT '',
		text_content TEXT NOT NULL DEFAULT '',
		order_index INT NOT NULL DEFAULT 0,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL REFERENCES users(id),
		course_id BIGINT NOT NULL REFERENCES courses(id),
		status TEXT NOT NULL DEFAULT 'ENROLLED',
		progress_percentage NUMERIC(5,2) NOT NULL DEFAULT 0,
		enrollment_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completion_date TIMESTAMPTZ,
		UNIQUE (student_id, course_id)
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_progress (
		id BIGSERIAL PRIMARY KEY,
		enrollment_id BIGINT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
		lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TIMESTAMPTZ,
		last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (enrollment_id, lesson_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id BIGSERIAL PRIMARY KEY,
		course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		student_id BIGINT NOT NULL REFERENCES users(id),
		rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (course_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_course ON lessons(course_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_student ON enrollments(student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_course ON reviews(course_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read)`,
}

// Migrate applies the schema to the primary database
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i, err)
		}
	}
	return nil
}

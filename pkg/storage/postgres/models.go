package postgres

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no row matches a lookup
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a uniqueness constraint is violated
var ErrDuplicate = errors.New("record already exists")

// CourseStatus is the publication state of a course
type CourseStatus string

const (
	CourseDraft     CourseStatus = "DRAFT"
	CoursePublished CourseStatus = "PUBLISHED"
	CourseArchived  CourseStatus = "ARCHIVED"
)

// Valid reports whether the status is a known value
func (s CourseStatus) Valid() bool {
	switch s {
	case CourseDraft, CoursePublished, CourseArchived:
		return true
	}
	return false
}

// Course is a teachable unit owned by a teacher
type Course struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	TeacherID     int64        `json:"teacher_id"`
	Price         float64      `json:"price"`
	DurationHours int          `json:"duration_hours"`
	Status        CourseStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Lesson belongs to a course; OrderIndex fixes its position
type Lesson struct {
	ID          int64     `json:"id"`
	CourseID    int64     `json:"course_id"`
	Title       string    `json:"title"`
	ContentURL  string    `json:"content_url,omitempty"`
	TextContent string    `json:"text_content,omitempty"`
	OrderIndex  int       `json:"order_index"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnrollmentStatus is the lifecycle state of an enrollment
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentDropped   EnrollmentStatus = "DROPPED"
)

// Enrollment links a student to a course. A student enrolls in a course at
// most once.
type Enrollment struct {
	ID                 int64            `json:"id"`
	StudentID          int64            `json:"student_id"`
	CourseID           int64            `json:"course_id"`
	Status             EnrollmentStatus `json:"status"`
	ProgressPercentage float64          `json:"progress_percentage"`
	EnrollmentDate     time.Time        `json:"enrollment_date"`
	CompletionDate     *time.Time       `json:"completion_date,omitempty"`
}

// LessonProgress tracks a student's completion of one lesson within an
// enrollment
type LessonProgress struct {
	ID             int64      `json:"id"`
	EnrollmentID   int64      `json:"enrollment_id"`
	LessonID       int64      `json:"lesson_id"`
	IsCompleted    bool       `json:"is_completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
}

// Review is a student's rating of a course, one per student per course
type Review struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	StudentID int64     `json:"student_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is a message delivered to a user's inbox
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

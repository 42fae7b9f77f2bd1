package postgres

import (
	"context"
	"fmt"
	"time"
)

// StudentProgressReport aggregates a student's standing across all of their
// enrollments
type StudentProgressReport struct {
	StudentID                 int64      `json:"student_id"`
	StudentName               string     `json:"student_name"`
	StudentEmail              string     `json:"student_email"`
	TotalCoursesEnrolled      int        `json:"total_courses_enrolled"`
	CompletedCourses          int        `json:"completed_courses"`
	InProgressCourses         int        `json:"in_progress_courses"`
	OverallProgressPercentage float64    `json:"overall_progress_percentage"`
	LastActivityAt            *time.Time `json:"last_activity_at,omitempty"`
}

// TeacherCoursesOverview aggregates a teacher's catalog: course counts by
// status, enrollment volume, average rating and revenue
type TeacherCoursesOverview struct {
	TeacherID        int64     `json:"teacher_id"`
	TeacherName      string    `json:"teacher_name"`
	TeacherEmail     string    `json:"teacher_email"`
	TotalCourses     int       `json:"total_courses"`
	PublishedCourses int       `json:"published_courses"`
	DraftCourses     int       `json:"draft_courses"`
	ArchivedCourses  int       `json:"archived_courses"`
	TotalEnrollments int       `json:"total_enrollments"`
	AverageRating    float64   `json:"average_rating"`
	TotalRevenue     float64   `json:"total_revenue"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReportStore runs the admin reporting aggregates. All reads go to the
// replica.
type ReportStore struct {
	conns *ConnectionManager
}

// NewReportStore creates a report store
func NewReportStore(conns *ConnectionManager) *ReportStore {
	return &ReportStore{conns: conns}
}

// StudentProgress returns the aggregate progress numbers for a student.
// Identity fields are left for the caller to fill. A student with no
// enrollments yields a zero report.
func (s *ReportStore) StudentProgress(ctx context.Context, studentID int64) (*StudentProgressReport, error) {
	report := &StudentProgressReport{StudentID: studentID}
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM enrollments WHERE student_id = $1),
		   (SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND completion_date IS NOT NULL),
		   (SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND completion_date IS NULL),
		   (SELECT COALESCE(AVG(progress_percentage), 0) FROM enrollments WHERE student_id = $1),
		   (SELECT MAX(lp.last_accessed_at) FROM lesson_progress lp
		      JOIN enrollments e ON e.id = lp.enrollment_id
		    WHERE e.student_id = $1)`,
		studentID).Scan(
		&report.TotalCoursesEnrolled,
		&report.CompletedCourses,
		&report.InProgressCourses,
		&report.OverallProgressPercentage,
		&report.LastActivityAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build student progress report: %w", err)
	}
	return report, nil
}

// TeacherOverview returns the aggregate catalog numbers for a teacher.
// Revenue is price times enrollment count, summed over the teacher's
// courses.
func (s *ReportStore) TeacherOverview(ctx context.Context, teacherID int64) (*TeacherCoursesOverview, error) {
	overview := &TeacherCoursesOverview{TeacherID: teacherID}
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM courses WHERE teacher_id = $1),
		   (SELECT COUNT(*) FROM courses WHERE teacher_id = $1 AND status = 'PUBLISHED'),
		   (SELECT COUNT(*) FROM courses WHERE teacher_id = $1 AND status = 'DRAFT'),
		   (SELECT COUNT(*) FROM courses WHERE teacher_id = $1 AND status = 'ARCHIVED'),
		   (SELECT COUNT(*) FROM enrollments e
		      JOIN courses c ON c.id = e.course_id
		    WHERE c.teacher_id = $1),
		   (SELECT COALESCE(AVG(r.rating), 0) FROM reviews r
		      JOIN courses c ON c.id = r.course_id
		    WHERE c.teacher_id = $1),
		   (SELECT COALESCE(SUM(c.price * (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id)), 0)
		      FROM courses c WHERE c.teacher_id = $1)`,
		teacherID).Scan(
		&overview.TotalCourses,
		&overview.PublishedCourses,
		&overview.DraftCourses,
		&overview.ArchivedCourses,
		&overview.TotalEnrollments,
		&overview.AverageRating,
		&overview.TotalRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build teacher courses overview: %w", err)
	}
	return overview, nil
}

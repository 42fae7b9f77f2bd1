package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// expectUserByID queues the report handlers' subject lookup
func (f *serverFixture) expectUserByID(id int64, username, fullName string, role auth.Role) {
	now := time.Now()
	f.mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(userRowColumns().AddRow(id, username, "hash", username+"@example.com", fullName, role, true, now, now))
}

func TestReportsAreAdminOnly(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("alice")
	require.NoError(t, err)

	f.expectSubjectLookup(1, "alice", auth.RoleStudent)

	rec, env := f.do(t, "GET", "/api/reports/student_progress/4", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient permissions", env.Message)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestStudentProgressReport(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("root")
	require.NoError(t, err)
	lastActivity := time.Now()

	f.expectSubjectLookup(9, "root", auth.RoleAdmin)
	f.expectUserByID(4, "alice", "Alice Smith", auth.RoleStudent)
	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments WHERE student_id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{
			"total", "completed", "in_progress", "overall", "last_activity",
		}).AddRow(3, 1, 2, 40.0, lastActivity))

	rec, env := f.do(t, "GET", "/api/reports/student_progress/4", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var report postgres.StudentProgressReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, int64(4), report.StudentID)
	assert.Equal(t, "Alice Smith", report.StudentName)
	assert.Equal(t, 3, report.TotalCoursesEnrolled)
	assert.Equal(t, 1, report.CompletedCourses)
	assert.Equal(t, 2, report.InProgressCourses)
	assert.InDelta(t, 40.0, report.OverallProgressPercentage, 0.001)
	require.NotNil(t, report.LastActivityAt)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestStudentProgressReportRejectsNonStudent(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("root")
	require.NoError(t, err)

	f.expectSubjectLookup(9, "root", auth.RoleAdmin)
	f.expectUserByID(3, "ted", "Ted Teacher", auth.RoleTeacher)

	rec, env := f.do(t, "GET", "/api/reports/student_progress/3", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "student not found", env.Message)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTeacherCoursesOverview(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("root")
	require.NoError(t, err)

	f.expectSubjectLookup(9, "root", auth.RoleAdmin)
	f.expectUserByID(3, "ted", "Ted Teacher", auth.RoleTeacher)
	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM courses WHERE teacher_id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"total", "published", "draft", "archived", "enrollments", "rating", "revenue",
		}).AddRow(4, 2, 1, 1, 35, 4.2, 1715.0))

	rec, env := f.do(t, "GET", "/api/reports/teacher_courses_overview/3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var overview postgres.TeacherCoursesOverview
	require.NoError(t, json.Unmarshal(env.Data, &overview))
	assert.Equal(t, int64(3), overview.TeacherID)
	assert.Equal(t, "Ted Teacher", overview.TeacherName)
	assert.Equal(t, 4, overview.TotalCourses)
	assert.Equal(t, 2, overview.PublishedCourses)
	assert.Equal(t, 35, overview.TotalEnrollments)
	assert.InDelta(t, 4.2, overview.AverageRating, 0.001)
	assert.InDelta(t, 1715.0, overview.TotalRevenue, 0.001)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTeacherCoursesOverviewRejectsUnknownUser(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("root")
	require.NoError(t, err)

	f.expectSubjectLookup(9, "root", auth.RoleAdmin)
	f.mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnRows(userRowColumns())

	rec, env := f.do(t, "GET", "/api/reports/teacher_courses_overview/404", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "teacher not found", env.Message)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

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

func TestCourseSearch(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("alice")
	require.NoError(t, err)
	now := time.Now()

	f.expectSubjectLookup(1, "alice", auth.RoleStudent)
	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM courses WHERE \(title ILIKE \$1 OR description ILIKE \$1\)`).
		WithArgs("%go%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectQuery(`SELECT (.+) FROM courses WHERE \(title ILIKE \$1 OR description ILIKE \$1\) ORDER BY id LIMIT \$2 OFFSET \$3`).
		WithArgs("%go%", 20, 0).
		WillReturnRows(courseRowColumns().AddRow(7, "Go 101", "intro", 9, 49.0, 10, "PUBLISHED", now, now))

	rec, env := f.do(t, "GET", "/api/courses/search?keyword=go", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var page pagedResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Total)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCourseSearchRequiresKeyword(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("alice")
	require.NoError(t, err)

	f.expectSubjectLookup(1, "alice", auth.RoleStudent)

	rec, env := f.do(t, "GET", "/api/courses/search", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "search keyword is required", env.Message)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCoursesByTeacher(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("alice")
	require.NoError(t, err)
	now := time.Now()

	f.expectSubjectLookup(1, "alice", auth.RoleStudent)
	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM courses WHERE teacher_id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	f.mock.ExpectQuery(`SELECT (.+) FROM courses WHERE teacher_id = \$1 ORDER BY id LIMIT \$2 OFFSET \$3`).
		WithArgs(int64(9), 20, 0).
		WillReturnRows(courseRowColumns().
			AddRow(7, "Go 101", "intro", 9, 49.0, 10, "PUBLISHED", now, now).
			AddRow(8, "Go 201", "advanced", 9, 79.0, 12, "DRAFT", now, now))

	rec, env := f.do(t, "GET", "/api/courses/by-teacher/9", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var page pagedResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Total)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCourseListCombinesFilters(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("alice")
	require.NoError(t, err)
	now := time.Now()

	f.expectSubjectLookup(1, "alice", auth.RoleStudent)
	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM courses WHERE status = \$1 AND \(title ILIKE \$2 OR description ILIKE \$2\)`).
		WithArgs(postgres.CoursePublished, "%go%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectQuery(`SELECT (.+) FROM courses WHERE status = \$1 AND \(title ILIKE \$2 OR description ILIKE \$2\) ORDER BY id LIMIT \$3 OFFSET \$4`).
		WithArgs(postgres.CoursePublished, "%go%", 20, 0).
		WillReturnRows(courseRowColumns().AddRow(7, "Go 101", "intro", 9, 49.0, 10, "PUBLISHED", now, now))

	rec, _ := f.do(t, "GET", "/api/courses?status=PUBLISHED&keyword=go", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

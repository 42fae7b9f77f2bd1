package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockEnrollmentStore(t *testing.T) (*EnrollmentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEnrollmentStore(NewConnectionManagerFromDB(db)), mock
}

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "course_id", "status", "progress_percentage", "enrollment_date", "completion_date",
	})
}

func TestEnrollmentStoreCreate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store, mock := newMockEnrollmentStore(t)

		mock.ExpectQuery(`INSERT INTO enrollments`).
			WithArgs(int64(1), int64(2)).
			WillReturnRows(enrollmentRows().AddRow(10, 1, 2, "ENROLLED", 0.0, time.Now(), nil))

		enrollment, err := store.Create(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, EnrollmentEnrolled, enrollment.Status)
		assert.Nil(t, enrollment.CompletionDate)
	})

	t.Run("double enrollment is a duplicate", func(t *testing.T) {
		store, mock := newMockEnrollmentStore(t)

		mock.ExpectQuery(`INSERT INTO enrollments`).
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := store.Create(context.Background(), 1, 2)
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestEnrollmentStoreCompleteLesson(t *testing.T) {
	t.Run("partial progress keeps enrollment open", func(t *testing.T) {
		store, mock := newMockEnrollmentStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO lesson_progress`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery(`SELECT`).
			WillReturnRows(sqlmock.NewRows([]string{"completed", "published"}).AddRow(1, 4))
		mock.ExpectQuery(`UPDATE enrollments SET progress_percentage = \$2 WHERE id = \$1`).
			WithArgs(int64(10), 25.0).
			WillReturnRows(enrollmentRows().AddRow(10, 1, 2, "ENROLLED", 25.0, time.Now(), nil))
		mock.ExpectCommit()

		enrollment, err := store.CompleteLesson(context.Background(), 10, 5)
		require.NoError(t, err)
		assert.Equal(t, EnrollmentEnrolled, enrollment.Status)
		assert.InDelta(t, 25.0, enrollment.ProgressPercentage, 0.01)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("last lesson completes the enrollment", func(t *testing.T) {
		store, mock := newMockEnrollmentStore(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO lesson_progress`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery(`SELECT`).
			WillReturnRows(sqlmock.NewRows([]string{"completed", "published"}).AddRow(4, 4))
		mock.ExpectQuery(`UPDATE enrollments`).
			WillReturnRows(enrollmentRows().AddRow(10, 1, 2, "COMPLETED", 100.0, now, now))
		mock.ExpectCommit()

		enrollment, err := store.CompleteLesson(context.Background(), 10, 5)
		require.NoError(t, err)
		assert.Equal(t, EnrollmentCompleted, enrollment.Status)
		require.NotNil(t, enrollment.CompletionDate)
	})

	t.Run("progress failure rolls back", func(t *testing.T) {
		store, mock := newMockEnrollmentStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO lesson_progress`).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, err := store.CompleteLesson(context.Background(), 10, 5)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnrollmentStoreListByStudent(t *testing.T) {
	store, mock := newMockEnrollmentStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM enrollments WHERE student_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(enrollmentRows().
			AddRow(10, 1, 2, "ENROLLED", 25.0, time.Now(), nil).
			AddRow(11, 1, 3, "COMPLETED", 100.0, time.Now(), time.Now()))

	enrollments, err := store.ListByStudent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, EnrollmentCompleted, enrollments[1].Status)
}

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub-io/coursehub/pkg/auth"
)

func newMockStore(t *testing.T) (*UserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserStore(NewConnectionManagerFromDB(db)), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "password_hash", "email", "full_name", "role", "is_active", "created_at", "updated_at",
	})
}

func TestUserStoreGetByLogin(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1 OR email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(userRows().AddRow(1, "alice", "hash", "alice@example.com", "Alice", "STUDENT", true, now, now))

	user, err := store.GetByLogin(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, auth.RoleStudent, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreGetByUsernameNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserStoreCreate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("bob", "hash", "bob@example.com", "Bob", auth.RoleStudent, true).
			WillReturnRows(userRows().AddRow(7, "bob", "hash", "bob@example.com", "Bob", "STUDENT", true, now, now))

		created, err := store.Create(context.Background(), &auth.User{
			Username: "bob", PasswordHash: "hash", Email: "bob@example.com",
			FullName: "Bob", Role: auth.RoleStudent, IsActive: true,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), created.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate identity", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := store.Create(context.Background(), &auth.User{Username: "bob"})
		assert.ErrorIs(t, err, auth.ErrDuplicateIdentity)
	})
}

func TestUserStoreExists(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE username = \$1\)`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := store.ExistsByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestUserStoreList(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT (.+) FROM users ORDER BY id LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 0).
		WillReturnRows(userRows().
			AddRow(1, "alice", "h", "a@x.com", "Alice", "STUDENT", true, now, now).
			AddRow(2, "bob", "h", "b@x.com", "Bob", "ADMIN", true, now, now))

	users, total, err := store.List(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 2)
	assert.Equal(t, auth.RoleAdmin, users[1].Role)
}

func TestUserStoreUpdateStatus(t *testing.T) {
	t.Run("soft delete disables the row", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE users SET is_active = \$2`).
			WithArgs(int64(1), false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.UpdateStatus(context.Background(), 1, false))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE users SET is_active = \$2`).
			WithArgs(int64(99), false).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateStatus(context.Background(), 99, false)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestUserStoreUpdateRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE users SET role = \$2`).
		WithArgs(int64(1), auth.RoleTeacher).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateRole(context.Background(), 1, auth.RoleTeacher))
}

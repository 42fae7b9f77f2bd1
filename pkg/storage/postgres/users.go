package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/coursehub-io/coursehub/pkg/auth"
)

// UserStore persists user records. It implements auth.UserStore.
type UserStore struct {
	conns *ConnectionManager
}

// NewUserStore creates a user store on the connection manager
func NewUserStore(conns *ConnectionManager) *UserStore {
	return &UserStore{conns: conns}
}

const userColumns = `id, username, password_hash, email, full_name, role, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// GetByLogin looks a user up by username or email
func (s *UserStore) GetByLogin(ctx context.Context, login string) (*auth.User, error) {
	row := s.conns.Replica().QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1`, login)
	return scanUser(row)
}

// GetByUsername looks a user up by exact username
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.conns.Replica().QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// GetByID looks a user up by id
func (s *UserStore) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := s.conns.Replica().QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// ExistsByUsername reports whether a username is taken
func (s *UserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether an email is taken
func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.conns.Replica().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// isUniqueViolation reports whether err is a postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Create inserts a new user and returns it with generated fields filled
func (s *UserStore) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	row := s.conns.Primary().QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, email, full_name, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		user.Username, user.PasswordHash, user.Email, user.FullName, user.Role, user.IsActive)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, auth.ErrDuplicateIdentity
		}
		return nil, err
	}
	return created, nil
}

// List returns a page of users ordered by id, plus the total count
func (s *UserStore) List(ctx context.Context, limit, offset int) ([]*auth.User, int, error) {
	db := s.conns.Replica()

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, total, rows.Err()
}

// UpdateProfile changes a user's email and full name
func (s *UserStore) UpdateProfile(ctx context.Context, id int64, email, fullName string) (*auth.User, error) {
	row := s.conns.Primary().QueryRowContext(ctx,
		`UPDATE users SET email = $2, full_name = $3, updated_at = NOW() WHERE id = $1
		 RETURNING `+userColumns, id, email, fullName)
	updated, err := scanUser(row)
	if err != nil && isUniqueViolation(err) {
		return nil, auth.ErrDuplicateIdentity
	}
	return updated, err
}

// UpdatePassword replaces a user's password hash
func (s *UserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return s.execOnUser(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// UpdateRole changes a user's role
func (s *UserStore) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	return s.execOnUser(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

// UpdateStatus enables or disables a user. Deletion is a soft delete
// through this call; disabled users fail authentication.
func (s *UserStore) UpdateStatus(ctx context.Context, id int64, active bool) error {
	return s.execOnUser(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (s *UserStore) execOnUser(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.conns.Primary().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

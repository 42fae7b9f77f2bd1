package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub-io/coursehub/pkg/auth"
	"github.com/coursehub-io/coursehub/pkg/middleware"
	"github.com/coursehub-io/coursehub/pkg/observability"
	"github.com/coursehub-io/coursehub/pkg/storage/postgres"
)

// serverFixture wires a full server over a mocked database so requests run
// the complete middleware chain: request id, auth, policy, handler.
type serverFixture struct {
	server      *Server
	mock        sqlmock.Sqlmock
	codec       *auth.TokenCodec
	hasher      *auth.PasswordHasher
	revocations *auth.MemoryRevocationStore
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conns := postgres.NewConnectionManagerFromDB(db)
	users := postgres.NewUserStore(conns)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	codec := auth.NewTokenCodec([]byte("test-secret"), time.Hour)
	hasher := auth.NewPasswordHasher(4)
	revocations := auth.NewMemoryRevocationStore()
	service := auth.NewService(users, codec, hasher, revocations, logger, nil)

	authenticator := middleware.NewAuthenticator(
		codec, revocations, users, logger,
		[]string{"/api/auth/login", "/api/auth/register", "/api/auth/verify"},
		[]string{"/public/"},
	)
	policy := middleware.NewPolicy(middleware.DefaultRules(), nil)

	server := NewServer(ServerConfig{
		AuthService:   service,
		Authenticator: authenticator,
		Policy:        policy,
		Users:         users,
		Courses:       postgres.NewCourseStore(conns, nil),
		Lessons:       postgres.NewLessonStore(conns),
		Enrollments:   postgres.NewEnrollmentStore(conns),
		Reviews:       postgres.NewReviewStore(conns),
		Notifications: postgres.NewNotificationStore(conns),
		Reports:       postgres.NewReportStore(conns),
		Hasher:        hasher,
		Logger:        logger,
	})

	return &serverFixture{
		server:      server,
		mock:        mock,
		codec:       codec,
		hasher:      hasher,
		revocations: revocations,
	}
}

// envelope mirrors the uniform response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func userRowColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "password_hash", "email", "full_name", "role", "is_active", "created_at", "updated_at",
	})
}

// expectSubjectLookup queues the lookup the auth middleware performs for a
// bearer token
func (f *serverFixture) expectSubjectLookup(id int64, username string, role auth.Role) {
	now := time.Now()
	f.mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
		WithArgs(username).
		WillReturnRows(userRowColumns().AddRow(id, username, "hash", username+"@example.com", "", role, true, now, now))
}

func TestServerRejectsUnauthenticated(t *testing.T) {
	f := newServerFixture(t)

	rec, env := f.do(t, "GET", "/api/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "authentication required", env.Message)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServerRoleGate(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("alice")
	require.NoError(t, err)

	f.expectSubjectLookup(1, "alice", auth.RoleStudent)

	rec, env := f.do(t, "POST", "/api/courses", token, map[string]interface{}{"title": "Go 101"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient permissions", env.Message)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServerAdminCreatesCourse(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("root")
	require.NoError(t, err)

	now := time.Now()
	f.expectSubjectLookup(9, "root", auth.RoleAdmin)
	f.mock.ExpectQuery(`INSERT INTO courses`).
		WithArgs("Go 101", "intro", int64(9), 49.0, 10, postgres.CourseDraft).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "teacher_id", "price", "duration_hours", "status", "created_at", "updated_at",
		}).AddRow(3, "Go 101", "intro", 9, 49.0, 10, "DRAFT", now, now))

	rec, env := f.do(t, "POST", "/api/courses", token, map[string]interface{}{
		"title":         "Go 101",
		"description":   "intro",
		"price":         49.0,
		"durationHours": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var course postgres.Course
	require.NoError(t, json.Unmarshal(env.Data, &course))
	assert.Equal(t, int64(3), course.ID)
	assert.Equal(t, postgres.CourseDraft, course.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServerRegisterAndLogin(t *testing.T) {
	f := newServerFixture(t)
	now := time.Now()

	hash, err := f.hasher.Hash("s3cret")
	require.NoError(t, err)

	// registration runs both uniqueness probes before the insert
	f.mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE username = \$1\)`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	f.mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE email = \$1\)`).
		WithArgs("bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	f.mock.ExpectQuery(`INSERT INTO users`).
		WillReturnRows(userRowColumns().AddRow(5, "bob", hash, "bob@example.com", "Bob", "STUDENT", true, now, now))

	rec, env := f.do(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "bob", "password": "s3cret", "email": "bob@example.com", "fullName": "Bob",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	assert.NotContains(t, string(env.Data), "password")

	f.mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1 OR email = \$1`).
		WithArgs("bob").
		WillReturnRows(userRowColumns().AddRow(5, "bob", hash, "bob@example.com", "Bob", "STUDENT", true, now, now))

	rec, env = f.do(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "bob", "password": "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var result auth.LoginResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServerLoginRejectsBadPassword(t *testing.T) {
	f := newServerFixture(t)
	now := time.Now()

	hash, err := f.hasher.Hash("right")
	require.NoError(t, err)
	f.mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1 OR email = \$1`).
		WithArgs("bob").
		WillReturnRows(userRowColumns().AddRow(5, "bob", hash, "bob@example.com", "Bob", "STUDENT", true, now, now))

	rec, env := f.do(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "bob", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// the same message covers unknown users and wrong passwords
	assert.Equal(t, auth.ErrInvalidCredentials.Error(), env.Message)
}

func TestServerLogoutRevokesToken(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("alice")
	require.NoError(t, err)

	// auth middleware lookup, then the handler's profile load
	f.expectSubjectLookup(1, "alice", auth.RoleStudent)
	f.expectSubjectLookup(1, "alice", auth.RoleStudent)
	rec, _ := f.do(t, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	f.expectSubjectLookup(1, "alice", auth.RoleStudent)
	rec, env := f.do(t, "POST", "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var result auth.LogoutResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "alice", result.Username)

	// the revoked token is now refused before any database access
	rec, _ = f.do(t, "GET", "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestServerVerifyIsPublic(t *testing.T) {
	f := newServerFixture(t)

	rec, env := f.do(t, "POST", "/api/auth/verify", "", map[string]string{"token": "not-a-jwt"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var verification auth.TokenVerification
	require.NoError(t, json.Unmarshal(env.Data, &verification))
	assert.False(t, verification.Valid)
	assert.Equal(t, "token is malformed", verification.Reason)
}

func TestServerUnknownRouteEnvelope(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.codec.Issue("alice")
	require.NoError(t, err)

	f.expectSubjectLookup(1, "alice", auth.RoleStudent)

	rec, env := f.do(t, "GET", "/api/nonsense", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "route not found", env.Message)
}

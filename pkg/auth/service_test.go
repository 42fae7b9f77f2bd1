package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub-io/coursehub/pkg/observability"
)

// fakeUserStore is an in-memory UserStore for service tests
type fakeUserStore struct {
	users   map[string]*User
	nextID  int64
	creates int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*User{}, nextID: 1}
}

func (f *fakeUserStore) GetByLogin(_ context.Context, login string) (*User, error) {
	for _, u := range f.users {
		if u.Username == login || u.Email == login {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, ok := f.users[username]
	return ok, nil
}

func (f *fakeUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) Create(_ context.Context, user *User) (*User, error) {
	f.creates++
	copied := *user
	copied.ID = f.nextID
	copied.CreatedAt = time.Now()
	f.nextID++
	f.users[copied.Username] = &copied
	return &copied, nil
}

func newTestService(t *testing.T) (*Service, *fakeUserStore) {
	t.Helper()
	store := newFakeUserStore()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := NewService(
		store,
		NewTokenCodec([]byte("test-secret"), time.Hour),
		NewPasswordHasher(4),
		NewMemoryRevocationStore(),
		logger,
		nil,
	)
	return svc, store
}

func registerAlice(t *testing.T, svc *Service) {
	t.Helper()
	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Password: "correct-horse",
		Email:    "alice@example.com",
		FullName: "Alice Smith",
	})
	require.NoError(t, err)
}

func TestServiceLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns token and sanitized account", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)

		result, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.Equal(t, "Bearer", result.TokenType)
		assert.Equal(t, "alice", result.Account.Username)
		assert.Equal(t, RoleStudent, result.Account.Role)
	})

	t.Run("login by email", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)

		result, err := svc.Login(ctx, LoginRequest{Username: "alice@example.com", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, "alice", result.Account.Username)
	})

	t.Run("wrong password and unknown user are indistinguishable", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)

		_, errWrong := svc.Login(ctx, LoginRequest{Username: "alice", Password: "wrong"})
		_, errUnknown := svc.Login(ctx, LoginRequest{Username: "nobody", Password: "whatever"})
		assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
	})

	t.Run("disabled account is rejected distinctly", func(t *testing.T) {
		svc, store := newTestService(t)
		registerAlice(t, svc)
		store.users["alice"].IsActive = false

		_, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})
}

func TestServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns student role and active status", func(t *testing.T) {
		svc, store := newTestService(t)
		view, err := svc.Register(ctx, RegisterRequest{
			Username: "bob", Password: "pw", Email: "bob@example.com", FullName: "Bob",
		})
		require.NoError(t, err)
		assert.Equal(t, RoleStudent, view.Role)
		assert.True(t, view.IsActive)
		assert.NotEqual(t, "pw", store.users["bob"].PasswordHash)
	})

	t.Run("duplicate username fails with no write", func(t *testing.T) {
		svc, store := newTestService(t)
		registerAlice(t, svc)
		before := store.creates

		_, err := svc.Register(ctx, RegisterRequest{
			Username: "alice", Password: "pw", Email: "other@example.com",
		})
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
		assert.Equal(t, before, store.creates)
	})

	t.Run("duplicate email fails with no write", func(t *testing.T) {
		svc, store := newTestService(t)
		registerAlice(t, svc)
		before := store.creates

		_, err := svc.Register(ctx, RegisterRequest{
			Username: "alice2", Password: "pw", Email: "alice@example.com",
		})
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
		assert.Equal(t, before, store.creates)
	})
}

func TestServiceVerifyToken(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh login token is valid", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)
		result, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
		require.NoError(t, err)

		verification, err := svc.VerifyToken(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.True(t, verification.Valid)
		assert.Equal(t, "alice", verification.Principal.Username)
	})

	t.Run("revoked token is invalid before expiry", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)
		result, _ := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})

		_, err := svc.Logout(ctx, result.AccessToken, "alice")
		require.NoError(t, err)

		verification, err := svc.VerifyToken(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.False(t, verification.Valid)
		assert.Contains(t, verification.Reason, "invalidated")
	})

	t.Run("garbage token is invalid, not an error", func(t *testing.T) {
		svc, _ := newTestService(t)
		verification, err := svc.VerifyToken(ctx, "garbage")
		require.NoError(t, err)
		assert.False(t, verification.Valid)
	})

	t.Run("token for deleted user is invalid", func(t *testing.T) {
		svc, store := newTestService(t)
		registerAlice(t, svc)
		result, _ := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
		delete(store.users, "alice")

		verification, err := svc.VerifyToken(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.False(t, verification.Valid)
	})

	t.Run("token for disabled user is invalid", func(t *testing.T) {
		svc, store := newTestService(t)
		registerAlice(t, svc)
		result, _ := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
		store.users["alice"].IsActive = false

		verification, err := svc.VerifyToken(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.False(t, verification.Valid)
	})

	t.Run("bearer-prefixed token verifies the same entry", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)
		result, _ := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
		svc.Logout(ctx, result.AccessToken, "alice")

		verification, err := svc.VerifyToken(ctx, "Bearer "+result.AccessToken)
		require.NoError(t, err)
		assert.False(t, verification.Valid)
	})
}

func TestServiceLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("subject mismatch leaves token usable", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)
		result, _ := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})

		_, err := svc.Logout(ctx, result.AccessToken, "bob")
		assert.ErrorIs(t, err, ErrTokenMismatch)

		verification, err := svc.VerifyToken(ctx, result.AccessToken)
		require.NoError(t, err)
		assert.True(t, verification.Valid, "mismatched logout must not revoke the token")
	})

	t.Run("expired token entry carries a sweepable expiry", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)

		svc.codec.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		result, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
		require.NoError(t, err)
		svc.codec.now = time.Now

		_, err = svc.Logout(ctx, result.AccessToken, "alice")
		require.NoError(t, err)

		store := svc.revocations.(*MemoryRevocationStore)
		require.Equal(t, 1, store.Size())
		assert.Equal(t, 0, store.Sweep(time.Now()), "entry must survive until the fallback lifetime passes")
		assert.Equal(t, 1, store.Sweep(time.Now().Add(svc.codec.TTL()+time.Minute)))
		assert.Equal(t, 0, store.Size())
	})

	t.Run("double logout is idempotent", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAlice(t, svc)
		result, _ := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})

		_, err := svc.Logout(ctx, result.AccessToken, "alice")
		require.NoError(t, err)
		_, err = svc.Logout(ctx, result.AccessToken, "alice")
		require.NoError(t, err)
	})
}

func TestServiceLogoutAll(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	registerAlice(t, svc)

	before, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	// tokens carry second-granularity timestamps; the epoch bump must land
	// strictly after the first token's issuedAt
	time.Sleep(1100 * time.Millisecond)

	result, err := svc.LogoutAll(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.LoggedOutFromAllDevices)

	verification, err := svc.VerifyToken(ctx, before.AccessToken)
	require.NoError(t, err)
	assert.False(t, verification.Valid, "token issued before logout-all must be invalid")

	time.Sleep(1100 * time.Millisecond)

	after, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	verification, err = svc.VerifyToken(ctx, after.AccessToken)
	require.NoError(t, err)
	assert.True(t, verification.Valid, "token issued after logout-all must be valid")
}

func TestServiceProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	registerAlice(t, svc)

	view, err := svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", view.Email)

	_, err = svc.Profile(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

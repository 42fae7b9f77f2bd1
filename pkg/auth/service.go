package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursehub-io/coursehub/pkg/observability"
)

// UserStore is the persistence collaborator the service depends on
type UserStore interface {
	// GetByLogin looks a user up by username or email
	GetByLogin(ctx context.Context, login string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *User) (*User, error)
}

// Service orchestrates the authentication lifecycle: login, registration,
// token verification, logout and profile retrieval.
type Service struct {
	users       UserStore
	codec       *TokenCodec
	hasher      *PasswordHasher
	revocations RevocationStore
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewService wires the service. metrics may be nil.
func NewService(users UserStore, codec *TokenCodec, hasher *PasswordHasher, revocations RevocationStore, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		users:       users,
		codec:       codec,
		hasher:      hasher,
		revocations: revocations,
		logger:      logger,
		metrics:     metrics,
	}
}

// Codec exposes the token codec for the middleware
func (s *Service) Codec() *TokenCodec {
	return s.codec
}

// Revocations exposes the revocation store for the middleware
func (s *Service) Revocations() RevocationStore {
	return s.revocations
}

func (s *Service) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countValidation(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenValidationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countRevocation() {
	if s.metrics != nil {
		s.metrics.TokensRevokedTotal.Inc()
	}
}

// Login verifies credentials and issues a token. The login may be a
// username or an email. An unknown user and a wrong password produce the
// same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetByLogin(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.countLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.countLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.countLogin("account_disabled")
		return nil, ErrAccountDisabled
	}

	token, err := s.codec.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.countLogin("success")
	s.logger.WithContext(ctx).WithField("username", user.Username).Info("user logged in")

	return &LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		Account:     user.View(),
	}, nil
}

// Register creates a new account with the default STUDENT role. Both
// uniqueness constraints are checked before any write.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*PrincipalView, error) {
	usernameTaken, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	emailTaken, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if usernameTaken || emailTaken {
		s.countRegistration("duplicate")
		return nil, ErrDuplicateIdentity
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, &User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         RoleStudent,
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.countRegistration("success")
	s.logger.WithContext(ctx).WithField("username", created.Username).Info("user registered")

	return created.View(), nil
}

// VerifyToken reports whether a token is currently usable. Revocation is
// checked before signature and expiry; a revoked-but-unexpired token is
// invalid.
func (s *Service) VerifyToken(ctx context.Context, token string) (*TokenVerification, error) {
	token = NormalizeToken(token)

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		s.countValidation("revoked")
		return &TokenVerification{Valid: false, Reason: "token has been invalidated"}, nil
	}

	claims, err := s.codec.Parse(token)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			s.countValidation("expired")
			return &TokenVerification{Valid: false, Reason: "token has expired"}, nil
		case errors.Is(err, ErrTokenBadSignature):
			s.countValidation("invalid")
			return &TokenVerification{Valid: false, Reason: "token signature is invalid"}, nil
		default:
			s.countValidation("invalid")
			return &TokenVerification{Valid: false, Reason: "token is malformed"}, nil
		}
	}

	validAfter, err := s.revocations.ValidAfter(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to check valid-after epoch: %w", err)
	}
	if !validAfter.IsZero() && claims.IssuedAt.Before(validAfter) {
		s.countValidation("revoked")
		return &TokenVerification{Valid: false, Reason: "token has been invalidated"}, nil
	}

	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.countValidation("invalid")
			return &TokenVerification{Valid: false, Reason: "user no longer exists"}, nil
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		s.countValidation("invalid")
		return &TokenVerification{Valid: false, Reason: "account is disabled"}, nil
	}

	s.countValidation("valid")
	return &TokenVerification{Valid: true, Principal: user.View(), Reason: "token is valid"}, nil
}

// Logout revokes the given token after checking that its subject matches
// the authenticated user. The token is not revoked on mismatch.
func (s *Service) Logout(ctx context.Context, token, currentUsername string) (*LogoutResult, error) {
	token = NormalizeToken(token)

	claims, err := s.codec.Parse(token)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil, err
	}

	var expiresAt time.Time
	if claims != nil {
		if claims.Subject != currentUsername {
			return nil, ErrTokenMismatch
		}
		expiresAt = claims.ExpiresAt
	} else {
		// expiry unreadable from the token; hold the entry for one full
		// lifetime so the sweep can eventually drop it
		expiresAt = time.Now().Add(s.codec.TTL())
	}

	if err := s.revocations.Revoke(ctx, token, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to revoke token: %w", err)
	}

	s.countRevocation()
	s.logger.WithContext(ctx).WithField("username", currentUsername).Info("user logged out")

	return &LogoutResult{
		Username:   currentUsername,
		LogoutTime: time.Now(),
		Message:    "logged out successfully",
	}, nil
}

// LogoutAll invalidates every outstanding token for the user by bumping the
// valid-after epoch. Tokens issued before the call fail verification.
func (s *Service) LogoutAll(ctx context.Context, username string) (*LogoutResult, error) {
	now := time.Now()
	if err := s.revocations.SetValidAfter(ctx, username, now); err != nil {
		return nil, fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	s.countRevocation()
	s.logger.WithContext(ctx).WithField("username", username).Info("user logged out from all devices")

	return &LogoutResult{
		Username:                username,
		LogoutTime:              now,
		Message:                 "logged out from all devices",
		LoggedOutFromAllDevices: true,
	}, nil
}

// Profile returns the sanitized view of the user
func (s *Service) Profile(ctx context.Context, username string) (*PrincipalView, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.View(), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"usersvc/internal/common"
	"usersvc/internal/common/security"
	"usersvc/internal/domain/model"
	"usersvc/internal/domain/repository"
)

// AuthConfig carries the secrets and tuning of the auth service. It is read
// once at construction.
type AuthConfig struct {
	SecretKey  []byte
	BcryptCost int
	TokenTTL   time.Duration
}

type AuthService struct {
	users   repository.UserRepository
	revoked repository.RevocationStore
	hasher  *security.PasswordHasher
	tokens  *security.TokenCodec
	now     func() time.Time
}

func NewAuthService(
	cfg AuthConfig,
	users repository.UserRepository,
	revoked repository.RevocationStore,
	opts ...Option,
) (*AuthService, error) {
	hasher, err := security.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	tokens, err := security.NewTokenCodec(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	o := applyOptions(opts)
	return &AuthService{
		users:   users,
		revoked: revoked,
		hasher:  hasher,
		tokens:  tokens,
		now:     o.now,
	}, nil
}

// Hasher exposes the password hasher so other services hash with the same cost.
func (s *AuthService) Hasher() *security.PasswordHasher {
	return s.hasher
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a user and logs it in. Uniqueness of username and email is
// left to the repository so concurrent registrations cannot both succeed.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if blank(req.Username) || blank(req.Email) || blank(req.Password) {
		return nil, common.ErrInvalidPayload
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := model.NewUser(req.Username, req.Email, hashed, now.UTC())
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", common.ErrDuplicateUser, err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Encode(user.ID, now)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if blank(req.Email) || blank(req.Password) {
		return nil, common.ErrInvalidPayload
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	token, err := s.tokens.Encode(user.ID, s.now())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Logout revokes token. Of two concurrent logouts with the same token only
// one succeeds; the other sees common.ErrTokenInvalid.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if _, err := s.authenticate(ctx, token); err != nil {
		return err
	}

	expiresAt, err := s.tokens.ExpiresAt(token)
	if err != nil {
		return err
	}
	if err := s.revoked.Revoke(ctx, token, expiresAt); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return fmt.Errorf("%w: already revoked", common.ErrTokenInvalid)
		}
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Status returns the user a token belongs to. A token whose user no longer
// exists is treated as invalid.
func (s *AuthService) Status(ctx context.Context, token string) (*model.UserStatus, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user %d no longer exists", common.ErrTokenInvalid, userID)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user.Status(), nil
}

// authenticate decodes token and rejects it when revoked.
func (s *AuthService) authenticate(ctx context.Context, token string) (int64, error) {
	userID, err := s.tokens.Decode(token, s.now())
	if err != nil {
		return 0, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return 0, fmt.Errorf("%w: revoked", common.ErrTokenInvalid)
	}
	return userID, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

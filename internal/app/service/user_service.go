package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"usersvc/internal/common"
	"usersvc/internal/common/security"
	"usersvc/internal/domain/model"
	"usersvc/internal/domain/repository"
)

type UserService struct {
	users  repository.UserRepository
	hasher *security.PasswordHasher
	now    func() time.Time
}

func NewUserService(users repository.UserRepository, hasher *security.PasswordHasher, opts ...Option) *UserService {
	o := applyOptions(opts)
	return &UserService{users: users, hasher: hasher, now: o.now}
}

type AddUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AddUser creates a user without logging it in. Without a password the
// account gets a random one and can only be used after a reset.
func (s *UserService) AddUser(ctx context.Context, req AddUserRequest) (*model.User, error) {
	if blank(req.Username) || blank(req.Email) {
		return nil, common.ErrInvalidPayload
	}

	password := req.Password
	if password == "" {
		password = uuid.NewString()
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := model.NewUser(req.Username, req.Email, hashed, s.now().UTC())
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to add user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// ListUsers returns every user, newest first.
func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

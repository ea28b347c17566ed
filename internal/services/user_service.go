package services

import (
	"context"
	"fmt"
	"strings"

	"OJTMessenger/server/internal/models"
	"OJTMessenger/server/internal/repository"
	"OJTMessenger/server/internal/utils"

	"github.com/jonboulle/clockwork"
)

// UserService is the user-directory surface the chat subsystem consumes:
// display names and roles for attribution, plus registration and credential
// checks for the auth handlers.
type UserService interface {
	Register(ctx context.Context, fullName, email, password, role string) (int, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, userID int) (*models.User, error)
	SearchUsers(ctx context.Context, term string) ([]models.User, error)
}

type userService struct {
	repo  repository.UserRepository
	clock clockwork.Clock
}

func NewUserService(repo repository.UserRepository, clock clockwork.Clock) *userService {
	return &userService{
		repo:  repo,
		clock: clock,
	}
}

func (us *userService) Register(ctx context.Context, fullName, email, password, role string) (int, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" || password == "" {
		return 0, models.NewValidationError("registration", "full name, email and password are required")
	}

	switch role {
	case models.RoleIntern, models.RoleSupervisor, models.RoleCoordinator:
	default:
		return 0, models.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}

	exists, err := us.repo.Exists(ctx, email)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, models.ErrUserExists
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return 0, err
	}

	user := &models.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	return us.repo.Create(ctx, user, us.clock.Now())
}

func (us *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := us.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}

	if err := utils.CheckPasswordHash(password, user.PasswordHash); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	return user, nil
}

func (us *userService) GetUserByID(ctx context.Context, userID int) (*models.User, error) {
	return us.repo.GetByID(ctx, userID)
}

func (us *userService) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	return us.repo.Search(ctx, term)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/repository"
)

// UserService manages the mutable parts of an account.
type UserService interface {
	UpdateProfileImage(ctx context.Context, caller models.User, req dto.ProfileImageRequest) (dto.UserResponse, error)
	ChangePassword(ctx context.Context, caller models.User, req dto.PasswordChangeRequest) error
	List(ctx context.Context, caller models.User, role string) ([]dto.UserResponse, error)
}

type userService struct {
	users     repository.UserRepository
	hasher    PasswordHasher
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(users repository.UserRepository, hasher PasswordHasher, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		hasher:    hasher,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) UpdateProfileImage(ctx context.Context, caller models.User, req dto.ProfileImageRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.UpdateProfileImage(ctx, caller.ID, strings.TrimSpace(req.URL))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, fmt.Errorf("update profile image: %w", err)
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) ChangePassword(ctx context.Context, caller models.User, req dto.PasswordChangeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if err := s.hasher.Check(caller.PasswordHash, req.CurrentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, caller.ID, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info().Uint("user_id", caller.ID).Msg("password changed")
	return nil
}

func (s *userService) List(ctx context.Context, caller models.User, role string) ([]dto.UserResponse, error) {
	if caller.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	filter := repository.UserFilter{}
	if strings.TrimSpace(role) != "" {
		parsed, err := models.ParseRole(role)
		if err != nil {
			return nil, err
		}
		filter.Role = parsed
	}

	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return dto.NewUserResponseSlice(users), nil
}

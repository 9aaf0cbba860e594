package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/observability"
	"github.com/noah-isme/campusfix-api/internal/repository"
)

var (
	// ErrAccountExists indicates the derived email is already registered.
	ErrAccountExists = errors.New("an account with this id already exists")
	// ErrInvalidCredentials is returned for any failed login or password confirmation.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSeedKeyRejected blocks admin registration once the first admin exists.
	ErrSeedKeyRejected = errors.New("admin registration requires a valid seed key")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned when the caller's role does not permit the action.
	ErrForbidden = errors.New("insufficient permissions")
)

// TokenIssuer mints credentials carrying only the user id.
type TokenIssuer interface {
	Issue(userID uint) (string, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(hash, password string) error
}

// AuthService covers the three provisioning flows plus login.
type AuthService interface {
	RegisterStudent(ctx context.Context, req dto.RegisterStudentRequest) (dto.AuthResponse, error)
	RegisterAdmin(ctx context.Context, req dto.RegisterAdminRequest) (dto.AuthResponse, error)
	RegisterStaff(ctx context.Context, caller models.User, req dto.RegisterStaffRequest) (dto.AuthResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error)
	Me(ctx context.Context, userID uint) (dto.UserResponse, error)
}

type authService struct {
	users     repository.UserRepository
	sequences repository.SequenceRepository
	tokens    TokenIssuer
	hasher    PasswordHasher
	activity  ActivityRecorder
	stats     StatsInvalidator
	seedKey   string
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuthService constructs the account provisioning service.
func NewAuthService(
	users repository.UserRepository,
	sequences repository.SequenceRepository,
	tokens TokenIssuer,
	hasher PasswordHasher,
	activity ActivityRecorder,
	stats StatsInvalidator,
	seedKey string,
	validate *validator.Validate,
	logger zerolog.Logger,
) AuthService {
	return &authService{
		users:     users,
		sequences: sequences,
		tokens:    tokens,
		hasher:    hasher,
		activity:  activity,
		stats:     stats,
		seedKey:   strings.TrimSpace(seedKey),
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) RegisterStudent(ctx context.Context, req dto.RegisterStudentRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	studentID := strings.TrimSpace(req.StudentID)
	user := models.User{
		Name:      cleanText(req.Name),
		Role:      models.RoleStudent,
		StudentID: studentID,
		Email:     models.DeriveEmail(studentID, models.RoleStudent),
	}
	if err := s.create(ctx, &user, req.Password); err != nil {
		return dto.AuthResponse{}, err
	}

	return s.issue(user)
}

func (s *authService) RegisterAdmin(ctx context.Context, req dto.RegisterAdminRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	staffID := strings.TrimSpace(req.StaffID)
	user := models.User{
		Name:    cleanText(req.Name),
		Role:    models.RoleAdmin,
		StaffID: staffID,
		Email:   models.DeriveEmail(staffID, models.RoleAdmin),
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	var admins int64
	err = s.users.CreateAdmin(ctx, &user, func(existing int64) error {
		admins = existing
		if existing > 0 && !s.seedKeyMatches(req.SeedKey) {
			return ErrSeedKeyRejected
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrSeedKeyRejected):
		s.logger.Warn().Str("staff_id", staffID).Msg("admin registration rejected without valid seed key")
		return dto.AuthResponse{}, err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return dto.AuthResponse{}, ErrAccountExists
	case err != nil:
		return dto.AuthResponse{}, fmt.Errorf("create admin: %w", err)
	}

	s.record(ctx, ActivityEntry{
		ActorID:    user.ID,
		ActorRole:  models.RoleAdmin.String(),
		Action:     "user.admin_registered",
		EntityType: models.EntityUser,
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"bootstrap": admins == 0},
	})

	return s.issue(user)
}

func (s *authService) RegisterStaff(ctx context.Context, caller models.User, req dto.RegisterStaffRequest) (dto.AuthResponse, error) {
	if caller.Role != models.RoleAdmin {
		return dto.AuthResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	next, err := s.sequences.NextStaffID(ctx)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("allocate staff id: %w", err)
	}
	observability.StaffIDsAllocated().Inc()

	staffID := strconv.FormatInt(next, 10)
	user := models.User{
		Name:    cleanText(req.Name),
		Role:    models.RoleStaff,
		StaffID: staffID,
		Email:   models.DeriveEmail(staffID, models.RoleStaff),
	}
	if err := s.create(ctx, &user, req.Password); err != nil {
		return dto.AuthResponse{}, err
	}

	s.logger.Info().Str("staff_id", staffID).Uint("created_by", caller.ID).Msg("staff account created")
	// New staff must show up as a zero row in the workload table right away.
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	s.record(ctx, ActivityEntry{
		ActorID:    caller.ID,
		ActorRole:  caller.Role.String(),
		Action:     "user.staff_created",
		EntityType: models.EntityUser,
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"staff_id": staffID},
	})

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	user, err := s.users.FindByEmail(ctx, models.DeriveEmail(req.ID, role))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, fmt.Errorf("find user: %w", err)
	}
	if user.Role != role {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}
	if err := s.hasher.Check(user.PasswordHash, req.Password); err != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, userID uint) (dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) create(ctx context.Context, user *models.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAccountExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *authService) issue(user models.User) (dto.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("issue token: %w", err)
	}
	return dto.AuthResponse{Token: token, User: dto.NewUserResponse(user)}, nil
}

func (s *authService) seedKeyMatches(candidate string) bool {
	if s.seedKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(candidate)), []byte(s.seedKey)) == 1
}

func (s *authService) record(ctx context.Context, entry ActivityEntry) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record activity")
	}
}

package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campusfix-api/internal/models"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role models.Role
}

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindStaff(ctx context.Context, staffID string) (models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	Create(ctx context.Context, user *models.User) error
	CreateAdmin(ctx context.Context, user *models.User, gate func(existingAdmins int64) error) error
	UpdateProfileImage(ctx context.Context, id uint, url string) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository instantiates a GORM-backed user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindStaff(ctx context.Context, staffID string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND staff_id = ?", models.RoleStaff, strings.TrimSpace(staffID)).
		First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}

	var users []models.User
	if err := query.Order("role ASC, name ASC, id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	return countRole(r.db.WithContext(ctx), role)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// CreateAdmin serialises admin registrations on the admin_registrations counter row.
// The UPDATE holds the row lock until commit, so gate always sees every admin committed
// before it, and two first-admin calls cannot both pass an empty-table check.
func (r *userRepository) CreateAdmin(ctx context.Context, user *models.User, gate func(existingAdmins int64) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter := models.Counter{Name: models.CounterAdminRegistrations}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return err
		}
		lock := tx.Model(&models.Counter{}).
			Where("name = ?", models.CounterAdminRegistrations).
			Update("value", gorm.Expr("value + ?", 1))
		if lock.Error != nil {
			return lock.Error
		}

		admins, err := countRole(tx, models.RoleAdmin)
		if err != nil {
			return err
		}
		if err := gate(admins); err != nil {
			return err
		}
		return tx.Create(user).Error
	})
}

func countRole(db *gorm.DB, role models.Role) (int64, error) {
	var count int64
	err := db.Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

func (r *userRepository) UpdateProfileImage(ctx context.Context, id uint, url string) (models.User, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("profile_image", url)
	if result.Error != nil {
		return models.User{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/models"
)

func TestUserRepositoryLookupsAndUniqueEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	student := models.User{Name: "Ana", Role: models.RoleStudent, StudentID: "S100", Email: models.DeriveEmail("S100", models.RoleStudent), PasswordHash: "x"}
	staff := models.User{Name: "Budi", Role: models.RoleStaff, StaffID: "5551", Email: models.DeriveEmail("5551", models.RoleStaff), PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, &student))
	require.NoError(t, repo.Create(ctx, &staff))

	dup := models.User{Name: "Other", Role: models.RoleStudent, StudentID: "S100", Email: student.Email, PasswordHash: "y"}
	require.ErrorIs(t, repo.Create(ctx, &dup), gorm.ErrDuplicatedKey)

	found, err := repo.FindByEmail(ctx, " S100@student.local ")
	require.NoError(t, err)
	require.Equal(t, student.ID, found.ID)

	found, err = repo.FindStaff(ctx, "5551")
	require.NoError(t, err)
	require.Equal(t, "Budi", found.Name)

	_, err = repo.FindStaff(ctx, "S100")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := repo.CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	require.Zero(t, count)

	staffOnly, err := repo.List(ctx, UserFilter{Role: models.RoleStaff})
	require.NoError(t, err)
	require.Len(t, staffOnly, 1)

	all, err := repo.List(ctx, UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUserRepositoryUpdates(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := models.User{Name: "Ana", Role: models.RoleStudent, StudentID: "S1", Email: "s1@student.local", PasswordHash: "old"}
	require.NoError(t, repo.Create(ctx, &user))

	updated, err := repo.UpdateProfileImage(ctx, user.ID, "https://img/1.png")
	require.NoError(t, err)
	require.Equal(t, "https://img/1.png", updated.ProfileImage)

	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "new"))
	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "new", reloaded.PasswordHash)

	_, err = repo.UpdateProfileImage(ctx, 999, "x")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.ErrorIs(t, repo.UpdatePasswordHash(ctx, 999, "x"), gorm.ErrRecordNotFound)
}

func TestUserRepositoryCreateAdminPassesCommittedCountToGate(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	errClosed := errors.New("closed")

	var seen []int64
	gate := func(existing int64) error {
		seen = append(seen, existing)
		if existing > 0 {
			return errClosed
		}
		return nil
	}

	first := models.User{Name: "Rina", Role: models.RoleAdmin, StaffID: "A1", Email: models.DeriveEmail("A1", models.RoleAdmin), PasswordHash: "x"}
	require.NoError(t, repo.CreateAdmin(ctx, &first, gate))
	require.NotZero(t, first.ID)

	second := models.User{Name: "Sari", Role: models.RoleAdmin, StaffID: "A2", Email: models.DeriveEmail("A2", models.RoleAdmin), PasswordHash: "x"}
	require.ErrorIs(t, repo.CreateAdmin(ctx, &second, gate), errClosed)
	require.Equal(t, []int64{0, 1}, seen)

	count, err := repo.CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	var counter models.Counter
	require.NoError(t, db.Where("name = ?", models.CounterAdminRegistrations).First(&counter).Error)
	require.Equal(t, int64(1), counter.Value, "rejected registrations roll back their lock bump")
}

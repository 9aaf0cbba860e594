package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campusfix-api/internal/auth"
	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/models"
)

func TestUserServiceProfileImageAndPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	svc := NewUserService(f.users, auth.NewPasswordHasher(bcrypt.MinCost), f.validator, testLogger())

	updated, err := svc.UpdateProfileImage(ctx, student, dto.ProfileImageRequest{URL: "https://cdn.example.com/ana.png"})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/ana.png", updated.ProfileImage)

	_, err = svc.UpdateProfileImage(ctx, student, dto.ProfileImageRequest{URL: "not a url"})
	require.Error(t, err)

	err = svc.ChangePassword(ctx, student, dto.PasswordChangeRequest{CurrentPassword: "wrong-one", NewPassword: "fresh-pass"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, student, dto.PasswordChangeRequest{CurrentPassword: testPassword, NewPassword: "fresh-pass"}))

	_, err = f.auth.Login(ctx, dto.LoginRequest{ID: "S1", Password: "fresh-pass", Role: "student"})
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, dto.LoginRequest{ID: "S1", Password: testPassword, Role: "student"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserServiceListIsAdminOnlyAndFiltersRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := f.student(t, "S1", "Ana")
	admin := f.admin(t)
	f.staff(t, admin, "Budi")
	svc := NewUserService(f.users, auth.NewPasswordHasher(bcrypt.MinCost), f.validator, testLogger())

	_, err := svc.List(ctx, student, "")
	require.ErrorIs(t, err, ErrForbidden)

	all, err := svc.List(ctx, admin, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	staff, err := svc.List(ctx, admin, "staff")
	require.NoError(t, err)
	require.Len(t, staff, 1)
	require.Equal(t, "5551", staff[0].StaffID)

	_, err = svc.List(ctx, admin, "janitor")
	require.ErrorIs(t, err, models.ErrInvalidRole)
}

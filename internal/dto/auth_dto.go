package dto

import (
	"time"

	"github.com/noah-isme/campusfix-api/internal/models"
)

// RegisterStudentRequest is the self sign-up payload for students.
type RegisterStudentRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	StudentID string `json:"studentId" validate:"required,alphanum,max=32"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

// RegisterAdminRequest bootstraps an administrator account.
type RegisterAdminRequest struct {
	StaffID  string `json:"staffId" validate:"required,alphanum,max=32"`
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	SeedKey  string `json:"seedKey" validate:"omitempty,max=256"`
}

// RegisterStaffRequest is submitted by an admin creating a staff account.
type RegisterStaffRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest signs a user in with the id matching the claimed role.
type LoginRequest struct {
	ID       string `json:"id" validate:"required,max=32"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role" validate:"required,oneof=student staff admin"`
}

// AuthResponse carries a fresh credential and the account it belongs to.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the public view of an account; it never includes the password hash.
type UserResponse struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	StudentID    string    `json:"studentId,omitempty"`
	StaffID      string    `json:"staffId,omitempty"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUserResponse converts a user model into its public DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Role:         user.Role.String(),
		StudentID:    user.StudentID,
		StaffID:      user.StaffID,
		Email:        user.Email,
		ProfileImage: user.ProfileImage,
		CreatedAt:    user.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of users.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

// ProfileImageRequest updates the caller's avatar.
type ProfileImageRequest struct {
	URL string `json:"url" validate:"required,url,max=512"`
}

// PasswordChangeRequest rotates the caller's password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=72"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

// StaffStat summarises one staff member's workload.
type StaffStat struct {
	StaffID    string `json:"staffId"`
	Name       string `json:"name"`
	Total      int64  `json:"total"`
	Pending    int64  `json:"pending"`
	InProgress int64  `json:"inProgress"`
	Completed  int64  `json:"completed"`
}

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role identifies what a user may see and change.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// ErrInvalidRole is returned when a role string is outside the supported set.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalises a role string coming from a request.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleStaff:
		return RoleStaff, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) String() string {
	return string(r)
}

// User is an account of any role. Students carry a StudentID, staff and admins a StaffID.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Role         Role      `gorm:"size:16;not null;index" json:"role"`
	StudentID    string    `gorm:"size:32;index" json:"student_id,omitempty"`
	StaffID      string    `gorm:"size:32;index" json:"staff_id,omitempty"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	ProfileImage string    `gorm:"size:512" json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginID returns the identifier the user signs in with.
func (u User) LoginID() string {
	if u.Role == RoleStudent {
		return u.StudentID
	}
	return u.StaffID
}

// DeriveEmail builds the account email from a login id and role.
func DeriveEmail(id string, role Role) string {
	return fmt.Sprintf("%s@%s.local", strings.ToLower(strings.TrimSpace(id)), role)
}

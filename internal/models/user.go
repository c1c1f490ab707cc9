package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent           UserRole = "student"
	RoleNonEditingTeacher UserRole = "non_editing_teacher"
	RoleTeacher           UserRole = "teacher"
	RoleDegreeAdmin       UserRole = "degree_admin"
	RoleCenterAdmin       UserRole = "center_admin"
	RoleInstitutionAdmin  UserRole = "institution_admin"
	RoleSystemAdmin       UserRole = "system_admin"
)

// IsPrivileged reports whether the role sees results the way teaching staff
// do: everything except scores of prints the student kept private.
func (r UserRole) IsPrivileged() bool {
	switch r {
	case RoleNonEditingTeacher, RoleTeacher, RoleDegreeAdmin,
		RoleCenterAdmin, RoleInstitutionAdmin, RoleSystemAdmin:
		return true
	}
	return false
}

// BypassesThrottle reports whether the role may generate prints without the
// minimum-wait check.
func (r UserRole) BypassesThrottle() bool {
	return r.IsPrivileged()
}

func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleNonEditingTeacher, RoleTeacher, RoleDegreeAdmin,
		RoleCenterAdmin, RoleInstitutionAdmin, RoleSystemAdmin:
		return true
	}
	return false
}

// User is kept for result listings and permission checks. Authentication
// happens outside this service; the user record mirrors what the identity
// provider synchronizes in.
type User struct {
	ID       uint     `json:"id" gorm:"primaryKey"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"not null;size:30;default:student" validate:"omitempty,user_role"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

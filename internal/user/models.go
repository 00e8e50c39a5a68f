package user

import (
	"strings"
	"time"
)

// Role is the closed set of user roles. Authorization logic matches it
// exhaustively; anything outside the three known values is denied.
type Role string

const (
	RoleSales   Role = "sales"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes a stored role value (the database keeps them
// upper-case) to a Role. ok is false for anything outside the known set.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(s)) {
	case RoleSales:
		return RoleSales, true
	case RoleManager:
		return RoleManager, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// User is a row in the users table. ManagerID is nil for managers, admins,
// and unassigned sales users; ManagerName is resolved via self-join where
// the query needs it.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	ManagerID    *int64
	ManagerName  *string
	CreatedAt    time.Time
}

// CreateUserInput holds the fields for inserting a new user.
type CreateUserInput struct {
	Name      string
	Email     string
	Password  string
	Role      Role
	ManagerID *int64
}

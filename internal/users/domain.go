package users

import (
	"fmt"
	"time"

	"github.com/charpente-erp/charpente/internal/platform/httpx"
)

// Role enumerates workshop roles.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleWorkshop  Role = "WORKSHOP"
	RoleInstaller Role = "INSTALLER"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleWorkshop, RoleInstaller:
		return true
	}
	return false
}

// User is a workshop member. HourlyCostRate feeds labor cost aggregation.
type User struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	HourlyCostRate float64   `json:"hourly_cost_rate"`
	Active         bool      `json:"active"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FullName renders "First Last" for exports.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = fmt.Errorf("users: user %w", httpx.ErrNotFound)
	// ErrDuplicateEmail indicates the email is taken.
	ErrDuplicateEmail = fmt.Errorf("users: email %w", httpx.ErrDuplicate)
	// ErrInvalidRole indicates an unknown role value.
	ErrInvalidRole = fmt.Errorf("users: %w: unknown role", httpx.ErrValidation)
)

package dto

import (
	"time"

	"github.com/cheezious/it-support/internal/domain"
)

// UserRegisterRequest payload for self-service signup.
type UserRegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Region   string `json:"region"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordResetRequest payload for initiating reset.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest payload for confirming reset.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// UserResponse is the directory projection returned to staff.
type UserResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Role      domain.Role       `json:"role"`
	Region    string            `json:"region,omitempty"`
	Regions   []string          `json:"regions,omitempty"`
	BranchID  *string           `json:"branch_id,omitempty"`
	Status    domain.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// CreateUserRequest is the admin provisioning payload.
type CreateUserRequest struct {
	Name     string      `json:"name" validate:"required,min=2"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     domain.Role `json:"role" validate:"required,oneof=USER BRANCH IT_SUPPORT ADMIN HEAD"`
	Region   string      `json:"region"`
	Regions  []string    `json:"regions"`
	BranchID *string     `json:"branch_id"`
}

// UpdateUserRequest carries partial directory updates.
type UpdateUserRequest struct {
	Name     *string            `json:"name"`
	Role     *domain.Role       `json:"role" validate:"omitempty,oneof=USER BRANCH IT_SUPPORT ADMIN HEAD"`
	Region   *string            `json:"region"`
	Regions  []string           `json:"regions"`
	BranchID *string            `json:"branch_id"`
	Status   *domain.UserStatus `json:"status" validate:"omitempty,oneof=ACTIVE SUSPENDED"`
}

// CreateRegionRequest payload.
type CreateRegionRequest struct {
	Code string `json:"code" validate:"required,min=2,max=8"`
	Name string `json:"name" validate:"required"`
}

// CreateBranchRequest payload.
type CreateBranchRequest struct {
	RegionID string `json:"region_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// UserFromDomain maps a directory entry to its API projection.
func UserFromDomain(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Region:    u.Region,
		Regions:   u.Regions,
		BranchID:  u.BranchID,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

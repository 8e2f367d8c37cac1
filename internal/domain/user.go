package domain

import "time"

// Role enumerates the fixed role vocabulary of the user directory.
type Role string

const (
	RoleUser      Role = "USER"
	RoleBranch    Role = "BRANCH"
	RoleITSupport Role = "IT_SUPPORT"
	RoleAdmin     Role = "ADMIN"
	RoleHead      Role = "HEAD"
)

// IsStaff reports whether the role belongs to IT operations personnel.
func (r Role) IsStaff() bool {
	return r == RoleITSupport || r == RoleAdmin || r == RoleHead
}

// UserStatus represents lifecycle states for a directory entry.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is a single entry in the user directory. Everyone from branch
// cashiers to the head of IT lives in the same directory with a role field.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Region       string
	Regions      []string
	BranchID     *string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EffectiveRegions returns the region set used for targeting: the Regions
// list when non-empty, otherwise the legacy single Region field.
func (u *User) EffectiveRegions() []string {
	if len(u.Regions) > 0 {
		return u.Regions
	}
	if u.Region != "" {
		return []string{u.Region}
	}
	return nil
}

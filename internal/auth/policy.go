package auth

import (
	"strings"

	"github.com/cheezious/it-support/internal/domain"
)

// Resource names a guarded part of the system.
type Resource string

const (
	ResourceAnnouncements Resource = "announcements"
	ResourceTickets       Resource = "tickets"
	ResourceDirectory     Resource = "directory"
)

// Action names an operation on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAssign Action = "assign"
)

// Policy is the single place authorization decisions are made. Handlers and
// services call Can instead of comparing role strings inline. The root email
// override list is injected from configuration and consulted only here.
type Policy struct {
	rootEmails map[string]struct{}
}

// NewPolicy builds the evaluator with the configured superuser override list.
func NewPolicy(rootEmails []string) *Policy {
	set := make(map[string]struct{}, len(rootEmails))
	for _, email := range rootEmails {
		set[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &Policy{rootEmails: set}
}

// IsRoot reports whether the email is on the superuser override list.
func (p *Policy) IsRoot(email string) bool {
	_, ok := p.rootEmails[strings.ToLower(email)]
	return ok
}

// Can evaluates whether the user may perform action on resource.
func (p *Policy) Can(user *domain.User, resource Resource, action Action) bool {
	if user == nil || user.Status != domain.UserStatusActive {
		return false
	}
	if p.IsRoot(user.Email) {
		return true
	}

	switch resource {
	case ResourceAnnouncements:
		switch action {
		case ActionCreate:
			return user.Role.IsStaff()
		case ActionRead:
			return true
		case ActionUpdate, ActionDelete:
			return user.Role == domain.RoleAdmin || user.Role == domain.RoleHead
		}
	case ResourceTickets:
		switch action {
		case ActionCreate, ActionRead:
			return true
		case ActionUpdate, ActionAssign:
			return user.Role.IsStaff()
		}
	case ResourceDirectory:
		switch action {
		case ActionRead:
			return user.Role.IsStaff()
		case ActionCreate, ActionUpdate, ActionDelete:
			return user.Role == domain.RoleAdmin || user.Role == domain.RoleHead
		}
	}
	return false
}

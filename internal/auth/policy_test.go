package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cheezious/it-support/internal/domain"
)

func activeUser(role domain.Role, email string) *domain.User {
	return &domain.User{ID: "u1", Email: email, Role: role, Status: domain.UserStatusActive}
}

func TestPolicyCan(t *testing.T) {
	policy := NewPolicy([]string{"root@cheezious.com"})

	tests := []struct {
		name     string
		user     *domain.User
		resource Resource
		action   Action
		allowed  bool
	}{
		{"nil user denied", nil, ResourceAnnouncements, ActionRead, false},
		{"plain user may read announcements", activeUser(domain.RoleUser, "a@x.com"), ResourceAnnouncements, ActionRead, true},
		{"plain user may not create announcements", activeUser(domain.RoleUser, "a@x.com"), ResourceAnnouncements, ActionCreate, false},
		{"branch may not create announcements", activeUser(domain.RoleBranch, "b@x.com"), ResourceAnnouncements, ActionCreate, false},
		{"it-support may create announcements", activeUser(domain.RoleITSupport, "c@x.com"), ResourceAnnouncements, ActionCreate, true},
		{"it-support may not delete announcements", activeUser(domain.RoleITSupport, "c@x.com"), ResourceAnnouncements, ActionDelete, false},
		{"admin may delete announcements", activeUser(domain.RoleAdmin, "d@x.com"), ResourceAnnouncements, ActionDelete, true},
		{"head may delete announcements", activeUser(domain.RoleHead, "e@x.com"), ResourceAnnouncements, ActionDelete, true},
		{"plain user may not assign tickets", activeUser(domain.RoleUser, "a@x.com"), ResourceTickets, ActionAssign, false},
		{"it-support may assign tickets", activeUser(domain.RoleITSupport, "c@x.com"), ResourceTickets, ActionAssign, true},
		{"it-support may not manage directory", activeUser(domain.RoleITSupport, "c@x.com"), ResourceDirectory, ActionCreate, false},
		{"admin may manage directory", activeUser(domain.RoleAdmin, "d@x.com"), ResourceDirectory, ActionCreate, true},
		{"root override grants everything", activeUser(domain.RoleUser, "root@cheezious.com"), ResourceDirectory, ActionDelete, true},
		{"root override is case-insensitive", activeUser(domain.RoleUser, "ROOT@Cheezious.com"), ResourceAnnouncements, ActionCreate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, policy.Can(tt.user, tt.resource, tt.action))
		})
	}
}

func TestPolicyDeniesSuspendedUsers(t *testing.T) {
	policy := NewPolicy([]string{"root@cheezious.com"})
	suspended := &domain.User{Email: "root@cheezious.com", Role: domain.RoleAdmin, Status: domain.UserStatusSuspended}

	assert.False(t, policy.Can(suspended, ResourceAnnouncements, ActionRead))
}

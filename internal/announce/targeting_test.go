package announce

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cheezious/it-support/internal/domain"
)

func directoryFixture() []domain.User {
	return []domain.User{
		{ID: "u1", Role: domain.RoleAdmin, Region: "ISL"},
		{ID: "u2", Role: domain.RoleAdmin, Region: "LHR"},
		{ID: "u3", Role: domain.RoleUser, Region: "ISL"},
		{ID: "u4", Role: domain.RoleBranch, Regions: []string{"LHR", "RWP"}},
		{ID: "u5", Role: domain.RoleITSupport},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		rule      domain.TargetRule
		directory []domain.User
		expected  []string
	}{
		{
			name:      "explicit users take precedence over roles and regions",
			rule:      domain.TargetRule{Users: []string{"u1"}, Regions: []string{"LHR"}, Roles: []domain.Role{domain.RoleUser}},
			directory: directoryFixture(),
			expected:  []string{"u1"},
		},
		{
			name:      "unknown explicit users are silently dropped",
			rule:      domain.TargetRule{Users: []string{"ghost", "u3", "u1"}},
			directory: directoryFixture(),
			expected:  []string{"u3", "u1"},
		},
		{
			name:      "duplicate explicit users collapse",
			rule:      domain.TargetRule{Users: []string{"u2", "u2"}},
			directory: directoryFixture(),
			expected:  []string{"u2"},
		},
		{
			name:      "role filter only",
			rule:      domain.TargetRule{Roles: []domain.Role{domain.RoleAdmin}},
			directory: directoryFixture(),
			expected:  []string{"u1", "u2"},
		},
		{
			name:      "region filter matches legacy field and regions list",
			rule:      domain.TargetRule{Regions: []string{"LHR"}},
			directory: directoryFixture(),
			expected:  []string{"u2", "u4"},
		},
		{
			name:      "roles AND regions must both pass",
			rule:      domain.TargetRule{Roles: []domain.Role{domain.RoleAdmin}, Regions: []string{"ISL"}},
			directory: directoryFixture(),
			expected:  []string{"u1"},
		},
		{
			name:      "empty rule broadcasts to entire directory",
			rule:      domain.TargetRule{},
			directory: directoryFixture(),
			expected:  []string{"u1", "u2", "u3", "u4", "u5"},
		},
		{
			name:      "no role match yields empty set",
			rule:      domain.TargetRule{Roles: []domain.Role{"NONEXISTENT"}},
			directory: directoryFixture(),
			expected:  nil,
		},
		{
			name:      "user without regions never matches a region rule",
			rule:      domain.TargetRule{Regions: []string{"ISL"}, Roles: []domain.Role{domain.RoleITSupport}},
			directory: directoryFixture(),
			expected:  nil,
		},
		{
			name:      "empty directory yields empty set",
			rule:      domain.TargetRule{},
			directory: nil,
			expected:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.rule, tt.directory))
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	rule := domain.TargetRule{Roles: []domain.Role{domain.RoleAdmin, domain.RoleBranch}}
	directory := directoryFixture()

	first := Resolve(rule, directory)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Resolve(rule, directory))
	}
}

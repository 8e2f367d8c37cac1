package announce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cheezious/it-support/internal/domain"
)

func TestActiveAt(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		start    *time.Time
		end      *time.Time
		expected bool
	}{
		{"no window is always active", nil, nil, true},
		{"start in the past", &yesterday, nil, true},
		{"start in the future", &tomorrow, nil, false},
		{"end in the future", nil, &tomorrow, true},
		{"end in the past", nil, &yesterday, false},
		{"inside window", &yesterday, &tomorrow, true},
		{"boundary start is inclusive", &now, nil, true},
		{"boundary end is inclusive", nil, &now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &domain.Announcement{StartDate: tt.start, EndDate: tt.end}
			assert.Equal(t, tt.expected, ActiveAt(a, now))
		})
	}
}

// Relevance is a function of the evaluation time: the same announcement is
// visible two days ago and hidden today once its end date has passed.
func TestRelevanceChangesWithTime(t *testing.T) {
	endDate := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	a := &domain.Announcement{
		RecipientUIDs: []string{"u1"},
		EndDate:       &endDate,
	}

	twoDaysBefore := endDate.Add(-48 * time.Hour)
	dayAfter := endDate.Add(24 * time.Hour)

	assert.True(t, RelevantTo(a, "u1", twoDaysBefore))
	assert.False(t, RelevantTo(a, "u1", dayAfter))
}

func TestRelevantToHonorsFrozenSnapshot(t *testing.T) {
	a := &domain.Announcement{
		RecipientUIDs: []string{"u1", "u2"},
		Target:        domain.TargetRule{Roles: []domain.Role{domain.RoleAdmin}},
	}
	now := time.Now()

	assert.True(t, RelevantTo(a, "u1", now))
	// u9 may match the stored target rule today, but it was not in the
	// snapshot at send time and must not gain visibility retroactively.
	assert.False(t, RelevantTo(a, "u9", now))
}

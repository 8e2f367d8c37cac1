package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cheezious/it-support/internal/domain"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.TicketStatus
		to      domain.TicketStatus
		allowed bool
	}{
		{"open to in-progress", domain.TicketStatusOpen, domain.TicketStatusInProgress, true},
		{"open to resolved skips triage", domain.TicketStatusOpen, domain.TicketStatusResolved, false},
		{"in-progress to pending-user", domain.TicketStatusInProgress, domain.TicketStatusPendingUser, true},
		{"in-progress to resolved", domain.TicketStatusInProgress, domain.TicketStatusResolved, true},
		{"resolved to closed", domain.TicketStatusResolved, domain.TicketStatusClosed, true},
		{"resolved reopened", domain.TicketStatusResolved, domain.TicketStatusInProgress, true},
		{"closed is terminal", domain.TicketStatusClosed, domain.TicketStatusInProgress, false},
		{"cancelled is terminal", domain.TicketStatusCancelled, domain.TicketStatusOpen, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, isValidTransition(tt.from, tt.to))
		})
	}
}

func TestGenerateTicketKey(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		key := generateTicketKey()
		assert.True(t, strings.HasPrefix(key, "CHZ-"))
		assert.Len(t, key, 12)
		_, dup := seen[key]
		assert.False(t, dup)
		seen[key] = struct{}{}
	}
}

func TestStringPreview(t *testing.T) {
	assert.Equal(t, "short", stringPreview("short", 120))
	long := strings.Repeat("x", 200)
	preview := stringPreview(long, 120)
	assert.Len(t, preview, 120)
	assert.True(t, strings.HasSuffix(preview, "..."))
}

package announce

import (
	"time"

	"github.com/cheezious/it-support/internal/domain"
)

// ActiveAt reports whether the announcement's inclusive active window covers
// now. A missing start date means active since forever; a missing end date
// means it never expires. Relevance is evaluated against wall-clock time at
// query time, so an announcement can fall out of (or into) a user's view
// purely through elapsed time.
func ActiveAt(a *domain.Announcement, now time.Time) bool {
	if a.StartDate != nil && now.Before(*a.StartDate) {
		return false
	}
	if a.EndDate != nil && now.After(*a.EndDate) {
		return false
	}
	return true
}

// RelevantTo reports whether uid should see the announcement at time now.
// Membership is checked against the recipient snapshot frozen at send time;
// later role or region changes never retarget a sent announcement.
func RelevantTo(a *domain.Announcement, uid string, now time.Time) bool {
	if !ActiveAt(a, now) {
		return false
	}
	for _, recipient := range a.RecipientUIDs {
		if recipient == uid {
			return true
		}
	}
	return false
}

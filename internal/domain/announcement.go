package domain

import "time"

// TargetRule is the operator-specified selector used to compute recipients.
// A non-empty Users list takes hard precedence: roles and regions are ignored
// entirely. With Users empty, Roles and Regions are independent filters ANDed
// together. Empty on all three means broadcast to the whole directory.
type TargetRule struct {
	Roles   []Role   `json:"roles"`
	Regions []string `json:"regions"`
	Users   []string `json:"users"`
}

// IsBroadcast reports whether the rule selects the entire directory.
func (r TargetRule) IsBroadcast() bool {
	return len(r.Users) == 0 && len(r.Roles) == 0 && len(r.Regions) == 0
}

// Announcement is the canonical record for a company-wide or targeted
// message. RecipientUIDs is the recipient set frozen at send time; directory
// changes never retarget an already-sent announcement. ReadBy grows
// monotonically through set-union updates and stays a subset of
// RecipientUIDs.
type Announcement struct {
	ID                   string
	Title                string
	Message              string
	CreatedByUID         string
	CreatedByDisplayName string
	StartDate            *time.Time
	EndDate              *time.Time
	Target               TargetRule
	RecipientUIDs        []string
	RecipientCount       int
	ReadBy               []string
	CreatedAt            time.Time
}

// IsReadBy reports whether uid has acknowledged the announcement.
func (a *Announcement) IsReadBy(uid string) bool {
	for _, id := range a.ReadBy {
		if id == uid {
			return true
		}
	}
	return false
}

// NotificationStub is the per-recipient fan-out artifact. It carries a
// denormalized copy of the announcement headline so inbox listings need no
// join. Uniqueness on (AnnouncementID, RecipientUID) makes re-fan-out after a
// partial failure idempotent. Read state is not stored here; it is derived
// from the canonical ReadBy set.
type NotificationStub struct {
	ID             string
	AnnouncementID string
	RecipientUID   string
	Title          string
	Message        string
	CreatedAt      time.Time
}

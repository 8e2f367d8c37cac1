package dto

import (
	"time"

	"github.com/cheezious/it-support/internal/domain"
)

// TargetRuleRequest selects recipients. Users takes hard precedence over the
// role and region filters when non-empty.
type TargetRuleRequest struct {
	Roles   []domain.Role `json:"roles" validate:"omitempty,dive,oneof=USER BRANCH IT_SUPPORT ADMIN HEAD"`
	Regions []string      `json:"regions"`
	Users   []string      `json:"users"`
}

// CreateAnnouncementRequest payload.
type CreateAnnouncementRequest struct {
	Title     string            `json:"title" validate:"required,min=3"`
	Message   string            `json:"message" validate:"required,min=10"`
	StartDate *time.Time        `json:"start_date"`
	EndDate   *time.Time        `json:"end_date"`
	Target    TargetRuleRequest `json:"target"`
}

// AnnouncementResponse is the operator projection including read statistics.
type AnnouncementResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	CreatedBy      string            `json:"created_by"`
	CreatedByName  string            `json:"created_by_name"`
	StartDate      *time.Time        `json:"start_date"`
	EndDate        *time.Time        `json:"end_date"`
	Target         domain.TargetRule `json:"target"`
	RecipientCount int               `json:"recipient_count"`
	ReadCount      int               `json:"read_count"`
	CreatedAt      time.Time         `json:"created_at"`
}

// AnnouncementFeedItem is the recipient projection: no recipient list, no
// read statistics beyond the caller's own state.
type AnnouncementFeedItem struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	CreatedByName string     `json:"created_by_name"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	Read          bool       `json:"read"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NotificationResponse is a fan-out inbox entry.
type NotificationResponse struct {
	ID             string    `json:"id"`
	AnnouncementID string    `json:"announcement_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// UnreadCountResponse reports pending announcements for the caller.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse reports how many announcements were acknowledged.
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

// AnnouncementFromDomain maps to the operator projection.
func AnnouncementFromDomain(a *domain.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		ID:             a.ID,
		Title:          a.Title,
		Message:        a.Message,
		CreatedBy:      a.CreatedByUID,
		CreatedByName:  a.CreatedByDisplayName,
		StartDate:      a.StartDate,
		EndDate:        a.EndDate,
		Target:         a.Target,
		RecipientCount: a.RecipientCount,
		ReadCount:      len(a.ReadBy),
		CreatedAt:      a.CreatedAt,
	}
}

// FeedItemFromDomain maps to the recipient projection for uid.
func FeedItemFromDomain(a *domain.Announcement, uid string) AnnouncementFeedItem {
	return AnnouncementFeedItem{
		ID:            a.ID,
		Title:         a.Title,
		Message:       a.Message,
		CreatedByName: a.CreatedByDisplayName,
		StartDate:     a.StartDate,
		EndDate:       a.EndDate,
		Read:          a.IsReadBy(uid),
		CreatedAt:     a.CreatedAt,
	}
}

package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cheezious/it-support/internal/announce"
	"github.com/cheezious/it-support/internal/auth"
	"github.com/cheezious/it-support/internal/cache"
	"github.com/cheezious/it-support/internal/domain"
	"github.com/cheezious/it-support/internal/events"
	"github.com/cheezious/it-support/internal/repository"
	apperrors "github.com/cheezious/it-support/pkg/util"
)

const (
	minTitleLen   = 3
	minMessageLen = 10
)

// AnnouncementService runs the announcement distribution engine: recipient
// targeting, the two-phase send (canonical record, then per-recipient
// fan-out), read-receipt tracking, and the relevance/visibility rules.
type AnnouncementService struct {
	announcements repository.AnnouncementRepository
	stubs         repository.NotificationStubRepository
	users         repository.UserRepository
	policy        *auth.Policy
	dispatcher    events.Dispatcher
	unreadCache   *cache.UnreadCounts
	logger        *zap.Logger
	sendTimeout   time.Duration
	now           func() time.Time
}

// AnnouncementDependencies bundles collaborators.
type AnnouncementDependencies struct {
	AnnouncementRepo repository.AnnouncementRepository
	StubRepo         repository.NotificationStubRepository
	UserRepo         repository.UserRepository
	Policy           *auth.Policy
	Dispatcher       events.Dispatcher
	UnreadCache      *cache.UnreadCounts
	Logger           *zap.Logger
	SendTimeout      time.Duration
	Now              func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(deps AnnouncementDependencies) *AnnouncementService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 15 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AnnouncementService{
		announcements: deps.AnnouncementRepo,
		stubs:         deps.StubRepo,
		users:         deps.UserRepo,
		policy:        deps.Policy,
		dispatcher:    deps.Dispatcher,
		unreadCache:   deps.UnreadCache,
		logger:        deps.Logger,
		sendTimeout:   deps.SendTimeout,
		now:           deps.Now,
	}
}

// AnnouncementInput describes a send request.
type AnnouncementInput struct {
	Title     string
	Message   string
	StartDate *time.Time
	EndDate   *time.Time
	Target    domain.TargetRule
}

// Send resolves recipients and persists the announcement in two phases.
//
// Phase 1 writes the canonical record with the recipient snapshot frozen at
// send time; if it fails nothing was persisted (CANONICAL_WRITE_FAILED).
// Phase 2 writes all notification stubs as one atomic batch; if it fails the
// canonical record already exists and the error (FANOUT_FAILED) carries the
// announcement id so the operator can Refanout. Each phase runs under a
// bounded timeout surfaced as TIMEOUT.
func (s *AnnouncementService) Send(ctx context.Context, actor *domain.User, input AnnouncementInput) (*domain.Announcement, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("operator required")
	}
	if !s.policy.Can(actor, auth.ResourceAnnouncements, auth.ActionCreate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceAnnouncements), string(auth.ActionCreate))
	}

	title := strings.TrimSpace(input.Title)
	message := strings.TrimSpace(input.Message)
	if len(title) < minTitleLen {
		return nil, apperrors.NewValidationError("title must be at least 3 characters", nil)
	}
	if len(message) < minMessageLen {
		return nil, apperrors.NewValidationError("message must be at least 10 characters", nil)
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, apperrors.NewValidationError("end_date before start_date", nil)
	}

	// Always resolve against a fresh directory snapshot; stale cohorts must
	// never be targeted.
	directory, err := s.freshDirectory(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	recipients := announce.Resolve(input.Target, directory)
	if len(recipients) == 0 {
		return nil, apperrors.NewNoRecipients(map[string]any{
			"roles":   input.Target.Roles,
			"regions": input.Target.Regions,
			"users":   input.Target.Users,
		})
	}

	announcement := &domain.Announcement{
		Title:                title,
		Message:              message,
		CreatedByUID:         actor.ID,
		CreatedByDisplayName: actor.Name,
		StartDate:            input.StartDate,
		EndDate:              input.EndDate,
		Target:               input.Target,
		RecipientUIDs:        recipients,
		RecipientCount:       len(recipients),
	}

	phase1, cancel1 := context.WithTimeout(ctx, s.sendTimeout)
	err = s.announcements.Create(phase1, announcement)
	cancel1()
	if err != nil {
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewTimeout("canonical announcement write", err)
		}
		return nil, apperrors.NewCanonicalWriteError(err)
	}

	phase2, cancel2 := context.WithTimeout(ctx, s.sendTimeout)
	err = s.stubs.CreateBatch(phase2, buildStubs(announcement))
	cancel2()
	if err != nil {
		s.logger.Error("announcement fan-out failed",
			zap.String("announcement_id", announcement.ID),
			zap.Int("recipients", announcement.RecipientCount),
			zap.Error(err))
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewTimeout("announcement fan-out", err)
		}
		return nil, apperrors.NewFanoutError(err, announcement.ID)
	}

	s.unreadCache.Invalidate(ctx, recipients...)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventAnnouncementPublished,
		EntityID: announcement.ID,
		ActorID:  &actor.ID,
		Payload: events.AnnouncementPublishedPayload{
			Title:          announcement.Title,
			Target:         announcement.Target,
			RecipientCount: announcement.RecipientCount,
		},
	})
	s.logger.Info("announcement published",
		zap.String("announcement_id", announcement.ID),
		zap.Int("recipients", announcement.RecipientCount))
	return announcement, nil
}

// Refanout re-runs phase 2 for an existing announcement using its frozen
// recipient snapshot. Safe to repeat: stubs are keyed per recipient.
func (s *AnnouncementService) Refanout(ctx context.Context, actor *domain.User, announcementID string) (*domain.Announcement, error) {
	announcement, err := s.requireOperator(ctx, actor, announcementID)
	if err != nil {
		return nil, err
	}

	phase2, cancel := context.WithTimeout(ctx, s.sendTimeout)
	err = s.stubs.CreateBatch(phase2, buildStubs(announcement))
	cancel()
	if err != nil {
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewTimeout("announcement fan-out", err)
		}
		return nil, apperrors.NewFanoutError(err, announcement.ID)
	}
	s.unreadCache.Invalidate(ctx, announcement.RecipientUIDs...)
	return announcement, nil
}

// MarkRead unions the caller into the announcement's read set. Idempotent;
// a caller outside the frozen recipient snapshot is a no-op.
func (s *AnnouncementService) MarkRead(ctx context.Context, actor *domain.User, announcementID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("user required")
	}
	changed, err := s.announcements.MarkRead(ctx, announcementID, actor.ID)
	if err != nil {
		return apperrors.NewReadTrackingError(err)
	}
	if changed {
		s.unreadCache.Invalidate(ctx, actor.ID)
		s.publishEvent(ctx, events.Event{
			Type:     events.EventAnnouncementRead,
			EntityID: announcementID,
			ActorID:  &actor.ID,
			Payload:  events.AnnouncementReadPayload{UserID: actor.ID},
		})
	}
	return nil
}

// MarkAllRead marks every currently-relevant unread announcement as read in
// one batch, issuing exactly one write per unread announcement. Returns the
// number of announcements updated.
func (s *AnnouncementService) MarkAllRead(ctx context.Context, actor *domain.User) (int, error) {
	if actor == nil {
		return 0, apperrors.NewUnauthorized("user required")
	}
	unread, err := s.announcements.ListUnreadIDsForRecipient(ctx, actor.ID, s.now())
	if err != nil {
		return 0, apperrors.NewReadTrackingError(err)
	}
	if len(unread) == 0 {
		return 0, nil
	}
	if err := s.announcements.MarkReadBatch(ctx, actor.ID, unread); err != nil {
		return 0, apperrors.NewReadTrackingError(err)
	}
	s.unreadCache.Invalidate(ctx, actor.ID)
	return len(unread), nil
}

// ListRelevant returns announcements visible to the caller right now: member
// of the frozen recipient snapshot and inside the active window.
func (s *AnnouncementService) ListRelevant(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Announcement, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	result, err := s.announcements.ListForRecipient(ctx, actor.ID, s.now(), limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// UnreadCount returns the caller's unread relevant announcement count,
// served from the Redis cache when fresh.
func (s *AnnouncementService) UnreadCount(ctx context.Context, actor *domain.User) (int, error) {
	if actor == nil {
		return 0, apperrors.NewUnauthorized("user required")
	}
	if count, ok := s.unreadCache.Get(ctx, actor.ID); ok {
		return count, nil
	}
	count, err := s.announcements.CountUnreadForRecipient(ctx, actor.ID, s.now())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.unreadCache.Set(ctx, actor.ID, count)
	return count, nil
}

// GetForOperator returns the full record including read statistics.
func (s *AnnouncementService) GetForOperator(ctx context.Context, actor *domain.User, announcementID string) (*domain.Announcement, error) {
	return s.requireOperator(ctx, actor, announcementID)
}

// ListAll returns every announcement for operator dashboards.
func (s *AnnouncementService) ListAll(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Announcement, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	if !s.policy.Can(actor, auth.ResourceAnnouncements, auth.ActionCreate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceAnnouncements), "list")
	}
	result, err := s.announcements.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// Delete hard-deletes the canonical record and its stubs in one transaction.
// Allowed for ADMIN/HEAD, or the author.
func (s *AnnouncementService) Delete(ctx context.Context, actor *domain.User, announcementID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("user required")
	}
	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return apperrors.NewNotFound("announcement", map[string]any{"announcement_id": announcementID})
	}
	allowed := s.policy.Can(actor, auth.ResourceAnnouncements, auth.ActionDelete) ||
		(announcement.CreatedByUID == actor.ID && s.policy.Can(actor, auth.ResourceAnnouncements, auth.ActionCreate))
	if !allowed {
		return apperrors.NewPermissionDenied(string(auth.ResourceAnnouncements), string(auth.ActionDelete))
	}
	if err := s.announcements.Delete(ctx, announcementID); err != nil {
		return apperrors.MapError(err)
	}
	s.unreadCache.Invalidate(ctx, announcement.RecipientUIDs...)
	return nil
}

// NotificationView pairs a stub with its derived read state.
type NotificationView struct {
	Stub domain.NotificationStub
	Read bool
}

// ListNotifications returns the caller's fan-out inbox, newest first. Read
// state is derived from the canonical read sets, never stored on the stub.
func (s *AnnouncementService) ListNotifications(ctx context.Context, actor *domain.User, limit, offset int) ([]NotificationView, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	stubs, err := s.stubs.ListByRecipient(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	unread, err := s.announcements.ListUnreadIDsForRecipient(ctx, actor.ID, s.now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	unreadSet := make(map[string]struct{}, len(unread))
	for _, id := range unread {
		unreadSet[id] = struct{}{}
	}

	views := make([]NotificationView, 0, len(stubs))
	for _, stub := range stubs {
		_, isUnread := unreadSet[stub.AnnouncementID]
		views = append(views, NotificationView{Stub: stub, Read: !isUnread})
	}
	return views, nil
}

func (s *AnnouncementService) requireOperator(ctx context.Context, actor *domain.User, announcementID string) (*domain.Announcement, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	if !s.policy.Can(actor, auth.ResourceAnnouncements, auth.ActionCreate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceAnnouncements), string(auth.ActionRead))
	}
	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		return nil, apperrors.NewNotFound("announcement", map[string]any{"announcement_id": announcementID})
	}
	return announcement, nil
}

func (s *AnnouncementService) freshDirectory(ctx context.Context) ([]domain.User, error) {
	status := domain.UserStatusActive
	return s.users.List(ctx, repository.UserFilter{Status: &status})
}

func buildStubs(a *domain.Announcement) []domain.NotificationStub {
	stubs := make([]domain.NotificationStub, 0, len(a.RecipientUIDs))
	for _, uid := range a.RecipientUIDs {
		stubs = append(stubs, domain.NotificationStub{
			AnnouncementID: a.ID,
			RecipientUID:   uid,
			Title:          a.Title,
			Message:        a.Message,
		})
	}
	return stubs
}

func (s *AnnouncementService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = newEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

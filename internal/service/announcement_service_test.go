package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheezious/it-support/internal/announce"
	"github.com/cheezious/it-support/internal/auth"
	"github.com/cheezious/it-support/internal/cache"
	"github.com/cheezious/it-support/internal/domain"
	"github.com/cheezious/it-support/internal/events"
	"github.com/cheezious/it-support/internal/repository"
	apperrors "github.com/cheezious/it-support/pkg/util"
)

type fakeUserRepo struct {
	users   []domain.User
	listErr error
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error { return nil }
func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error { return nil }
func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, errors.New("not found")
}
func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for i := range f.users {
		if f.users[i].Email == email {
			return &f.users[i], nil
		}
	}
	return nil, errors.New("not found")
}
func (f *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	result := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		result = append(result, u)
	}
	return result, nil
}

type fakeAnnouncementRepo struct {
	store      map[string]*domain.Announcement
	createErr  error
	markErr    error
	nextID     int
	writeCalls int
}

func newFakeAnnouncementRepo() *fakeAnnouncementRepo {
	return &fakeAnnouncementRepo{store: map[string]*domain.Announcement{}}
}

func (f *fakeAnnouncementRepo) Create(_ context.Context, a *domain.Announcement) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	a.ID = fmt.Sprintf("ann-%d", f.nextID)
	a.CreatedAt = time.Now()
	clone := *a
	f.store[a.ID] = &clone
	return nil
}

func (f *fakeAnnouncementRepo) GetByID(_ context.Context, id string) (*domain.Announcement, error) {
	a, ok := f.store[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	clone := *a
	return &clone, nil
}

func (f *fakeAnnouncementRepo) ListAll(_ context.Context, limit, offset int) ([]domain.Announcement, error) {
	result := make([]domain.Announcement, 0, len(f.store))
	for _, a := range f.store {
		result = append(result, *a)
	}
	return result, nil
}

func (f *fakeAnnouncementRepo) ListForRecipient(_ context.Context, uid string, now time.Time, limit, offset int) ([]domain.Announcement, error) {
	result := []domain.Announcement{}
	for _, a := range f.store {
		if announce.RelevantTo(a, uid, now) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (f *fakeAnnouncementRepo) ListUnreadIDsForRecipient(_ context.Context, uid string, now time.Time) ([]string, error) {
	ids := []string{}
	for _, a := range f.store {
		if announce.RelevantTo(a, uid, now) && !a.IsReadBy(uid) {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (f *fakeAnnouncementRepo) CountUnreadForRecipient(ctx context.Context, uid string, now time.Time) (int, error) {
	ids, err := f.ListUnreadIDsForRecipient(ctx, uid, now)
	return len(ids), err
}

func (f *fakeAnnouncementRepo) MarkRead(_ context.Context, announcementID, uid string) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	f.writeCalls++
	a, ok := f.store[announcementID]
	if !ok {
		return false, nil
	}
	member := false
	for _, r := range a.RecipientUIDs {
		if r == uid {
			member = true
			break
		}
	}
	if !member || a.IsReadBy(uid) {
		return false, nil
	}
	a.ReadBy = append(a.ReadBy, uid)
	return true, nil
}

func (f *fakeAnnouncementRepo) MarkReadBatch(ctx context.Context, uid string, ids []string) error {
	for _, id := range ids {
		if _, err := f.MarkRead(ctx, id, uid); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAnnouncementRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.store[id]; !ok {
		return errors.New("no rows")
	}
	delete(f.store, id)
	return nil
}

type fakeStubRepo struct {
	stubs     map[string]domain.NotificationStub
	batchErr  error
	failFirst int
}

func newFakeStubRepo() *fakeStubRepo {
	return &fakeStubRepo{stubs: map[string]domain.NotificationStub{}}
}

func stubKey(annID, uid string) string { return annID + "/" + uid }

func (f *fakeStubRepo) CreateBatch(_ context.Context, stubs []domain.NotificationStub) error {
	if f.batchErr != nil {
		err := f.batchErr
		if f.failFirst > 0 {
			f.failFirst--
			if f.failFirst == 0 {
				f.batchErr = nil
			}
		}
		return err
	}
	for _, stub := range stubs {
		key := stubKey(stub.AnnouncementID, stub.RecipientUID)
		if _, exists := f.stubs[key]; exists {
			continue
		}
		f.stubs[key] = stub
	}
	return nil
}

func (f *fakeStubRepo) ListByRecipient(_ context.Context, uid string, limit, offset int) ([]domain.NotificationStub, error) {
	result := []domain.NotificationStub{}
	for _, stub := range f.stubs {
		if stub.RecipientUID == uid {
			result = append(result, stub)
		}
	}
	return result, nil
}

func (f *fakeStubRepo) CountByAnnouncement(_ context.Context, announcementID string) (int, error) {
	count := 0
	for _, stub := range f.stubs {
		if stub.AnnouncementID == announcementID {
			count++
		}
	}
	return count, nil
}

type fixture struct {
	svc   *AnnouncementService
	anns  *fakeAnnouncementRepo
	stubs *fakeStubRepo
	users *fakeUserRepo
}

func opsUser() *domain.User {
	return &domain.User{ID: "op-1", Name: "Ops", Email: "ops@cheezious.com", Role: domain.RoleITSupport, Status: domain.UserStatusActive}
}

func newFixture(directory []domain.User) *fixture {
	anns := newFakeAnnouncementRepo()
	stubs := newFakeStubRepo()
	users := &fakeUserRepo{users: directory}
	svc := NewAnnouncementService(AnnouncementDependencies{
		AnnouncementRepo: anns,
		StubRepo:         stubs,
		UserRepo:         users,
		Policy:           auth.NewPolicy(nil),
		Dispatcher:       events.NewInMemoryDispatcher(),
		UnreadCache:      cache.NewUnreadCounts(nil, 0),
		SendTimeout:      time.Second,
	})
	return &fixture{svc: svc, anns: anns, stubs: stubs, users: users}
}

func defaultDirectory() []domain.User {
	return []domain.User{
		{ID: "u1", Email: "u1@x.com", Role: domain.RoleUser, Region: "ISL", Status: domain.UserStatusActive},
		{ID: "u2", Email: "u2@x.com", Role: domain.RoleUser, Region: "LHR", Status: domain.UserStatusActive},
		{ID: "b1", Email: "b1@x.com", Role: domain.RoleBranch, Regions: []string{"ISL", "RWP"}, Status: domain.UserStatusActive},
		{ID: "s1", Email: "s1@x.com", Role: domain.RoleITSupport, Region: "ISL", Status: domain.UserStatusActive},
	}
}

func domainErrCode(t *testing.T, err error) string {
	t.Helper()
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	return de.Code
}

func TestSendFansOutToEveryResolvedRecipient(t *testing.T) {
	fx := newFixture(defaultDirectory())

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "POS maintenance",
		Message: "POS terminals will restart at midnight.",
		Target:  domain.TargetRule{Regions: []string{"ISL"}},
	})
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.ElementsMatch(t, []string{"u1", "b1", "s1"}, a.RecipientUIDs)
	assert.Equal(t, 3, a.RecipientCount)

	count, err := fx.stubs.CountByAnnouncement(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.RecipientCount, count)
}

func TestSendBroadcastOnEmptyRule(t *testing.T) {
	fx := newFixture(defaultDirectory())

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "All hands",
		Message: "Quarterly review this Friday at 4pm.",
		Target:  domain.TargetRule{},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, a.RecipientCount)
}

func TestSendRejectsEmptyRecipientSetWithoutWrites(t *testing.T) {
	fx := newFixture(defaultDirectory())

	_, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Nobody home",
		Message: "This should never reach anyone at all.",
		Target:  domain.TargetRule{Regions: []string{"KHI"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNoRecipients, domainErrCode(t, err))
	assert.Empty(t, fx.anns.store)
	assert.Empty(t, fx.stubs.stubs)
}

func TestSendCanonicalWriteFailureLeavesNothingBehind(t *testing.T) {
	fx := newFixture(defaultDirectory())
	fx.anns.createErr = errors.New("connection reset")

	_, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Network outage",
		Message: "Head office link down, ETA unknown.",
		Target:  domain.TargetRule{},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCanonicalWrite, domainErrCode(t, err))
	assert.Empty(t, fx.stubs.stubs)
}

func TestSendFanoutFailureCarriesAnnouncementID(t *testing.T) {
	fx := newFixture(defaultDirectory())
	fx.stubs.batchErr = errors.New("batch insert failed")

	_, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Partial delivery",
		Message: "Stub inserts will fail for this send.",
		Target:  domain.TargetRule{},
	})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeFanout, de.Code)

	// canonical record survived phase 2 failure and the error names it
	require.Len(t, fx.anns.store, 1)
	var annID string
	for id := range fx.anns.store {
		annID = id
	}
	assert.Equal(t, annID, de.Details["announcement_id"])
}

func TestSendTimeoutIsDistinguishable(t *testing.T) {
	fx := newFixture(defaultDirectory())
	fx.anns.createErr = context.DeadlineExceeded

	_, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Slow database",
		Message: "This write exceeds its deadline today.",
		Target:  domain.TargetRule{},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTimeout, domainErrCode(t, err))
}

func TestSendDeniedForNonStaff(t *testing.T) {
	fx := newFixture(defaultDirectory())
	requester := &domain.User{ID: "u1", Email: "u1@x.com", Role: domain.RoleUser, Status: domain.UserStatusActive}

	_, err := fx.svc.Send(context.Background(), requester, AnnouncementInput{
		Title:   "Not allowed",
		Message: "Plain users cannot publish announcements.",
		Target:  domain.TargetRule{},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePermissionDenied, domainErrCode(t, err))
	assert.Empty(t, fx.anns.store)
}

func TestSendValidatesTitleAndMessage(t *testing.T) {
	fx := newFixture(defaultDirectory())

	_, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "ab",
		Message: "long enough message body here",
		Target:  domain.TargetRule{},
	})
	assert.Equal(t, apperrors.CodeValidationFailed, domainErrCode(t, err))

	_, err = fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Valid title",
		Message: "short",
		Target:  domain.TargetRule{},
	})
	assert.Equal(t, apperrors.CodeValidationFailed, domainErrCode(t, err))
}

func TestRefanoutFillsMissingStubs(t *testing.T) {
	fx := newFixture(defaultDirectory())
	fx.stubs.batchErr = errors.New("transient")
	fx.stubs.failFirst = 1

	_, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Retry me",
		Message: "First fan-out fails, refanout recovers.",
		Target:  domain.TargetRule{},
	})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	annID, ok := de.Details["announcement_id"].(string)
	require.True(t, ok)

	a, err := fx.svc.Refanout(context.Background(), opsUser(), annID)
	require.NoError(t, err)

	count, err := fx.stubs.CountByAnnouncement(context.Background(), annID)
	require.NoError(t, err)
	assert.Equal(t, a.RecipientCount, count)

	// repeating is harmless: stubs are keyed per recipient
	_, err = fx.svc.Refanout(context.Background(), opsUser(), annID)
	require.NoError(t, err)
	count, _ = fx.stubs.CountByAnnouncement(context.Background(), annID)
	assert.Equal(t, a.RecipientCount, count)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	fx := newFixture(defaultDirectory())
	reader := &domain.User{ID: "u1", Email: "u1@x.com", Role: domain.RoleUser, Status: domain.UserStatusActive}

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Read receipts",
		Message: "Mark this one as read twice please.",
		Target:  domain.TargetRule{},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.MarkRead(context.Background(), reader, a.ID))
	require.NoError(t, fx.svc.MarkRead(context.Background(), reader, a.ID))

	stored, err := fx.anns.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, stored.ReadBy)
}

func TestMarkReadIgnoresNonRecipients(t *testing.T) {
	fx := newFixture(defaultDirectory())
	outsider := &domain.User{ID: "u2", Email: "u2@x.com", Role: domain.RoleUser, Status: domain.UserStatusActive}

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "ISL only",
		Message: "Targeted at the Islamabad region only.",
		Target:  domain.TargetRule{Regions: []string{"ISL"}},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.MarkRead(context.Background(), outsider, a.ID))
	stored, err := fx.anns.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ReadBy)
}

func TestMarkAllReadWritesOncePerUnread(t *testing.T) {
	fx := newFixture(defaultDirectory())
	reader := &domain.User{ID: "u1", Email: "u1@x.com", Role: domain.RoleUser, Status: domain.UserStatusActive}

	for i := 0; i < 3; i++ {
		_, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
			Title:   fmt.Sprintf("Update %d", i),
			Message: "One of several pending announcements.",
			Target:  domain.TargetRule{},
		})
		require.NoError(t, err)
	}

	fx.anns.writeCalls = 0
	updated, err := fx.svc.MarkAllRead(context.Background(), reader)
	require.NoError(t, err)
	assert.Equal(t, 3, updated)
	assert.Equal(t, 3, fx.anns.writeCalls)

	// nothing left to mark
	fx.anns.writeCalls = 0
	updated, err = fx.svc.MarkAllRead(context.Background(), reader)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Equal(t, 0, fx.anns.writeCalls)
}

func TestListRelevantHonorsSnapshotAndWindow(t *testing.T) {
	fx := newFixture(defaultDirectory())
	reader := &domain.User{ID: "u1", Email: "u1@x.com", Role: domain.RoleUser, Status: domain.UserStatusActive}
	outsider := &domain.User{ID: "u2", Email: "u2@x.com", Role: domain.RoleUser, Status: domain.UserStatusActive}

	past := time.Now().Add(-48 * time.Hour)
	_, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Expired",
		Message: "This window closed two days ago now.",
		EndDate: &past,
		Target:  domain.TargetRule{Regions: []string{"ISL"}},
	})
	require.NoError(t, err)

	current, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Current",
		Message: "Active announcement for the ISL region.",
		Target:  domain.TargetRule{Regions: []string{"ISL"}},
	})
	require.NoError(t, err)

	visible, err := fx.svc.ListRelevant(context.Background(), reader, 50, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, current.ID, visible[0].ID)

	none, err := fx.svc.ListRelevant(context.Background(), outsider, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnreadCountTracksReads(t *testing.T) {
	fx := newFixture(defaultDirectory())
	reader := &domain.User{ID: "u1", Email: "u1@x.com", Role: domain.RoleUser, Status: domain.UserStatusActive}

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Unread tracking",
		Message: "Count me until the user reads this.",
		Target:  domain.TargetRule{},
	})
	require.NoError(t, err)

	count, err := fx.svc.UnreadCount(context.Background(), reader)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, fx.svc.MarkRead(context.Background(), reader, a.ID))
	count, err = fx.svc.UnreadCount(context.Background(), reader)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestExplicitUserTargetingOverridesFilters(t *testing.T) {
	fx := newFixture(defaultDirectory())

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Direct mention",
		Message: "Only the named users receive this one.",
		Target: domain.TargetRule{
			Roles:   []domain.Role{domain.RoleBranch},
			Regions: []string{"LHR"},
			Users:   []string{"u1", "ghost"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, a.RecipientUIDs)
}

func TestDeleteRemovesAnnouncement(t *testing.T) {
	fx := newFixture(defaultDirectory())
	admin := &domain.User{ID: "adm", Email: "adm@x.com", Role: domain.RoleAdmin, Status: domain.UserStatusActive}

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Retract me",
		Message: "Sent by mistake, remove immediately please.",
		Target:  domain.TargetRule{},
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(context.Background(), admin, a.ID))
	_, err = fx.anns.GetByID(context.Background(), a.ID)
	assert.Error(t, err)
}

func TestDeleteDeniedForNonPrivileged(t *testing.T) {
	fx := newFixture(defaultDirectory())
	other := &domain.User{ID: "s2", Email: "s2@x.com", Role: domain.RoleITSupport, Status: domain.UserStatusActive}

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Protected",
		Message: "Only admins or the author may delete.",
		Target:  domain.TargetRule{},
	})
	require.NoError(t, err)

	err = fx.svc.Delete(context.Background(), other, a.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePermissionDenied, domainErrCode(t, err))
}

func TestNotificationsDeriveReadStateFromCanonicalRecord(t *testing.T) {
	fx := newFixture(defaultDirectory())
	reader := &domain.User{ID: "u1", Email: "u1@x.com", Role: domain.RoleUser, Status: domain.UserStatusActive}

	a, err := fx.svc.Send(context.Background(), opsUser(), AnnouncementInput{
		Title:   "Inbox entry",
		Message: "Shows as unread until marked read here.",
		Target:  domain.TargetRule{},
	})
	require.NoError(t, err)

	views, err := fx.svc.ListNotifications(context.Background(), reader, 50, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].Read)

	require.NoError(t, fx.svc.MarkRead(context.Background(), reader, a.ID))
	views, err = fx.svc.ListNotifications(context.Background(), reader, 50, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Read)
}

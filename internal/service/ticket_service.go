package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cheezious/it-support/internal/auth"
	"github.com/cheezious/it-support/internal/domain"
	"github.com/cheezious/it-support/internal/events"
	"github.com/cheezious/it-support/internal/repository"
	apperrors "github.com/cheezious/it-support/pkg/util"
)

// TicketService coordinates IT support ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.TicketMessageRepository
	attachments repository.AttachmentRepository
	regions     repository.RegionRepository
	branches    repository.BranchRepository
	history     repository.TicketHistoryRepository
	policy      *auth.Policy
	dispatcher  events.Dispatcher
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.TicketMessageRepository
	AttachmentRepo repository.AttachmentRepository
	RegionRepo     repository.RegionRepository
	BranchRepo     repository.BranchRepository
	HistoryRepo    repository.TicketHistoryRepository
	Policy         *auth.Policy
	Dispatcher     events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RegionID    string
	BranchID    *string
	Category    domain.TicketCategory
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketUserFilter describes end-user listing filters.
type TicketUserFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketStaffFilter describes staff listing filters.
type TicketStaffFilter struct {
	RegionID    *string
	BranchID    *string
	AssigneeID  *string
	Categories  []domain.TicketCategory
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// MessageAttachmentInput defines attachment metadata.
type MessageAttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		attachments: deps.AttachmentRepo,
		regions:     deps.RegionRepo,
		branches:    deps.BranchRepo,
		history:     deps.HistoryRepo,
		policy:      deps.Policy,
		dispatcher:  deps.Dispatcher,
	}
}

// CreateTicket creates a ticket on behalf of the requester.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if !s.policy.Can(actor, auth.ResourceTickets, auth.ActionCreate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionCreate))
	}
	region, err := s.regions.GetByID(ctx, input.RegionID)
	if err != nil {
		return nil, apperrors.NewNotFound("region", map[string]any{"region_id": input.RegionID})
	}
	if !region.IsActive {
		return nil, apperrors.NewValidationError("region inactive", nil)
	}
	if input.BranchID != nil {
		branch, err := s.branches.GetByID(ctx, *input.BranchID)
		if err != nil {
			return nil, apperrors.NewNotFound("branch", map[string]any{"branch_id": *input.BranchID})
		}
		if !branch.IsActive {
			return nil, apperrors.NewValidationError("branch inactive", nil)
		}
		if branch.RegionID != input.RegionID {
			return nil, apperrors.NewValidationError("branch not part of region", nil)
		}
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: actor.ID,
		RegionID:    input.RegionID,
		BranchID:    input.BranchID,
		Category:    input.Category,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if ticket.Category == "" {
		ticket.Category = domain.TicketCategoryOther
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		EntityID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketCreatedPayload{
			RegionID: ticket.RegionID,
			BranchID: ticket.BranchID,
			Category: ticket.Category,
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})
	return ticket, nil
}

// ListUserTickets returns paginated tickets for a requester.
func (s *TicketService) ListUserTickets(ctx context.Context, actor *domain.User, filter TicketUserFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		RequesterID: &actor.ID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// GetTicketForUser fetches a ticket ensuring ownership.
func (s *TicketService) GetTicketForUser(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.RequesterID != actor.ID {
		return nil, nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionRead))
	}
	msgs, err := s.visibleMessagesForUser(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, msgs, nil
}

// ListStaffTickets returns tickets accessible to staff, scoped to their
// regions unless they are ADMIN or HEAD.
func (s *TicketService) ListStaffTickets(ctx context.Context, actor *domain.User, filter TicketStaffFilter) ([]domain.Ticket, error) {
	if !s.policy.Can(actor, auth.ResourceTickets, auth.ActionUpdate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionRead))
	}
	repoFilter := repository.TicketFilter{
		RegionID:    filter.RegionID,
		BranchID:    filter.BranchID,
		AssigneeID:  filter.AssigneeID,
		Categories:  filter.Categories,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if err := s.applyStaffScope(ctx, &repoFilter, actor); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// GetTicketForStaff fetches ticket ensuring staff access.
func (s *TicketService) GetTicketForStaff(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.requireStaffTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messagesWithAttachments(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, msgs, nil
}

// AddMessage appends a message to a ticket thread.
func (s *TicketService) AddMessage(ctx context.Context, actor *domain.User, ticketID string, messageType domain.TicketMessageType, body string, attachments []MessageAttachmentInput) (*domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if actor.Role.IsStaff() {
		if ok, err := s.staffCanAccessTicket(ctx, actor, ticket); err != nil {
			return nil, apperrors.MapError(err)
		} else if !ok {
			return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionUpdate))
		}
		if messageType != domain.MessageTypePublicReply && messageType != domain.MessageTypeInternalNote {
			return nil, apperrors.NewValidationError("invalid message type for staff", nil)
		}
	} else {
		if ticket.RequesterID != actor.ID {
			return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionUpdate))
		}
		if messageType != domain.MessageTypePublicReply {
			return nil, apperrors.NewValidationError("only public replies allowed", nil)
		}
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		AuthorID:    &actor.ID,
		AuthorRole:  actor.Role,
		MessageType: messageType,
		Body:        strings.TrimSpace(body),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, att := range attachments {
		record := &domain.AttachmentReference{
			TicketMessageID: msg.ID,
			StorageKey:      att.StorageKey,
			FileName:        att.FileName,
			MimeType:        att.MimeType,
			SizeBytes:       att.SizeBytes,
		}
		if err := s.attachments.Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
		msg.Attachments = append(msg.Attachments, *record)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		EntityID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			MessageType: msg.MessageType,
			AuthorID:    msg.AuthorID,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// CloseTicketAsUser lets the requester close a resolved or pending ticket.
func (s *TicketService) CloseTicketAsUser(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.RequesterID != actor.ID {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionUpdate))
	}
	if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusPendingUser {
		return nil, apperrors.NewConflict("ticket cannot be closed in current status", map[string]any{"status": ticket.Status})
	}
	now := time.Now()
	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordStatusChange(ctx, &actor.ID, ticket.ID, oldStatus, ticket.Status, "user_closed"); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		EntityID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Comment:   "user_closed",
		},
	})
	return ticket, nil
}

// UpdateStatus transitions ticket status by staff.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus, comment string) (*domain.Ticket, error) {
	ticket, err := s.requireStaffTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   newStatus,
		})
	}
	oldStatus := ticket.Status
	if newStatus == domain.TicketStatusClosed {
		now := time.Now()
		ticket.ClosedAt = &now
	} else if ticket.ClosedAt != nil {
		ticket.ClosedAt = nil
	}
	ticket.Status = newStatus
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordStatusChange(ctx, &actor.ID, ticket.ID, oldStatus, newStatus, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		EntityID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Comment:   comment,
		},
	})
	return ticket, nil
}

// UpdatePriority changes ticket priority by staff.
func (s *TicketService) UpdatePriority(ctx context.Context, actor *domain.User, ticketID string, newPriority domain.TicketPriority) (*domain.Ticket, error) {
	ticket, err := s.requireStaffTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	oldPriority := ticket.Priority
	ticket.Priority = newPriority
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordPriorityChange(ctx, &actor.ID, ticket.ID, oldPriority, newPriority); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		EntityID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: newPriority,
		},
	})
	return ticket, nil
}

// ListHistoryForStaff returns audit entries for staff.
func (s *TicketService) ListHistoryForStaff(ctx context.Context, actor *domain.User, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.requireStaffTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID, limit, offset)
}

// ListHistoryForUser returns user-safe audit entries.
func (s *TicketService) ListHistoryForUser(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.RequesterID != actor.ID {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionRead))
	}
	history, err := s.history.ListByTicket(ctx, ticketID, 100, 0)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	allowed := []domain.TicketHistory{}
	for _, entry := range history {
		if entry.ChangeType == domain.ChangeTypeStatus || entry.ChangeType == domain.ChangeTypeAssignee || entry.ChangeType == domain.ChangeTypeBranch {
			allowed = append(allowed, entry)
		}
	}
	return allowed, nil
}

func (s *TicketService) requireStaffTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if !s.policy.Can(actor, auth.ResourceTickets, auth.ActionUpdate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionUpdate))
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ok, err := s.staffCanAccessTicket(ctx, actor, ticket); err != nil {
		return nil, apperrors.MapError(err)
	} else if !ok {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionUpdate))
	}
	return ticket, nil
}

// applyStaffScope narrows a listing filter to the staff member's regions.
// ADMIN and HEAD see everything.
func (s *TicketService) applyStaffScope(ctx context.Context, filter *repository.TicketFilter, actor *domain.User) error {
	if actor.Role == domain.RoleAdmin || actor.Role == domain.RoleHead || s.policy.IsRoot(actor.Email) {
		return nil
	}
	ids, err := s.regionIDsForCodes(ctx, actor.EffectiveRegions())
	if err != nil {
		return err
	}
	filter.RegionIDs = ids
	return nil
}

func (s *TicketService) staffCanAccessTicket(ctx context.Context, actor *domain.User, ticket *domain.Ticket) (bool, error) {
	if actor.Role == domain.RoleAdmin || actor.Role == domain.RoleHead || s.policy.IsRoot(actor.Email) {
		return true, nil
	}
	region, err := s.regions.GetByID(ctx, ticket.RegionID)
	if err != nil {
		return false, err
	}
	for _, code := range actor.EffectiveRegions() {
		if code == region.Code {
			return true, nil
		}
	}
	return false, nil
}

func (s *TicketService) regionIDsForCodes(ctx context.Context, codes []string) ([]string, error) {
	ids := make([]string, 0, len(codes))
	for _, code := range codes {
		region, err := s.regions.GetByCode(ctx, code)
		if err != nil {
			continue
		}
		ids = append(ids, region.ID)
	}
	if len(ids) == 0 {
		// no recognized regions means an empty scope, never a full one
		ids = append(ids, uuid.Nil.String())
	}
	return ids, nil
}

func (s *TicketService) visibleMessagesForUser(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	msgs, err := s.messagesWithAttachments(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.TicketMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.MessageType == domain.MessageTypeInternalNote {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered, nil
}

func (s *TicketService) messagesWithAttachments(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		attachments, err := s.attachments.ListByMessage(ctx, msgs[i].ID)
		if err != nil {
			return nil, err
		}
		msgs[i].Attachments = attachments
	}
	return msgs, nil
}

func generateTicketKey() string {
	return "CHZ-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = newEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:        {domain.TicketStatusInProgress, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress:  {domain.TicketStatusPendingUser, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusPendingUser: {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusResolved:    {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:      {},
	domain.TicketStatusCancelled:   {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s *TicketService) recordStatusChange(ctx context.Context, actorID *string, ticketID string, oldStatus, newStatus domain.TicketStatus, comment string) error {
	if s.history == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": oldStatus},
		NewValue:    map[string]any{"status": newStatus, "comment": comment},
	}
	return s.history.Create(ctx, entry)
}

func (s *TicketService) recordPriorityChange(ctx context.Context, actorID *string, ticketID string, oldPriority, newPriority domain.TicketPriority) error {
	if s.history == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  domain.ChangeTypePriority,
		OldValue:    map[string]any{"priority": oldPriority},
		NewValue:    map[string]any{"priority": newPriority},
	}
	return s.history.Create(ctx, entry)
}

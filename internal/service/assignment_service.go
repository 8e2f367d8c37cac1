package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cheezious/it-support/internal/auth"
	"github.com/cheezious/it-support/internal/domain"
	"github.com/cheezious/it-support/internal/events"
	"github.com/cheezious/it-support/internal/repository"
	apperrors "github.com/cheezious/it-support/pkg/util"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	regions     repository.RegionRepository
	branches    repository.BranchRepository
	historyRepo repository.TicketHistoryRepository
	policy      *auth.Policy
	dispatcher  events.Dispatcher
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	RegionRepo  repository.RegionRepository
	BranchRepo  repository.BranchRepository
	HistoryRepo repository.TicketHistoryRepository
	Policy      *auth.Policy
	Dispatcher  events.Dispatcher
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		regions:     deps.RegionRepo,
		branches:    deps.BranchRepo,
		historyRepo: deps.HistoryRepo,
		policy:      deps.Policy,
		dispatcher:  deps.Dispatcher,
	}
}

// SelfAssignTicket lets a staff member take a ticket in their scope.
func (s *AssignmentService) SelfAssignTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	if !s.policy.Can(actor, auth.ResourceTickets, auth.ActionAssign) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionAssign))
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ok, err := s.staffCanAccess(ctx, actor, ticket); err != nil {
		return nil, apperrors.MapError(err)
	} else if !ok {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionAssign))
	}
	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &actor.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordAssigneeChange(ctx, actor.ID, ticket.ID, oldAssignee, ticket.AssigneeID); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishAssignmentEvent(ctx, actor.ID, events.TicketAssignedPayload{
		AssigneeID: ticket.AssigneeID,
		BranchID:   ticket.BranchID,
	}, ticket.ID)
	return ticket, nil
}

// AssignTicketToUser assigns a ticket to another staff member.
func (s *AssignmentService) AssignTicketToUser(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	if !s.policy.Can(actor, auth.ResourceTickets, auth.ActionAssign) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionAssign))
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Role.IsStaff() {
		return nil, apperrors.NewConflict("assignee is not staff", map[string]any{"user_id": assigneeID})
	}
	if assignee.Status != domain.UserStatusActive {
		return nil, apperrors.NewConflict("assignee suspended", map[string]any{"user_id": assigneeID})
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ok, err := s.staffCanAccess(ctx, actor, ticket); err != nil {
		return nil, apperrors.MapError(err)
	} else if !ok {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionAssign))
	}
	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &assignee.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordAssigneeChange(ctx, actor.ID, ticket.ID, oldAssignee, ticket.AssigneeID); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishAssignmentEvent(ctx, actor.ID, events.TicketAssignedPayload{
		AssigneeID: ticket.AssigneeID,
		BranchID:   ticket.BranchID,
	}, ticket.ID)
	return ticket, nil
}

// MoveTicketToBranch reattaches the ticket to another branch and clears the
// assignee. The ticket follows the branch's region.
func (s *AssignmentService) MoveTicketToBranch(ctx context.Context, actor *domain.User, ticketID, branchID string) (*domain.Ticket, error) {
	if !s.policy.Can(actor, auth.ResourceTickets, auth.ActionAssign) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionAssign))
	}
	branch, err := s.branches.GetByID(ctx, branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("branch", map[string]any{"branch_id": branchID})
		}
		return nil, apperrors.MapError(err)
	}
	if !branch.IsActive {
		return nil, apperrors.NewConflict("branch inactive", map[string]any{"branch_id": branchID})
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ok, err := s.staffCanAccess(ctx, actor, ticket); err != nil {
		return nil, apperrors.MapError(err)
	} else if !ok {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceTickets), string(auth.ActionAssign))
	}
	oldBranch := ticket.BranchID
	oldRegion := ticket.RegionID
	ticket.BranchID = &branch.ID
	ticket.RegionID = branch.RegionID
	ticket.AssigneeID = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordBranchChange(ctx, actor.ID, ticket.ID, oldBranch, ticket.BranchID); err != nil {
		return nil, apperrors.MapError(err)
	}
	if oldRegion != branch.RegionID {
		if err := s.recordRegionChange(ctx, actor.ID, ticket.ID, oldRegion, ticket.RegionID); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	s.publishAssignmentEvent(ctx, actor.ID, events.TicketAssignedPayload{
		AssigneeID: nil,
		BranchID:   ticket.BranchID,
	}, ticket.ID)
	return ticket, nil
}

// AutoAssignTicket deterministically picks an active IT support member who
// covers the ticket's region.
func (s *AssignmentService) AutoAssignTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	region, err := s.regions.GetByID(ctx, ticket.RegionID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	active := domain.UserStatusActive
	candidates, err := s.users.List(ctx, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleITSupport},
		Region: &region.Code,
		Status: &active,
		Limit:  1000,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewConflict("no eligible staff for region", map[string]any{"region": region.Code})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	assignee := candidates[selectIndex(ticket.ID, len(candidates))]
	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &assignee.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordAssigneeChange(ctx, assignee.ID, ticket.ID, oldAssignee, ticket.AssigneeID); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishAssignmentEvent(ctx, assignee.ID, events.TicketAssignedPayload{
		AssigneeID: ticket.AssigneeID,
		BranchID:   ticket.BranchID,
	}, ticket.ID)
	return ticket, nil
}

func (s *AssignmentService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *AssignmentService) staffCanAccess(ctx context.Context, actor *domain.User, ticket *domain.Ticket) (bool, error) {
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

func selectIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return sum % length
}

func (s *AssignmentService) recordAssigneeChange(ctx context.Context, actorID string, ticketID string, oldAssignee, newAssignee *string) error {
	return s.historyRepo.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeAssignee,
		OldValue:    map[string]any{"assignee_user_id": oldAssignee},
		NewValue:    map[string]any{"assignee_user_id": newAssignee},
	})
}

func (s *AssignmentService) recordBranchChange(ctx context.Context, actorID string, ticketID string, oldBranch, newBranch *string) error {
	return s.historyRepo.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeBranch,
		OldValue:    map[string]any{"branch_id": oldBranch},
		NewValue:    map[string]any{"branch_id": newBranch},
	})
}

func (s *AssignmentService) recordRegionChange(ctx context.Context, actorID string, ticketID string, oldRegion, newRegion string) error {
	return s.historyRepo.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actorID,
		ChangeType:  domain.ChangeTypeRegion,
		OldValue:    map[string]any{"region_id": oldRegion},
		NewValue:    map[string]any{"region_id": newRegion},
	})
}

func (s *AssignmentService) publishAssignmentEvent(ctx context.Context, actorID string, payload events.TicketAssignedPayload, ticketID string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        newEventID(),
		Type:      events.EventTicketAssigned,
		EntityID:  ticketID,
		ActorID:   &actorID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	_ = s.dispatcher.Publish(ctx, event)
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cheezious/it-support/internal/auth"
	"github.com/cheezious/it-support/internal/config"
	"github.com/cheezious/it-support/internal/domain"
	"github.com/cheezious/it-support/internal/repository"
	apperrors "github.com/cheezious/it-support/pkg/util"
)

// DirectoryService manages regions, branches and user directory entries.
type DirectoryService struct {
	users      repository.UserRepository
	regions    repository.RegionRepository
	branches   repository.BranchRepository
	policy     *auth.Policy
	bcryptCost int
}

// DirectoryDependencies encapsulates repositories for directory management.
type DirectoryDependencies struct {
	UserRepo   repository.UserRepository
	RegionRepo repository.RegionRepository
	BranchRepo repository.BranchRepository
	Policy     *auth.Policy
}

// NewDirectoryService constructs the service.
func NewDirectoryService(cfg config.Config, deps DirectoryDependencies) *DirectoryService {
	return &DirectoryService{
		users:      deps.UserRepo,
		regions:    deps.RegionRepo,
		branches:   deps.BranchRepo,
		policy:     deps.Policy,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// UserListFilters define listing parameters.
type UserListFilters struct {
	Roles  []domain.Role
	Region *string
	Status *domain.UserStatus
	Limit  int
	Offset int
}

// UserCreateInput describes an admin-provisioned directory entry.
type UserCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Region   string
	Regions  []string
	BranchID *string
}

// UserUpdateInput describes mutable directory fields. Nil means unchanged.
type UserUpdateInput struct {
	Name     *string
	Role     *domain.Role
	Region   *string
	Regions  []string
	BranchID *string
	Status   *domain.UserStatus
}

// CreateRegion creates a new operating region.
func (s *DirectoryService) CreateRegion(ctx context.Context, actor *domain.User, code, name string) (*domain.Region, error) {
	if !s.policy.Can(actor, auth.ResourceDirectory, auth.ActionCreate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceDirectory), string(auth.ActionCreate))
	}
	region := &domain.Region{
		Code:     strings.ToUpper(strings.TrimSpace(code)),
		Name:     strings.TrimSpace(name),
		IsActive: true,
	}
	if region.Code == "" {
		return nil, apperrors.NewValidationError("region code required", nil)
	}
	if err := s.regions.Create(ctx, region); err != nil {
		return nil, apperrors.MapError(err)
	}
	return region, nil
}

// ListRegions returns all regions.
func (s *DirectoryService) ListRegions(ctx context.Context) ([]domain.Region, error) {
	return s.regions.List(ctx)
}

// CreateBranch creates a branch within a region.
func (s *DirectoryService) CreateBranch(ctx context.Context, actor *domain.User, regionID, name string) (*domain.Branch, error) {
	if !s.policy.Can(actor, auth.ResourceDirectory, auth.ActionCreate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceDirectory), string(auth.ActionCreate))
	}
	region, err := s.regions.GetByID(ctx, regionID)
	if err != nil {
		return nil, apperrors.NewNotFound("region", map[string]any{"region_id": regionID})
	}
	if !region.IsActive {
		return nil, apperrors.NewConflict("region inactive", map[string]any{"region_id": regionID})
	}
	branch := &domain.Branch{
		RegionID: regionID,
		Name:     strings.TrimSpace(name),
		IsActive: true,
	}
	if err := s.branches.Create(ctx, branch); err != nil {
		return nil, apperrors.MapError(err)
	}
	return branch, nil
}

// ListBranches returns branches for a region.
func (s *DirectoryService) ListBranches(ctx context.Context, regionID string) ([]domain.Branch, error) {
	return s.branches.ListByRegion(ctx, regionID)
}

// CreateUser provisions a directory entry with an explicit role. Branch and
// staff accounts are created here by administrators.
func (s *DirectoryService) CreateUser(ctx context.Context, actor *domain.User, input UserCreateInput) (*domain.User, error) {
	if !s.policy.Can(actor, auth.ResourceDirectory, auth.ActionCreate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceDirectory), string(auth.ActionCreate))
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if input.BranchID != nil {
		if _, err := s.branches.GetByID(ctx, *input.BranchID); err != nil {
			return nil, apperrors.NewNotFound("branch", map[string]any{"branch_id": *input.BranchID})
		}
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Region:       strings.ToUpper(strings.TrimSpace(input.Region)),
		Regions:      normalizeRegionCodes(input.Regions),
		BranchID:     input.BranchID,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListUsers lists directory entries with filters. Staff only.
func (s *DirectoryService) ListUsers(ctx context.Context, actor *domain.User, filters UserListFilters) ([]domain.User, error) {
	if !s.policy.Can(actor, auth.ResourceDirectory, auth.ActionRead) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceDirectory), string(auth.ActionRead))
	}
	return s.users.List(ctx, repository.UserFilter{
		Roles:  filters.Roles,
		Region: filters.Region,
		Status: filters.Status,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// GetUser fetches a single directory entry. Staff only.
func (s *DirectoryService) GetUser(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	if !s.policy.Can(actor, auth.ResourceDirectory, auth.ActionRead) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceDirectory), string(auth.ActionRead))
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
	}
	return user, nil
}

// UpdateUser applies partial updates to a directory entry.
func (s *DirectoryService) UpdateUser(ctx context.Context, actor *domain.User, userID string, input UserUpdateInput) (*domain.User, error) {
	if !s.policy.Can(actor, auth.ResourceDirectory, auth.ActionUpdate) {
		return nil, apperrors.NewPermissionDenied(string(auth.ResourceDirectory), string(auth.ActionUpdate))
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
	}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.Region != nil {
		user.Region = strings.ToUpper(strings.TrimSpace(*input.Region))
	}
	if input.Regions != nil {
		user.Regions = normalizeRegionCodes(input.Regions)
	}
	if input.BranchID != nil {
		if *input.BranchID == "" {
			user.BranchID = nil
		} else {
			if _, err := s.branches.GetByID(ctx, *input.BranchID); err != nil {
				return nil, apperrors.NewNotFound("branch", map[string]any{"branch_id": *input.BranchID})
			}
			user.BranchID = input.BranchID
		}
	}
	if input.Status != nil {
		user.Status = *input.Status
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// SuspendUser marks the entry suspended; suspended users fail authentication
// and drop out of targeting snapshots taken after the change.
func (s *DirectoryService) SuspendUser(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	suspended := domain.UserStatusSuspended
	return s.UpdateUser(ctx, actor, userID, UserUpdateInput{Status: &suspended})
}

func normalizeRegionCodes(codes []string) []string {
	result := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		normalized := strings.ToUpper(strings.TrimSpace(code))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}

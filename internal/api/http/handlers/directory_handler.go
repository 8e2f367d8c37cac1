package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cheezious/it-support/internal/api/dto"
	"github.com/cheezious/it-support/internal/auth"
	"github.com/cheezious/it-support/internal/domain"
	"github.com/cheezious/it-support/internal/service"
	apperrors "github.com/cheezious/it-support/pkg/util"
)

// DirectoryHandler exposes admin endpoints for regions, branches and users.
type DirectoryHandler struct {
	directory *service.DirectoryService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(directoryService *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directoryService}
}

// CreateRegion POST /admin/regions.
func (h *DirectoryHandler) CreateRegion(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateRegionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	region, err := h.directory.CreateRegion(c.UserContext(), principal, req.Code, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": region})
}

// ListRegions GET /admin/regions.
func (h *DirectoryHandler) ListRegions(c *fiber.Ctx) error {
	regions, err := h.directory.ListRegions(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": regions})
}

// CreateBranch POST /admin/branches.
func (h *DirectoryHandler) CreateBranch(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateBranchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	branch, err := h.directory.CreateBranch(c.UserContext(), principal, req.RegionID, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": branch})
}

// ListBranches GET /admin/regions/:id/branches.
func (h *DirectoryHandler) ListBranches(c *fiber.Ctx) error {
	branches, err := h.directory.ListBranches(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": branches})
}

// CreateUser POST /admin/users.
func (h *DirectoryHandler) CreateUser(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	user, err := h.directory.CreateUser(c.UserContext(), principal, service.UserCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Region:   req.Region,
		Regions:  req.Regions,
		BranchID: req.BranchID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

// ListUsers GET /admin/users.
func (h *DirectoryHandler) ListUsers(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filters := service.UserListFilters{}
	if role := c.Query("role"); role != "" {
		filters.Roles = []domain.Role{domain.Role(role)}
	}
	if region := c.Query("region"); region != "" {
		filters.Region = &region
	}
	if status := c.Query("status"); status != "" {
		parsed := domain.UserStatus(status)
		filters.Status = &parsed
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filters.Offset = (page - 1) * pageSize
	filters.Limit = pageSize

	users, err := h.directory.ListUsers(c.UserContext(), principal, filters)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.UserFromDomain(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetUser GET /admin/users/:id.
func (h *DirectoryHandler) GetUser(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := h.directory.GetUser(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

// UpdateUser PATCH /admin/users/:id.
func (h *DirectoryHandler) UpdateUser(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	user, err := h.directory.UpdateUser(c.UserContext(), principal, c.Params("id"), service.UserUpdateInput{
		Name:     req.Name,
		Role:     req.Role,
		Region:   req.Region,
		Regions:  req.Regions,
		BranchID: req.BranchID,
		Status:   req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

// SuspendUser POST /admin/users/:id/suspend.
func (h *DirectoryHandler) SuspendUser(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := h.directory.SuspendUser(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

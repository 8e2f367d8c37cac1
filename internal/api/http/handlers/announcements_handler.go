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

// AnnouncementsHandler exposes the announcement distribution endpoints: the
// operator send/inspect surface and the recipient feed with read tracking.
type AnnouncementsHandler struct {
	service *service.AnnouncementService
}

// NewAnnouncementsHandler constructs handler.
func NewAnnouncementsHandler(announcementService *service.AnnouncementService) *AnnouncementsHandler {
	return &AnnouncementsHandler{service: announcementService}
}

// Create POST /announcements.
func (h *AnnouncementsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateAnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	announcement, err := h.service.Send(c.UserContext(), principal, service.AnnouncementInput{
		Title:     req.Title,
		Message:   req.Message,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Target: domain.TargetRule{
			Roles:   req.Target.Roles,
			Regions: req.Target.Regions,
			Users:   req.Target.Users,
		},
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.AnnouncementFromDomain(announcement)})
}

// Feed GET /announcements — the caller's currently relevant announcements.
func (h *AnnouncementsHandler) Feed(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit, offset := pagination(c)
	announcements, err := h.service.ListRelevant(c.UserContext(), principal, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AnnouncementFeedItem, 0, len(announcements))
	for i := range announcements {
		items = append(items, dto.FeedItemFromDomain(&announcements[i], principal.ID))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListAll GET /announcements/all — operator dashboard.
func (h *AnnouncementsHandler) ListAll(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit, offset := pagination(c)
	announcements, err := h.service.ListAll(c.UserContext(), principal, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AnnouncementResponse, 0, len(announcements))
	for i := range announcements {
		items = append(items, dto.AnnouncementFromDomain(&announcements[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /announcements/:id — operator view with read statistics.
func (h *AnnouncementsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	announcement, err := h.service.GetForOperator(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AnnouncementFromDomain(announcement)})
}

// MarkRead POST /announcements/:id/read.
func (h *AnnouncementsHandler) MarkRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.MarkRead(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "read"}})
}

// MarkAllRead POST /announcements/read-all.
func (h *AnnouncementsHandler) MarkAllRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	updated, err := h.service.MarkAllRead(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MarkAllReadResponse{Updated: updated}})
}

// UnreadCount GET /announcements/unread-count.
func (h *AnnouncementsHandler) UnreadCount(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	count, err := h.service.UnreadCount(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UnreadCountResponse{Unread: count}})
}

// Refanout POST /announcements/:id/refanout — re-runs phase 2 after a
// partial fan-out failure.
func (h *AnnouncementsHandler) Refanout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	announcement, err := h.service.Refanout(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AnnouncementFromDomain(announcement)})
}

// Delete DELETE /announcements/:id.
func (h *AnnouncementsHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Delete(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Notifications GET /notifications — the caller's fan-out inbox.
func (h *AnnouncementsHandler) Notifications(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit, offset := pagination(c)
	views, err := h.service.ListNotifications(c.UserContext(), principal, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(views))
	for _, view := range views {
		items = append(items, dto.NotificationResponse{
			ID:             view.Stub.ID,
			AnnouncementID: view.Stub.AnnouncementID,
			Title:          view.Stub.Title,
			Message:        view.Stub.Message,
			Read:           view.Read,
			CreatedAt:      view.Stub.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	return pageSize, (page - 1) * pageSize
}

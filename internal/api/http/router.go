package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cheezious/it-support/internal/api/http/handlers"
	"github.com/cheezious/it-support/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Announcements  *handlers.AnnouncementsHandler
	Directory      *handlers.DirectoryHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *auth.Policy
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, cfg.Users.ChangePassword)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)

	staffTickets := app.Group("/staff/tickets", cfg.AuthMiddleware.Handle,
		auth.RequirePermission(cfg.Policy, auth.ResourceTickets, auth.ActionUpdate))
	staffTickets.Get("", cfg.StaffTickets.ListStaffTickets)
	staffTickets.Get("/:id", cfg.StaffTickets.GetStaffTicket)
	staffTickets.Post("/:id/messages", cfg.StaffTickets.AddStaffMessage)
	staffTickets.Patch("/:id/status", cfg.StaffTickets.UpdateStatus)
	staffTickets.Patch("/:id/priority", cfg.StaffTickets.UpdatePriority)
	staffTickets.Post("/:id/assign", cfg.StaffTickets.Assign)
	staffTickets.Post("/:id/assign/self", cfg.StaffTickets.SelfAssign)
	staffTickets.Post("/:id/assign/auto", cfg.StaffTickets.AutoAssign)

	announcements := app.Group("/announcements", cfg.AuthMiddleware.Handle)
	announcements.Get("", cfg.Announcements.Feed)
	announcements.Get("/unread-count", cfg.Announcements.UnreadCount)
	announcements.Post("/read-all", cfg.Announcements.MarkAllRead)
	announcements.Post("/:id/read", cfg.Announcements.MarkRead)

	operator := announcements.Group("", auth.RequirePermission(cfg.Policy, auth.ResourceAnnouncements, auth.ActionCreate))
	operator.Post("", cfg.Announcements.Create)
	operator.Get("/all", cfg.Announcements.ListAll)
	operator.Get("/:id", cfg.Announcements.Get)
	operator.Post("/:id/refanout", cfg.Announcements.Refanout)
	operator.Delete("/:id", cfg.Announcements.Delete)

	app.Get("/notifications", cfg.AuthMiddleware.Handle, cfg.Announcements.Notifications)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle,
		auth.RequirePermission(cfg.Policy, auth.ResourceDirectory, auth.ActionRead))
	admin.Get("/regions", cfg.Directory.ListRegions)
	admin.Post("/regions", cfg.Directory.CreateRegion)
	admin.Get("/regions/:id/branches", cfg.Directory.ListBranches)
	admin.Post("/branches", cfg.Directory.CreateBranch)
	admin.Get("/users", cfg.Directory.ListUsers)
	admin.Post("/users", cfg.Directory.CreateUser)
	admin.Get("/users/:id", cfg.Directory.GetUser)
	admin.Patch("/users/:id", cfg.Directory.UpdateUser)
	admin.Post("/users/:id/suspend", cfg.Directory.SuspendUser)
}

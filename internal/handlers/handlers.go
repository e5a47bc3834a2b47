// Package handlers serves the panel: every view as a JSON document and every
// button as an action route.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskpanel/internal/access"
	"taskpanel/internal/config"
	"taskpanel/internal/dashboard"
	"taskpanel/internal/middleware"
	"taskpanel/internal/service"
	"taskpanel/internal/tasks"
	"taskpanel/internal/users"
)

// Pinger is a dependency the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Config    *config.AppConfig
	Log       zerolog.Logger
	Auth      *service.AuthService
	Sessions  middleware.SessionResolver
	Boards    *tasks.Registry
	Dashboard *dashboard.Service
	Users     *users.Service
	Checks    map[string]Pinger
}

type HandlerSet struct {
	log          zerolog.Logger
	environment  string
	cookieName   string
	cookieSecure bool
	sessionTTL   time.Duration

	auth      *service.AuthService
	sessions  middleware.SessionResolver
	boards    *tasks.Registry
	dashboard *dashboard.Service
	users     *users.Service
	checks    map[string]Pinger
}

func NewHandlerSet(d Deps) HandlerSet {
	return HandlerSet{
		log:          d.Log,
		environment:  d.Config.Environment,
		cookieName:   d.Config.Session.CookieName,
		cookieSecure: d.Config.Session.CookieSecure,
		sessionTTL:   d.Config.Session.TTL,
		auth:         d.Auth,
		sessions:     d.Sessions,
		boards:       d.Boards,
		dashboard:    d.Dashboard,
		users:        d.Users,
		checks:       d.Checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	panel := router.Group("")
	panel.Use(middleware.Session(h.sessions, h.cookieName, h.log))

	panel.GET("/login", middleware.Guard(access.ViewLogin), h.LoginView)
	panel.POST("/login", h.Login)
	panel.GET("/register", middleware.Guard(access.ViewRegister), h.RegisterView)
	panel.POST("/register", h.RegisterUser)
	panel.POST("/logout", h.Logout)
	panel.GET("/unauthorized", middleware.Guard(access.ViewUnauthorized), h.Unauthorized)

	panel.GET("/dashboard", middleware.Guard(access.ViewDashboard), h.Dashboard)

	board := panel.Group("/dashboard/tasks")
	board.Use(middleware.Guard(access.ViewTasks))
	board.GET("", h.TaskBoard)
	board.POST("", h.CreateTask)
	board.POST("/:id/complete", h.ToggleCompleted)
	board.POST("/:id/delete", h.ToggleDeleted)
	board.DELETE("/:id", h.PurgeTask)
	board.POST("/:id/edit", h.StartEdit)
	board.PUT("/:id/edit", h.SaveEdit)
	board.DELETE("/:id/edit", h.CancelEdit)

	manage := panel.Group("/dashboard/manage")
	manage.Use(middleware.Guard(access.ViewManage))
	manage.GET("", h.ManageUsers)
	manage.POST("/:id/status", h.ToggleUserStatus)
	manage.PUT("/:id/role", h.ChangeUserRole)

	permission := panel.Group("/dashboard/permission")
	permission.Use(middleware.Guard(access.ViewPermission))
	permission.GET("", h.PermissionMatrix)
	permission.POST("/:id/:flag", h.TogglePermission)
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

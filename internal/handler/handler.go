// Package handler wires the REST surface onto the domain services.
package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dormtrack/internal/apperr"
	"dormtrack/internal/attendance"
	"dormtrack/internal/auth"
	"dormtrack/internal/model"
	"dormtrack/internal/roster"
	"dormtrack/internal/users"
)

// Handler holds the services behind the HTTP surface.
type Handler struct {
	auth       *auth.Service
	users      *users.Service
	roster     *roster.Service
	attendance *attendance.Service
	signingKey string
	issuer     string
}

// New creates a handler.
func New(authSvc *auth.Service, userSvc *users.Service, rosterSvc *roster.Service, attSvc *attendance.Service, signingKey, issuer string) *Handler {
	return &Handler{
		auth:       authSvc,
		users:      userSvc,
		roster:     rosterSvc,
		attendance: attSvc,
		signingKey: signingKey,
		issuer:     issuer,
	}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)

	authed := r.Group("/", auth.RequireAuth(h.signingKey, h.issuer))
	authed.POST("/auth/logout", h.Logout)

	usersGroup := authed.Group("/users")
	usersGroup.GET("/moderators",
		auth.RequireRoles(model.RoleAdmin, model.RoleSuperAdmin), h.ListModerators)
	superOnly := usersGroup.Group("", auth.RequireRoles(model.RoleSuperAdmin))
	superOnly.POST("", h.CreateUser)
	superOnly.GET("", h.ListUsers)
	superOnly.GET("/:id", h.GetUser)
	superOnly.PATCH("/:id", h.UpdateUser)
	superOnly.DELETE("/:id", h.DeleteUser)

	dorms := authed.Group("/dormitories", auth.RequireRoles(model.RoleAdmin, model.RoleSuperAdmin))
	dorms.POST("", h.CreateDormitory)
	dorms.GET("", h.ListDormitories)
	dorms.GET("/:id", h.GetDormitory)
	dorms.PATCH("/:id", h.UpdateDormitory)
	dorms.DELETE("/:id", h.DeleteDormitory)

	students := authed.Group("/students",
		auth.RequireRoles(model.RoleAdmin, model.RoleModerator, model.RoleSuperAdmin))
	students.POST("", h.CreateStudent)
	students.GET("", h.ListStudents)
	students.GET("/search-global", h.SearchGlobal)
	students.GET("/attendance/today", h.TodayAttendance)
	students.POST("/attendance/bulk", h.BulkAttendance)
	students.GET("/:id", h.GetStudent)
	students.PATCH("/:id", h.UpdateStudent)
	students.PATCH("/:id/room-job", h.UpdateRoomJob)
	students.PATCH("/:id/assign", h.AssignDormitory)
	students.PATCH("/:id/unassign",
		auth.RequireRoles(model.RoleAdmin, model.RoleSuperAdmin), h.UnassignDormitory)
	students.GET("/:id/attendance/month", h.MonthAttendance)
	students.GET("/:id/attendance/export", h.ExportAttendance)
	students.DELETE("/:id", h.DeleteStudent)

	authed.GET("/statistics",
		auth.RequireRoles(model.RoleAdmin, model.RoleModerator, model.RoleSuperAdmin), h.Statistics)
}

// respondError maps the error taxonomy onto HTTP statuses. Invalid and stale
// refresh tokens share one body so the surface does not leak which check failed.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid login or password"})
	case errors.Is(err, apperr.ErrInvalidToken), errors.Is(err, apperr.ErrStaleToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session invalid, re-authenticate"})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient rights"})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64Query(c *gin.Context, name string) int64 {
	if v := c.Query(name); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
	}
	return p, ok
}

func listFilter(c *gin.Context) roster.ListFilter {
	return roster.ListFilter{
		DormitoryID: int64Query(c, "dormitoryId"),
		Search:      c.Query("search"),
		Sort:        c.Query("sort"),
		Order:       c.Query("order"),
		Page:        intQuery(c, "page", 1),
		Limit:       intQuery(c, "limit", 0),
	}
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dormtrack/internal/model"
	"dormtrack/internal/users"
)

type createUserRequest struct {
	Login    string     `json:"login" binding:"required"`
	Password string     `json:"password" binding:"required"`
	Role     model.Role `json:"role" binding:"required"`
}

type updateUserRequest struct {
	Login    *string     `json:"login"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login, password and role are required"})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	user, err := h.users.Create(c.Request.Context(), req.Login, req.Password, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) ListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ListModerators(c *gin.Context) {
	list, err := h.users.ListModerators(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Role != nil && !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	user, err := h.users.Update(c.Request.Context(), id, users.UpdateInput{
		Login:    req.Login,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

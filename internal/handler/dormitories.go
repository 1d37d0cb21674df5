package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createDormitoryRequest struct {
	Name    string  `json:"name" binding:"required"`
	Address *string `json:"address"`
	UserID  *int64  `json:"userId"`
}

type updateDormitoryRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	UserID  *int64  `json:"userId"`
}

func (h *Handler) CreateDormitory(c *gin.Context) {
	var req createDormitoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	dorm, err := h.roster.CreateDormitory(c.Request.Context(), req.Name, req.Address, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dorm)
}

func (h *Handler) ListDormitories(c *gin.Context) {
	page, err := h.roster.ListDormitories(c.Request.Context(), listFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetDormitory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	dorm, err := h.roster.GetDormitory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dorm)
}

func (h *Handler) UpdateDormitory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateDormitoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	dorm, err := h.roster.UpdateDormitory(c.Request.Context(), id, req.Name, req.Address, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dorm)
}

func (h *Handler) DeleteDormitory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.roster.RemoveDormitory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

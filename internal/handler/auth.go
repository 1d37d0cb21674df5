package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// Login exchanges credentials for a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login and password are required"})
		return
	}
	session, err := h.auth.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Refresh rotates a refresh token into a fresh pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	session, err := h.auth.Refresh(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout revokes the caller's stored refresh token.
func (h *Handler) Logout(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), p.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

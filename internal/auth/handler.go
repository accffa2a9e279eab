package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iM5LB/dbot/internal/audit"
)

type Handler struct {
	adminUsername string
	adminPassword string
	jwtSecret     string
	audit         *audit.Repository
}

func NewHandler(adminUsername, adminPassword, jwtSecret string, auditRepo *audit.Repository) *Handler {
	return &Handler{
		adminUsername: adminUsername,
		adminPassword: adminPassword,
		jwtSecret:     jwtSecret,
		audit:         auditRepo,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login authenticates the configured admin account and issues a token
// pair.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.credentialsValid(req.Username, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	accessToken, refreshToken, err := GenerateTokens(req.Username, "admin", h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue tokens"})
		return
	}

	h.audit.Record(c.Request.Context(), req.Username, audit.ActionLogin, "", "", "", c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

// Refresh exchanges a valid refresh token for a new access token.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accessToken, _, err := RefreshAccessToken(req.RefreshToken, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": accessToken})
}

// credentialsValid accepts either a bcrypt hash or a plain value in
// the configured password, so deployments can hash it.
func (h *Handler) credentialsValid(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.adminUsername)) == 1

	var passOK bool
	if strings.HasPrefix(h.adminPassword, "$2") {
		passOK = CheckPassword(h.adminPassword, password)
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(h.adminPassword)) == 1
	}

	return userOK && passOK
}

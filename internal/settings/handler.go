package settings

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iM5LB/dbot/internal/audit"
	"github.com/iM5LB/dbot/internal/auth"
)

type Handler struct {
	repo  *Repository
	audit *audit.Repository
}

func NewHandler(repo *Repository, auditRepo *audit.Repository) *Handler {
	return &Handler{repo: repo, audit: auditRepo}
}

func (h *Handler) All(c *gin.Context) {
	values, err := h.repo.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *Handler) Get(c *gin.Context) {
	key := c.Param("key")
	value, err := h.repo.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ErrUnknownKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting key"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

type SetRequest struct {
	Value string `json:"value" binding:"required"`
}

func (h *Handler) Set(c *gin.Context) {
	key := c.Param("key")

	var req SetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.Set(c.Request.Context(), key, req.Value); err != nil {
		switch {
		case errors.Is(err, ErrUnknownKey):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting key"})
		case errors.Is(err, ErrInvalidValue):
			c.JSON(http.StatusBadRequest, gin.H{"error": "setting values must be non-negative integers"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save setting"})
		}
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionConfigChanged,
		"config", key, req.Value, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

// Update applies a batch of setting changes atomically.
func (h *Handler) Update(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(values) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no settings provided"})
		return
	}

	if err := h.repo.BulkSet(c.Request.Context(), values); err != nil {
		switch {
		case errors.Is(err, ErrUnknownKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown setting key"})
		case errors.Is(err, ErrInvalidValue):
			c.JSON(http.StatusBadRequest, gin.H{"error": "setting values must be non-negative integers"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		}
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionConfigChanged,
		"config", "", fmt.Sprintf("%v", values), c.ClientIP())

	all, err := h.repo.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "settings saved"})
		return
	}
	c.JSON(http.StatusOK, all)
}

// Validate checks a batch of values without persisting anything.
func (h *Handler) Validate(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	problems := map[string]string{}
	for key, value := range values {
		if err := Validate(key, value); err != nil {
			problems[key] = err.Error()
		}
	}

	c.JSON(http.StatusOK, gin.H{"valid": len(problems) == 0, "problems": problems})
}

func (h *Handler) Reset(c *gin.Context) {
	if err := h.repo.ResetDefaults(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset settings"})
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionConfigChanged,
		"config", "", "reset to defaults", c.ClientIP())

	c.JSON(http.StatusOK, Defaults)
}

package user

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iM5LB/dbot/internal/api"
	"github.com/iM5LB/dbot/internal/audit"
	"github.com/iM5LB/dbot/internal/auth"
	"github.com/iM5LB/dbot/internal/ledger"
)

type Handler struct {
	repo   *Repository
	ledger *ledger.Repository
	audit  *audit.Repository
}

func NewHandler(repo *Repository, ledgerRepo *ledger.Repository, auditRepo *audit.Repository) *Handler {
	return &Handler{repo: repo, ledger: ledgerRepo, audit: auditRepo}
}

type AdjustCoinsRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type SetActiveRequest struct {
	Active *bool  `json:"active" binding:"required"`
	Reason string `json:"reason"`
}

type LinkMinecraftRequest struct {
	MinecraftUUID string `json:"minecraft_uuid" binding:"required"`
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	users, total, err := h.repo.List(c.Request.Context(), c.Query("search"), limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	c.JSON(http.StatusOK, api.NewPaginated(users, total, page, limit))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	u, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// AdjustCoins credits or debits a user through the ledger. A negative
// amount that would overdraw the balance is rejected there.
func (h *Handler) AdjustCoins(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req AdjustCoinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entryType := ledger.TypeAdminAdd
	if req.Amount < 0 {
		entryType = ledger.TypeAdminRemove
	}

	entry, err := h.ledger.Post(c.Request.Context(), id, req.Amount, entryType, req.Reason, "")
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, ledger.ErrInsufficientFunds):
			c.JSON(http.StatusConflict, gin.H{"error": "adjustment would make balance negative"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to adjust coins"})
		}
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionCoinsAdjusted,
		"user", strconv.Itoa(id), fmt.Sprintf("%+d: %s", req.Amount, req.Reason), c.ClientIP())

	c.JSON(http.StatusOK, entry)
}

// SetActive bans or unbans a user. Banned users keep their balance but
// cannot earn or spend.
func (h *Handler) SetActive(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
		return
	}

	action := audit.ActionUserBanned
	message := "user banned"
	if *req.Active {
		action = audit.ActionUserUnbanned
		message = "user unbanned"
	}
	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, action, "user", strconv.Itoa(id), req.Reason, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// LinkMinecraft stores the user's Minecraft account name for command
// substitution.
func (h *Handler) LinkMinecraft(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req LinkMinecraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.SetMinecraftUUID(c.Request.Context(), id, req.MinecraftUUID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "minecraft account linked"})
}

// Transactions lists one user's ledger history.
func (h *Handler) Transactions(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	entries, total, err := h.ledger.ListByUser(c.Request.Context(), id, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, api.NewPaginated(entries, total, page, limit))
}

package gift

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iM5LB/dbot/internal/api"
	"github.com/iM5LB/dbot/internal/audit"
	"github.com/iM5LB/dbot/internal/auth"
	"github.com/iM5LB/dbot/internal/ledger"
)

type Handler struct {
	repo  *Repository
	audit *audit.Repository
}

func NewHandler(repo *Repository, auditRepo *audit.Repository) *Handler {
	return &Handler{repo: repo, audit: auditRepo}
}

type GrantRequest struct {
	UserID  int    `json:"user_id" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
	Message string `json:"message"`
}

type SendRequest struct {
	SenderID    int    `json:"sender_id" binding:"required"`
	RecipientID int    `json:"recipient_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Message     string `json:"message"`
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	gifts, total, err := h.repo.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load gifts"})
		return
	}

	c.JSON(http.StatusOK, api.NewPaginated(gifts, total, page, limit))
}

// Send transfers coins between two users on their behalf.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingErrorBody(err))
		return
	}

	g, err := h.repo.Send(c.Request.Context(), req.SenderID, req.RecipientID, req.Amount, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, ErrSelfGift):
			c.JSON(http.StatusBadRequest, gin.H{"error": "sender and recipient must differ"})
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		case errors.Is(err, ledger.ErrInsufficientFunds):
			c.JSON(http.StatusConflict, gin.H{"error": "sender has insufficient coins"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send gift"})
		}
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionCoinsAdjusted,
		"gift", strconv.Itoa(g.ID), req.Message, c.ClientIP())

	c.JSON(http.StatusCreated, g)
}

// Grant credits coins to a user without a sender.
func (h *Handler) Grant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingErrorBody(err))
		return
	}

	g, err := h.repo.AdminGrant(c.Request.Context(), req.UserID, req.Amount, req.Message)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grant coins"})
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionCoinsAdjusted,
		"user", strconv.Itoa(req.UserID), req.Message, c.ClientIP())

	c.JSON(http.StatusCreated, g)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gift id"})
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingErrorBody(err))
		return
	}

	if err := h.repo.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		switch {
		case errors.Is(err, ErrGiftNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "gift not found"})
		case errors.Is(err, ErrNotCancellable):
			c.JSON(http.StatusConflict, gin.H{"error": "gift is not cancellable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel gift"})
		}
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionGiftCancelled,
		"gift", strconv.Itoa(id), req.Reason, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"message": "gift cancelled"})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.repo.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

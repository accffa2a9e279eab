package purchase

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iM5LB/dbot/internal/api"
	"github.com/iM5LB/dbot/internal/audit"
	"github.com/iM5LB/dbot/internal/auth"
)

// Fulfiller retries fulfillment of one purchase on demand. The worker
// implements it.
type Fulfiller interface {
	ProcessByID(ctx context.Context, id int) error
}

type Handler struct {
	repo      *Repository
	fulfiller Fulfiller
	audit     *audit.Repository
}

func NewHandler(repo *Repository, fulfiller Fulfiller, auditRepo *audit.Repository) *Handler {
	return &Handler{repo: repo, fulfiller: fulfiller, audit: auditRepo}
}

type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) List(c *gin.Context) {
	userID, _ := strconv.Atoi(c.DefaultQuery("user_id", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	purchases, total, err := h.repo.List(c.Request.Context(), c.Query("status"), userID, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load purchases"})
		return
	}

	c.JSON(http.StatusOK, api.NewPaginated(purchases, total, page, limit))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
		return
	}

	p, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load purchase"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Fulfill retries one pending purchase immediately instead of waiting
// for the next sweep. Failed purchases must be reset or refunded, not
// replayed.
func (h *Handler) Fulfill(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
		return
	}

	if err := h.fulfiller.ProcessByID(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrPurchaseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
		case errors.Is(err, ErrNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": "purchase is not pending"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "fulfillment failed"})
		}
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionManualFulfill,
		"purchase", strconv.Itoa(id), "", c.ClientIP())

	p, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "fulfillment attempted"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Refund compensates a failed purchase: coins go back, status becomes
// refunded. Only failed purchases qualify.
func (h *Handler) Refund(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.Refund(c.Request.Context(), id, req.Reason); err != nil {
		switch {
		case errors.Is(err, ErrPurchaseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
		case errors.Is(err, ErrNotRefundable):
			c.JSON(http.StatusConflict, gin.H{"error": "only failed purchases can be refunded"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "refund failed"})
		}
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionRefundIssued,
		"purchase", strconv.Itoa(id), req.Reason, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"message": "purchase refunded"})
}

// Stats returns purchase counts per status for the dashboard.
func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.repo.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, counts)
}

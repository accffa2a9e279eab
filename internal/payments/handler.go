package payments

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/iM5LB/dbot/internal/api"
	"github.com/iM5LB/dbot/internal/logger"
	"github.com/iM5LB/dbot/internal/user"
)

const maxWebhookBody = 65536

type Handler struct {
	records       *Repository
	users         user.Store
	webhookSecret string
}

func NewHandler(records *Repository, users user.Store, webhookSecret string) *Handler {
	return &Handler{records: records, users: users, webhookSecret: webhookSecret}
}

// HandleWebhook verifies and processes Stripe events. Coins are
// credited on payment_intent.succeeded; anything else is acknowledged
// and ignored.
func (h *Handler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading body failed"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		logger.WithError(err).Error("Stripe signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if event.Type != "payment_intent.succeeded" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		logger.WithError(err).Error("Stripe event payload unmarshal failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad event payload"})
		return
	}

	discordID := intent.Metadata["discord_id"]
	coins, convErr := strconv.ParseInt(intent.Metadata["coins"], 10, 64)
	if discordID == "" || convErr != nil || coins <= 0 {
		logger.Errorf("Stripe payment %s has no usable metadata", intent.ID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	u, err := h.users.FindByDiscordID(c.Request.Context(), discordID)
	if err != nil {
		logger.WithError(err).Error(fmt.Sprintf("Stripe payment %s: unknown discord id %s", intent.ID, discordID))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	_, err = h.records.Credit(c.Request.Context(), u.ID, intent.ID, intent.Amount, coins)
	if err == ErrAlreadyProcessed {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err != nil {
		logger.WithError(err).Error(fmt.Sprintf("Stripe payment %s: crediting failed", intent.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "crediting failed"})
		return
	}

	logger.Infof("Stripe payment %s credited %d coins to user %d", intent.ID, coins, u.ID)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// List is the admin payment history endpoint.
func (h *Handler) List(c *gin.Context) {
	userID, _ := strconv.Atoi(c.DefaultQuery("user_id", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	records, total, err := h.records.List(c.Request.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payments"})
		return
	}

	c.JSON(http.StatusOK, api.NewPaginated(records, total, page, limit))
}

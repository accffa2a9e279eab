package item

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/iM5LB/dbot/internal/api"
	"github.com/iM5LB/dbot/internal/audit"
	"github.com/iM5LB/dbot/internal/auth"
)

type Handler struct {
	repo  *Repository
	audit *audit.Repository
}

func NewHandler(db *sqlx.DB, auditRepo *audit.Repository) *Handler {
	return &Handler{
		repo:  NewRepository(db),
		audit: auditRepo,
	}
}

type ItemRequest struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	Price           int64  `json:"price" binding:"required,gt=0"`
	Category        string `json:"category"`
	Kind            string `json:"item_type" binding:"required"`
	DiscordRoleID   string `json:"discord_role_id"`
	CommandTemplate string `json:"minecraft_command_template"`
	ImageURL        string `json:"image_url"`
	IsAvailable     *bool  `json:"is_available"`
}

// ListAvailable is the public catalog endpoint.
func (h *Handler) ListAvailable(c *gin.Context) {
	items, err := h.repo.GetAvailable(c.Request.Context(), c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load items"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// List is the admin view including unavailable items.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	items, total, err := h.repo.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load items"})
		return
	}

	c.JSON(http.StatusOK, api.NewPaginated(items, total, page, limit))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	i, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item"})
		return
	}
	c.JSON(http.StatusOK, i)
}

func (h *Handler) Create(c *gin.Context) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingErrorBody(err))
		return
	}

	i, err := itemFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.Create(c.Request.Context(), i); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create item"})
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionItemCreated,
		"item", strconv.Itoa(i.ID), i.Name, c.ClientIP())
	c.JSON(http.StatusCreated, i)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingErrorBody(err))
		return
	}

	i, err := itemFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	i.ID = id

	if err := h.repo.Update(c.Request.Context(), i); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionItemUpdated,
		"item", strconv.Itoa(id), i.Name, c.ClientIP())
	c.JSON(http.StatusOK, i)
}

// Delete removes an item, or deactivates it when purchases reference
// it so history keeps resolving.
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	referenced, err := h.repo.HasPurchases(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check item usage"})
		return
	}

	if referenced {
		err = h.repo.Deactivate(c.Request.Context(), id)
	} else {
		err = h.repo.Delete(c.Request.Context(), id)
	}
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete item"})
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionItemDeleted,
		"item", strconv.Itoa(id), "", c.ClientIP())

	if referenced {
		c.JSON(http.StatusOK, gin.H{"message": "item deactivated, purchases reference it"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item deleted"})
}

func itemFromRequest(req *ItemRequest) (*Item, error) {
	kind := Kind(req.Kind)
	if !kind.Valid() {
		return nil, errors.New("item_type must be discord, minecraft or both")
	}
	if kind.RequiresRole() && req.DiscordRoleID == "" {
		return nil, errors.New("discord_role_id is required for this item type")
	}
	if kind.RequiresCommand() && req.CommandTemplate == "" {
		return nil, errors.New("minecraft_command_template is required for this item type")
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	return &Item{
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		Category:        req.Category,
		Kind:            kind,
		DiscordRoleID:   req.DiscordRoleID,
		CommandTemplate: req.CommandTemplate,
		ImageURL:        req.ImageURL,
		IsAvailable:     available,
	}, nil
}

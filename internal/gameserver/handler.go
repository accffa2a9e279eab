package gameserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iM5LB/dbot/internal/api"
	"github.com/iM5LB/dbot/internal/audit"
	"github.com/iM5LB/dbot/internal/auth"
	"github.com/iM5LB/dbot/internal/minecraft"
)

type Handler struct {
	repo   *Repository
	client *minecraft.Client
	audit  *audit.Repository
}

func NewHandler(repo *Repository, client *minecraft.Client, auditRepo *audit.Repository) *Handler {
	return &Handler{repo: repo, client: client, audit: auditRepo}
}

type ServerRequest struct {
	Name         string `json:"name" binding:"required"`
	Host         string `json:"host" binding:"required"`
	Port         int    `json:"port" binding:"required"`
	RCONHost     string `json:"rcon_host" binding:"required"`
	RCONPort     int    `json:"rcon_port" binding:"required"`
	RCONPassword string `json:"rcon_password"`
	IsActive     *bool  `json:"is_active"`
}

type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

func (h *Handler) List(c *gin.Context) {
	servers, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load servers"})
		return
	}
	c.JSON(http.StatusOK, servers)
}

func (h *Handler) Create(c *gin.Context) {
	var req ServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingErrorBody(err))
		return
	}

	s := serverFromRequest(&req)
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create server"})
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionServerChanged,
		"server", strconv.Itoa(s.ID), "created "+s.Name, c.ClientIP())

	c.JSON(http.StatusCreated, s)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server id"})
		return
	}

	var req ServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingErrorBody(err))
		return
	}

	s := serverFromRequest(&req)
	s.ID = id
	if err := h.repo.Update(c.Request.Context(), s); err != nil {
		if errors.Is(err, ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update server"})
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionServerChanged,
		"server", strconv.Itoa(id), "updated "+s.Name, c.ClientIP())

	c.JSON(http.StatusOK, s)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete server"})
		return
	}

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionServerChanged,
		"server", strconv.Itoa(id), "deleted", c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"message": "server deleted"})
}

// Test probes both the status and RCON endpoints of one server.
func (h *Handler) Test(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server id"})
		return
	}

	s, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load server"})
		return
	}

	statusOK, rconOK := h.client.TestConnection(c.Request.Context(),
		s.Host, s.Port, s.RCONHost, s.RCONPort, s.RCONPassword)

	c.JSON(http.StatusOK, gin.H{
		"status_ok": statusOK,
		"rcon_ok":   rconOK,
	})
}

// Execute runs an arbitrary RCON command on one server.
func (h *Handler) Execute(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server id"})
		return
	}

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingErrorBody(err))
		return
	}

	s, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load server"})
		return
	}

	ok := h.client.ExecuteCommand(c.Request.Context(), req.Command, s.RCONHost, s.RCONPort, s.RCONPassword)

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionServerChanged,
		"server", strconv.Itoa(id), "executed: "+req.Command, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"executed": ok})
}

// Refresh polls every active server immediately instead of waiting for
// the next scheduled sweep.
func (h *Handler) Refresh(c *gin.Context) {
	p := &Poller{servers: h.repo, querier: h.client}
	p.PollOnce(c.Request.Context())

	actor, _ := auth.GetUsername(c)
	h.audit.Record(c.Request.Context(), actor, audit.ActionServerChanged,
		"server", "", "status refresh", c.ClientIP())

	h.Status(c)
}

// Status returns the latest recorded snapshot per server.
func (h *Handler) Status(c *gin.Context) {
	servers, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load servers"})
		return
	}

	type serverStatus struct {
		Server Server          `json:"server"`
		Latest *StatusSnapshot `json:"latest"`
	}

	out := make([]serverStatus, 0, len(servers))
	for _, s := range servers {
		latest, err := h.repo.LatestStatus(c.Request.Context(), s.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
			return
		}
		out = append(out, serverStatus{Server: s, Latest: latest})
	}
	c.JSON(http.StatusOK, out)
}

func serverFromRequest(req *ServerRequest) *Server {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &Server{
		Name:         req.Name,
		Host:         req.Host,
		Port:         req.Port,
		RCONHost:     req.RCONHost,
		RCONPort:     req.RCONPort,
		RCONPassword: req.RCONPassword,
		IsActive:     active,
	}
}

package hubsim

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError sends an error response
func respondError(c *gin.Context, status int, message string, details map[string]string) {
	c.JSON(status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}

func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAgentNotFound), errors.Is(err, ErrHostNotFound), errors.Is(err, ErrContainerNotFound):
		respondError(c, http.StatusNotFound, err.Error(), nil)
	default:
		respondError(c, http.StatusInternalServerError, "internal error", nil)
	}
}

// Handler serves the hub API
type Handler struct {
	store *MemoryStore
}

// NewHandler creates a new hub handler
func NewHandler(store *MemoryStore) *Handler {
	return &Handler{store: store}
}

// RegisterAgent handles agent registration
func (h *Handler) RegisterAgent(c *gin.Context) {
	var req RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if details := validateStruct(&req); details != nil {
		respondError(c, http.StatusBadRequest, "validation failed", details)
		return
	}

	agentUUID, _ := h.store.RegisterAgent(req.Version, req.Host)
	c.JSON(http.StatusOK, RegisterAgentResponse{UUID: agentUUID})
}

// AgentHost handles host lookup for an agent
func (h *Handler) AgentHost(c *gin.Context) {
	hostUUID, err := h.store.HostForAgent(c.Param("agent_uuid"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, HostResponse{HostUUID: hostUUID})
}

// Heartbeat handles agent heartbeat
func (h *Handler) Heartbeat(c *gin.Context) {
	if err := h.store.Touch(c.Param("agent_uuid")); err != nil {
		respondStoreError(c, err)
		return
	}
	c.String(http.StatusOK, "ok")
}

// ListContainers handles listing the containers of a host
func (h *Handler) ListContainers(c *gin.Context) {
	recs, err := h.store.ListContainers(c.Param("host_uuid"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	out := make([]ContainerResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, containerResponse(rec))
	}
	c.JSON(http.StatusOK, out)
}

// RegisterContainer handles container registration
func (h *Handler) RegisterContainer(c *gin.Context) {
	var req RegisterContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if details := validateStruct(&req); details != nil {
		respondError(c, http.StatusBadRequest, "validation failed", details)
		return
	}

	containerUUID, err := h.store.RegisterContainer(c.Param("host_uuid"), req.record())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, RegisterAgentResponse{UUID: containerUUID})
}

// DestroyContainer handles container deletion
func (h *Handler) DestroyContainer(c *gin.Context) {
	if err := h.store.DeleteContainer(c.Param("host_uuid"), c.Param("container_uuid")); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Health handles health check
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

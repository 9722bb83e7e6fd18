// Package hubsim is an in-memory stand-in for the hub API, used by tests and
// for running the agent locally.
package hubsim

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the hub HTTP routes on top of store
func NewRouter(store *MemoryStore) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:5173"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	setupRoutes(router, NewHandler(store))
	return router
}

func setupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.POST("/agent/register", h.RegisterAgent)
		api.GET("/agent/:agent_uuid/host", h.AgentHost)
		api.PUT("/agent/:agent_uuid/heartbeat/", h.Heartbeat)

		api.GET("/host/:host_uuid/containers", h.ListContainers)
		api.POST("/host/:host_uuid/container/register", h.RegisterContainer)
		api.DELETE("/host/:host_uuid/container/:container_uuid/destroy", h.DestroyContainer)
	}
}

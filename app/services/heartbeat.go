package services

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/xDMPx/PyDockMateAgent/app/clients"
	"github.com/xDMPx/PyDockMateAgent/app/domains"
)

// HeartbeatService sends the per-tick liveness signal
type HeartbeatService struct {
	hub    HubAPI
	logger zerolog.Logger
}

// NewHeartbeatService creates a new heartbeat service
func NewHeartbeatService(hub HubAPI, logger zerolog.Logger) *HeartbeatService {
	return &HeartbeatService{
		hub:    hub,
		logger: logger.With().Str("component", "heartbeat").Logger(),
	}
}

// Send sends one heartbeat. It is best effort: failures are logged and the
// next tick tries again.
func (h *HeartbeatService) Send(ctx context.Context, ident domains.AgentIdentity) bool {
	text, err := h.hub.Heartbeat(ctx, ident)
	if err != nil {
		if clients.IsStatus(err, http.StatusNotFound) {
			h.logger.Warn().Err(err).Str("agent_uuid", string(ident)).Msg("heartbeat failed: hub does not know this agent")
		} else {
			h.logger.Warn().Err(err).Msg("heartbeat failed")
		}
		return false
	}

	h.logger.Debug().Str("response", text).Msg("heartbeat sent")
	return true
}

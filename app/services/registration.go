package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
	"github.com/xDMPx/PyDockMateAgent/app/identity"
)

// IdentityStore persists the agent identity between process starts
type IdentityStore interface {
	Load() (domains.AgentIdentity, bool)
	Save(domains.AgentIdentity) error
}

// RuntimeVersioner reports the container runtime version
type RuntimeVersioner interface {
	Version(ctx context.Context) (string, error)
}

// RegistrationService handles first-time agent registration
type RegistrationService struct {
	hub        HubAPI
	identities IdentityStore
	collector  *identity.Collector
	runtime    RuntimeVersioner
	logger     zerolog.Logger
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(hub HubAPI, identities IdentityStore, collector *identity.Collector, runtime RuntimeVersioner, logger zerolog.Logger) *RegistrationService {
	return &RegistrationService{
		hub:        hub,
		identities: identities,
		collector:  collector,
		runtime:    runtime,
		logger:     logger.With().Str("component", "registration").Logger(),
	}
}

// Register asks the hub for a new identity and persists it. The hub creates a
// new agent record on every call, so callers must only invoke this when no
// identity is stored. It is never retried here.
//
// A failure to persist the identity wraps identity.ErrConfigIO; the agent
// cannot continue without it.
func (r *RegistrationService) Register(ctx context.Context) (domains.AgentIdentity, error) {
	dockerVersion, err := r.runtime.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read runtime version: %w", err)
	}

	desc := r.collector.Collect(dockerVersion)
	r.logger.Info().
		Str("hostname", desc.Host.Hostname).
		Str("os", desc.Host.OS).
		Str("docker_version", desc.Host.DockerVersion).
		Msg("registering new agent")

	ident, err := r.hub.RegisterAgent(ctx, desc)
	if err != nil {
		return "", fmt.Errorf("failed to register: %w", err)
	}

	if err := r.identities.Save(ident); err != nil {
		return "", fmt.Errorf("failed to save identity: %w", err)
	}

	r.logger.Info().Str("agent_uuid", string(ident)).Msg("registered agent")
	return ident, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
	"github.com/xDMPx/PyDockMateAgent/app/identity"
	"github.com/xDMPx/PyDockMateAgent/app/storage"
)

// PassJournal records pass outcomes for later inspection
type PassJournal interface {
	RecordPass(ctx context.Context, rec storage.PassRecord) error
	LastPass(ctx context.Context) (*storage.PassRecord, error)
}

const (
	triggerBootstrap = "bootstrap"
	triggerTick      = "tick"
)

// Controller owns the bootstrap sequence and the steady-state loop
type Controller struct {
	identities   IdentityStore
	registration *RegistrationService
	hub          HubAPI
	heartbeat    *HeartbeatService
	reconciler   *Reconciler
	journal      PassJournal
	newTicker    func() Ticker
	now          func() time.Time
	logger       zerolog.Logger
}

// NewController wires the lifecycle. journal may be nil.
func NewController(
	identities IdentityStore,
	registration *RegistrationService,
	hub HubAPI,
	heartbeat *HeartbeatService,
	reconciler *Reconciler,
	journal PassJournal,
	newTicker func() Ticker,
	logger zerolog.Logger,
) *Controller {
	return &Controller{
		identities:   identities,
		registration: registration,
		hub:          hub,
		heartbeat:    heartbeat,
		reconciler:   reconciler,
		journal:      journal,
		newTicker:    newTicker,
		now:          time.Now,
		logger:       logger.With().Str("component", "controller").Logger(),
	}
}

// Bootstrap returns the stored identity, or registers the agent when none is
// stored and runs one baseline pass. ok is false when the agent is still
// unregistered and should try again on the next tick. A non-nil error is
// fatal.
func (c *Controller) Bootstrap(ctx context.Context) (ident domains.AgentIdentity, ok bool, err error) {
	if ident, found := c.identities.Load(); found {
		c.logger.Info().Str("agent_uuid", string(ident)).Msg("loaded agent identity")
		return ident, true, nil
	}

	ident, err = c.registration.Register(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrConfigIO) {
			return "", false, err
		}
		c.logger.Error().Err(err).Msg("agent registration failed, will try again next tick")
		return "", false, nil
	}

	host, err := c.hub.FetchHostBinding(ctx, ident)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch host binding after registration")
		return ident, true, nil
	}
	c.runPass(ctx, host, triggerBootstrap)
	return ident, true, nil
}

// Tick sends a heartbeat, then runs one reconciliation pass against a freshly
// fetched host binding
func (c *Controller) Tick(ctx context.Context, ident domains.AgentIdentity) {
	c.heartbeat.Send(ctx, ident)

	started := c.now()
	host, err := c.hub.FetchHostBinding(ctx, ident)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch host binding, skipping pass")
		c.journalPass(ctx, storage.PassRecord{
			StartedAt: started,
			Trigger:   triggerTick,
			Aborted:   true,
		}, err)
		return
	}
	c.runPass(ctx, host, triggerTick)
}

// Run bootstraps and then ticks until ctx is cancelled. The first tick runs
// immediately.
func (c *Controller) Run(ctx context.Context) error {
	c.logLastPass(ctx)

	ident, registered, err := c.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	ticker := c.newTicker()
	defer ticker.Stop()

	retryBootstrap := false
	for {
		switch {
		case registered:
			c.Tick(ctx, ident)
		case retryBootstrap:
			ident, registered, err = c.Bootstrap(ctx)
			if err != nil {
				return fmt.Errorf("bootstrap failed: %w", err)
			}
		}
		retryBootstrap = true

		select {
		case <-ctx.Done():
			c.logger.Info().Msg("stopping agent loop")
			return nil
		case <-ticker.C():
		}
	}
}

func (c *Controller) runPass(ctx context.Context, host domains.HostBinding, trigger string) {
	started := c.now()
	result, err := c.reconciler.Reconcile(ctx, host)

	event := c.logger.Info()
	if err != nil {
		event = c.logger.Error().Err(err)
	}
	event.
		Str("trigger", trigger).
		Str("host_uuid", string(host)).
		Bool("aborted", result.Aborted).
		Int("registered", result.Registered).
		Int("deleted", result.Deleted).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("took", c.now().Sub(started)).
		Msg("reconciliation pass finished")

	c.journalPass(ctx, storage.PassRecord{
		StartedAt:  started,
		HostUUID:   string(host),
		Trigger:    trigger,
		Aborted:    result.Aborted,
		Registered: result.Registered,
		Deleted:    result.Deleted,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
	}, err)
}

func (c *Controller) journalPass(ctx context.Context, rec storage.PassRecord, passErr error) {
	if c.journal == nil {
		return
	}
	rec.FinishedAt = c.now()
	if passErr != nil {
		msg := passErr.Error()
		rec.ErrorMsg = &msg
	}
	if err := c.journal.RecordPass(ctx, rec); err != nil {
		c.logger.Warn().Err(err).Msg("failed to journal pass")
	}
}

func (c *Controller) logLastPass(ctx context.Context) {
	if c.journal == nil {
		return
	}
	last, err := c.journal.LastPass(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read pass journal")
		return
	}
	if last == nil {
		return
	}
	c.logger.Info().
		Time("started_at", last.StartedAt).
		Str("trigger", last.Trigger).
		Bool("aborted", last.Aborted).
		Int("failed", last.Failed).
		Msg("previous reconciliation pass")
}

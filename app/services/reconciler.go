package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
)

// ErrPartialReconciliation is returned when one or more register or delete
// calls of a pass failed. The pass itself still ran to completion.
var ErrPartialReconciliation = errors.New("partial reconciliation failure")

// SnapshotProvider lists the containers currently known to the runtime
type SnapshotProvider interface {
	ListContainers(ctx context.Context, includeStopped bool) ([]domains.ContainerRecord, error)
}

// Plan is the set of hub mutations that makes the hub match the runtime
type Plan struct {
	Register []domains.ContainerRecord
	Delete   []domains.ContainerRecord
	// Skipped holds remote records that should go but have no hub uuid
	Skipped []domains.ContainerRecord
	// Duplicates lists runtime ids the hub holds more than once
	Duplicates []string
}

// Empty reports whether the plan has no mutations
func (p Plan) Empty() bool {
	return len(p.Register) == 0 && len(p.Delete) == 0
}

// Diff joins local and remote on runtime id. Records present on both sides
// are left alone no matter how their other fields differ.
func Diff(local, remote []domains.ContainerRecord) Plan {
	localIDs := make(map[string]struct{}, len(local))
	for _, rec := range local {
		if rec.RuntimeID != "" {
			localIDs[rec.RuntimeID] = struct{}{}
		}
	}

	remoteIDs := make(map[string]int, len(remote))
	for _, rec := range remote {
		if rec.RuntimeID != "" {
			remoteIDs[rec.RuntimeID]++
		}
	}

	var plan Plan
	planned := make(map[string]struct{}, len(local))
	for _, rec := range local {
		if rec.RuntimeID == "" {
			continue
		}
		if _, known := remoteIDs[rec.RuntimeID]; known {
			continue
		}
		if _, dup := planned[rec.RuntimeID]; dup {
			continue
		}
		planned[rec.RuntimeID] = struct{}{}
		plan.Register = append(plan.Register, rec)
	}

	reported := make(map[string]struct{})
	for _, rec := range remote {
		if rec.RuntimeID == "" {
			continue
		}
		if remoteIDs[rec.RuntimeID] > 1 {
			if _, seen := reported[rec.RuntimeID]; !seen {
				reported[rec.RuntimeID] = struct{}{}
				plan.Duplicates = append(plan.Duplicates, rec.RuntimeID)
			}
		}
		if _, running := localIDs[rec.RuntimeID]; running {
			continue
		}
		if !rec.RegisteredOnHub() {
			plan.Skipped = append(plan.Skipped, rec)
			continue
		}
		plan.Delete = append(plan.Delete, rec)
	}

	return plan
}

// PassResult summarises one reconciliation pass
type PassResult struct {
	Host       domains.HostBinding
	Aborted    bool
	Registered int
	Deleted    int
	Skipped    int
	Failed     int
}

// Reconciler converges the hub's container list for a host onto the runtime
type Reconciler struct {
	hub         HubAPI
	snapshots   SnapshotProvider
	concurrency int
	logger      zerolog.Logger
}

// NewReconciler creates a reconciler. concurrency bounds the number of hub
// mutations in flight within one pass; 1 runs them one after another.
func NewReconciler(hub HubAPI, snapshots SnapshotProvider, concurrency int, logger zerolog.Logger) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{
		hub:         hub,
		snapshots:   snapshots,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile runs one full fetch, diff and mutate pass. Both sides are
// fetched from scratch. A failed fetch aborts the pass before any mutation.
func (r *Reconciler) Reconcile(ctx context.Context, host domains.HostBinding) (PassResult, error) {
	result := PassResult{Host: host}
	logger := r.logger.With().Str("host_uuid", string(host)).Logger()

	local, err := r.snapshots.ListContainers(ctx, true)
	if err != nil {
		result.Aborted = true
		return result, fmt.Errorf("reconcile aborted: %w", err)
	}

	remote, err := r.hub.ListHostContainers(ctx, host)
	if err != nil {
		result.Aborted = true
		return result, fmt.Errorf("reconcile aborted: %w", err)
	}

	plan := Diff(local, remote)
	for _, id := range plan.Duplicates {
		logger.Warn().Str("container", id).Msg("hub holds duplicate records for container")
	}
	for _, rec := range plan.Skipped {
		logger.Warn().Str("container", rec.RuntimeID).Msg("hub record has no uuid, skipping delete")
	}
	result.Skipped = len(plan.Skipped)

	logger.Debug().
		Int("local", len(local)).
		Int("remote", len(remote)).
		Int("register", len(plan.Register)).
		Int("delete", len(plan.Delete)).
		Msg("computed plan")

	if plan.Empty() {
		return result, nil
	}

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	record := func(err error, ok *int) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failed++
			errs = multierror.Append(errs, err)
			return
		}
		*ok++
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, rec := range plan.Register {
		g.Go(func() error {
			err := r.hub.RegisterContainer(ctx, host, rec)
			if err != nil {
				logger.Error().Err(err).Str("container", rec.RuntimeID).Msg("failed to register container")
			} else {
				logger.Info().Str("container", rec.RuntimeID).Str("name", rec.Name).Msg("registered container")
			}
			record(err, &result.Registered)
			return nil
		})
	}
	for _, rec := range plan.Delete {
		g.Go(func() error {
			err := r.hub.DeleteContainer(ctx, host, rec.HubUUID)
			if err != nil {
				logger.Error().Err(err).Str("container", rec.RuntimeID).Str("uuid", rec.HubUUID).Msg("failed to delete container")
			} else {
				logger.Info().Str("container", rec.RuntimeID).Str("uuid", rec.HubUUID).Msg("deleted container")
			}
			record(err, &result.Deleted)
			return nil
		})
	}
	_ = g.Wait()

	if result.Failed > 0 {
		total := len(plan.Register) + len(plan.Delete)
		return result, fmt.Errorf("%w: %d of %d operations failed: %w", ErrPartialReconciliation, result.Failed, total, errs.ErrorOrNil())
	}
	return result, nil
}

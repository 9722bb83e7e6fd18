// Package docker reads the local container set from the Docker Engine API.
package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
	"github.com/xDMPx/PyDockMateAgent/app/utils"
)

// ErrRuntimeQuery marks a failure to read the container set. It must never be
// read as "no containers".
var ErrRuntimeQuery = errors.New("container runtime query failed")

// engineAPI is the subset of the Docker client the provider uses
type engineAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ServerVersion(ctx context.Context) (types.Version, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// Provider implements the runtime snapshot for the reconciler
type Provider struct {
	cli    engineAPI
	logger zerolog.Logger
}

// NewProvider creates a Provider with a Docker client from the environment
func NewProvider(logger zerolog.Logger) (*Provider, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return newProvider(cli, logger), nil
}

func newProvider(cli engineAPI, logger zerolog.Logger) *Provider {
	return &Provider{
		cli:    cli,
		logger: logger.With().Str("component", "runtime").Logger(),
	}
}

// Close releases the Docker client
func (p *Provider) Close() error {
	return p.cli.Close()
}

// WaitReady pings the daemon until it answers or the policy gives up
func (p *Provider) WaitReady(ctx context.Context, policy *utils.RetryPolicy) error {
	err := policy.Execute(ctx, func() error {
		_, err := p.cli.Ping(ctx)
		return err
	}, func(attempt int, err error) {
		p.logger.Warn().Err(err).Int("attempt", attempt).Msg("docker daemon not ready, retrying")
	})
	if err != nil {
		return fmt.Errorf("%w: connect to docker daemon: %v", ErrRuntimeQuery, err)
	}
	return nil
}

// Version returns the Docker server version
func (p *Provider) Version(ctx context.Context) (string, error) {
	v, err := p.cli.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: server version: %v", ErrRuntimeQuery, err)
	}
	return v.Version, nil
}

// ListContainers returns the containers on this host. includeStopped adds
// exited and created containers, which delete detection depends on.
func (p *Provider) ListContainers(ctx context.Context, includeStopped bool) ([]domains.ContainerRecord, error) {
	summaries, err := p.cli.ContainerList(ctx, container.ListOptions{All: includeStopped})
	if err != nil {
		return nil, fmt.Errorf("%w: list containers: %v", ErrRuntimeQuery, err)
	}

	records := make([]domains.ContainerRecord, 0, len(summaries))
	for _, s := range summaries {
		info, err := p.cli.ContainerInspect(ctx, s.ID)
		if err != nil {
			if errdefs.IsNotFound(err) {
				p.logger.Debug().Str("container", s.ID).Msg("container vanished before inspect")
				continue
			}
			return nil, fmt.Errorf("%w: inspect container %s: %v", ErrRuntimeQuery, s.ID, err)
		}
		records = append(records, toRecord(s, info))
	}
	return records, nil
}

func toRecord(s container.Summary, info container.InspectResponse) domains.ContainerRecord {
	rec := domains.ContainerRecord{
		RuntimeID: s.ID,
		Image:     s.Image,
		Command:   s.Command,
	}
	if len(s.Names) > 0 {
		rec.Name = strings.TrimPrefix(s.Names[0], "/")
	}

	if info.ContainerJSONBase != nil {
		if info.Path != "" {
			rec.Command = info.Path
		}
		rec.CreatedAt = info.Created
		if rec.Name == "" {
			rec.Name = strings.TrimPrefix(info.Name, "/")
		}
	}
	if info.NetworkSettings != nil {
		rec.Ports = FormatPorts(info.NetworkSettings.Ports)
	}
	return rec
}

// FormatPorts renders a port map deterministically, e.g.
// "80/tcp->0.0.0.0:8080, 443/tcp". Unpublished ports have no "->" part.
func FormatPorts(ports nat.PortMap) string {
	if len(ports) == 0 {
		return ""
	}

	keys := make([]string, 0, len(ports))
	for p := range ports {
		keys = append(keys, string(p))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		bindings := ports[nat.Port(k)]
		if len(bindings) == 0 {
			parts = append(parts, k)
			continue
		}
		for _, b := range bindings {
			parts = append(parts, fmt.Sprintf("%s->%s:%s", k, b.HostIP, b.HostPort))
		}
	}
	return strings.Join(parts, ", ")
}

package identity

import (
	"os"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
)

// Collector gathers the host description sent on agent registration
type Collector struct {
	agentVersion string
	hostname     func() (string, error)
	osRelease    func() string
}

// NewCollector creates a new metadata collector
func NewCollector(agentVersion string) *Collector {
	return &Collector{
		agentVersion: agentVersion,
		hostname:     os.Hostname,
		osRelease:    osNameRelease,
	}
}

// Collect builds the AgentDescriptor for this host. dockerVersion comes from
// the runtime since the collector has no runtime access of its own.
func (c *Collector) Collect(dockerVersion string) domains.AgentDescriptor {
	hostname, err := c.hostname()
	if err != nil {
		hostname = "unknown"
	}

	return domains.AgentDescriptor{
		Version: c.agentVersion,
		Host: domains.HostInfo{
			Hostname:      hostname,
			OS:            c.osRelease(),
			DockerVersion: dockerVersion,
		},
	}
}

package domains

// AgentIdentity is the opaque token the hub issues on first registration
type AgentIdentity string

// HostBinding is the hub-side host id that belongs to an agent identity.
// It is fetched fresh on every use and never persisted.
type HostBinding string

// HostInfo describes the machine the agent runs on
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	DockerVersion string `json:"docker_version"`
}

// AgentDescriptor is the payload sent when registering a new agent
type AgentDescriptor struct {
	Version string   `json:"version"`
	Host    HostInfo `json:"host"`
}

package hubsim

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
)

var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrHostNotFound      = errors.New("host not found")
	ErrContainerNotFound = errors.New("container not found")
)

type agentRecord struct {
	uuid       string
	hostUUID   string
	version    string
	lastSeenAt time.Time
}

type hostRecord struct {
	uuid       string
	info       HostInfoRequest
	containers map[string]domains.ContainerRecord
	order      []string
}

// MemoryStore keeps hub state in memory. Like the real hub it does not
// deduplicate: registering the same agent or container twice creates two
// records.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*agentRecord
	hosts  map[string]*hostRecord
	now    func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents: make(map[string]*agentRecord),
		hosts:  make(map[string]*hostRecord),
		now:    time.Now,
	}
}

// RegisterAgent creates an agent and its host
func (s *MemoryStore) RegisterAgent(version string, info HostInfoRequest) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	host := &hostRecord{
		uuid:       uuid.New().String(),
		info:       info,
		containers: make(map[string]domains.ContainerRecord),
	}
	agent := &agentRecord{
		uuid:       uuid.New().String(),
		hostUUID:   host.uuid,
		version:    version,
		lastSeenAt: s.now(),
	}
	s.hosts[host.uuid] = host
	s.agents[agent.uuid] = agent
	return agent.uuid, host.uuid
}

// AgentCount returns the number of registered agents
func (s *MemoryStore) AgentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// HostForAgent returns the host uuid bound to an agent
func (s *MemoryStore) HostForAgent(agentUUID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[agentUUID]
	if !ok {
		return "", ErrAgentNotFound
	}
	return agent.hostUUID, nil
}

// Touch records a heartbeat
func (s *MemoryStore) Touch(agentUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[agentUUID]
	if !ok {
		return ErrAgentNotFound
	}
	agent.lastSeenAt = s.now()
	return nil
}

// LastSeen returns the last heartbeat time of an agent
func (s *MemoryStore) LastSeen(agentUUID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[agentUUID]
	if !ok {
		return time.Time{}, ErrAgentNotFound
	}
	return agent.lastSeenAt, nil
}

// ListContainers returns the containers of a host in registration order
func (s *MemoryStore) ListContainers(hostUUID string) ([]domains.ContainerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	host, ok := s.hosts[hostUUID]
	if !ok {
		return nil, ErrHostNotFound
	}
	out := make([]domains.ContainerRecord, 0, len(host.order))
	for _, id := range host.order {
		out = append(out, host.containers[id])
	}
	return out, nil
}

// RegisterContainer stores a container under a new hub uuid
func (s *MemoryStore) RegisterContainer(hostUUID string, rec domains.ContainerRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, ok := s.hosts[hostUUID]
	if !ok {
		return "", ErrHostNotFound
	}
	rec.HubUUID = uuid.New().String()
	host.containers[rec.HubUUID] = rec
	host.order = append(host.order, rec.HubUUID)
	return rec.HubUUID, nil
}

// DeleteContainer removes a container by hub uuid
func (s *MemoryStore) DeleteContainer(hostUUID, containerUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, ok := s.hosts[hostUUID]
	if !ok {
		return ErrHostNotFound
	}
	if _, ok := host.containers[containerUUID]; !ok {
		return ErrContainerNotFound
	}
	delete(host.containers, containerUUID)
	for i, id := range host.order {
		if id == containerUUID {
			host.order = append(host.order[:i], host.order[i+1:]...)
			break
		}
	}
	return nil
}

// RuntimeIDs returns the sorted runtime ids registered for a host
func (s *MemoryStore) RuntimeIDs(hostUUID string) []string {
	recs, err := s.ListContainers(hostUUID)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.RuntimeID)
	}
	sort.Strings(ids)
	return ids
}

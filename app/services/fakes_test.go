package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
	"github.com/xDMPx/PyDockMateAgent/app/storage"
)

var errInjected = errors.New("injected failure")

// fakeHub keeps hub state in memory and applies mutations to it, so repeated
// passes see the effect of earlier ones.
type fakeHub struct {
	mu sync.Mutex

	containers map[domains.HostBinding][]domains.ContainerRecord
	nextID     int

	hostFor      map[domains.AgentIdentity]domains.HostBinding
	issueIdent   domains.AgentIdentity
	issueHost    domains.HostBinding
	registerErr  error
	hostErr      error
	heartbeatErr error
	listErr      error
	failRegister map[string]bool
	failDelete   map[string]bool

	agentRegistrations int
	heartbeats         int
	hostFetches        int
	registered         []string
	deleted            []string
	descriptors        []domains.AgentDescriptor
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		containers:   make(map[domains.HostBinding][]domains.ContainerRecord),
		hostFor:      make(map[domains.AgentIdentity]domains.HostBinding),
		issueIdent:   "agent-1",
		issueHost:    "host-1",
		failRegister: make(map[string]bool),
		failDelete:   make(map[string]bool),
	}
}

func (h *fakeHub) seed(host domains.HostBinding, recs ...domains.ContainerRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.containers[host] = append(h.containers[host], recs...)
}

func (h *fakeHub) RegisterAgent(_ context.Context, desc domains.AgentDescriptor) (domains.AgentIdentity, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.agentRegistrations++
	h.descriptors = append(h.descriptors, desc)
	if h.registerErr != nil {
		return "", h.registerErr
	}
	h.hostFor[h.issueIdent] = h.issueHost
	return h.issueIdent, nil
}

func (h *fakeHub) FetchHostBinding(_ context.Context, ident domains.AgentIdentity) (domains.HostBinding, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hostFetches++
	if h.hostErr != nil {
		return "", h.hostErr
	}
	host, ok := h.hostFor[ident]
	if !ok {
		return "", fmt.Errorf("unknown agent %s", ident)
	}
	return host, nil
}

func (h *fakeHub) Heartbeat(_ context.Context, _ domains.AgentIdentity) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heartbeats++
	if h.heartbeatErr != nil {
		return "", h.heartbeatErr
	}
	return "ok", nil
}

func (h *fakeHub) ListHostContainers(_ context.Context, host domains.HostBinding) ([]domains.ContainerRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listErr != nil {
		return nil, h.listErr
	}
	return append([]domains.ContainerRecord(nil), h.containers[host]...), nil
}

func (h *fakeHub) RegisterContainer(_ context.Context, host domains.HostBinding, rec domains.ContainerRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered = append(h.registered, rec.RuntimeID)
	if h.failRegister[rec.RuntimeID] {
		return fmt.Errorf("register %s: %w", rec.RuntimeID, errInjected)
	}
	h.nextID++
	rec.HubUUID = fmt.Sprintf("u%d", h.nextID)
	h.containers[host] = append(h.containers[host], rec)
	return nil
}

func (h *fakeHub) DeleteContainer(_ context.Context, host domains.HostBinding, hubUUID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, hubUUID)
	if h.failDelete[hubUUID] {
		return fmt.Errorf("delete %s: %w", hubUUID, errInjected)
	}
	kept := h.containers[host][:0]
	for _, rec := range h.containers[host] {
		if rec.HubUUID != hubUUID {
			kept = append(kept, rec)
		}
	}
	h.containers[host] = kept
	return nil
}

func (h *fakeHub) resetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered = nil
	h.deleted = nil
}

type fakeRuntime struct {
	mu         sync.Mutex
	containers []domains.ContainerRecord
	err        error
	version    string
	versionErr error
	calls      int
	stopped    []bool
}

func (r *fakeRuntime) ListContainers(_ context.Context, includeStopped bool) ([]domains.ContainerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.stopped = append(r.stopped, includeStopped)
	if r.err != nil {
		return nil, r.err
	}
	return append([]domains.ContainerRecord(nil), r.containers...), nil
}

func (r *fakeRuntime) Version(context.Context) (string, error) {
	if r.versionErr != nil {
		return "", r.versionErr
	}
	return r.version, nil
}

type memJournal struct {
	mu      sync.Mutex
	records []storage.PassRecord
}

func (j *memJournal) RecordPass(_ context.Context, rec storage.PassRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) LastPass(context.Context) (*storage.PassRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.records) == 0 {
		return nil, nil
	}
	rec := j.records[len(j.records)-1]
	return &rec, nil
}

func (j *memJournal) all() []storage.PassRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]storage.PassRecord(nil), j.records...)
}

func rec(id string) domains.ContainerRecord {
	return domains.ContainerRecord{RuntimeID: id, Image: "img/" + id, Name: id}
}

func hubRec(id, hubUUID string) domains.ContainerRecord {
	r := rec(id)
	r.HubUUID = hubUUID
	return r
}

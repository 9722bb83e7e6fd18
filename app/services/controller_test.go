package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xDMPx/PyDockMateAgent/app/domains"
	"github.com/xDMPx/PyDockMateAgent/app/identity"
)

// manualTicker delivers a tick only when the test sends one. The channel is
// unbuffered, so a send returns once the loop has taken the tick.
type manualTicker struct {
	ch      chan time.Time
	stopped bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped = true }

type harness struct {
	hub        *fakeHub
	runtime    *fakeRuntime
	identities *identity.Manager
	journal    *memJournal
	ticker     *manualTicker
	controller *Controller
}

func newHarness(t *testing.T, identityPath string, hub *fakeHub, rt *fakeRuntime) *harness {
	t.Helper()

	h := &harness{
		hub:        hub,
		runtime:    rt,
		identities: identity.NewManager(identityPath, zerolog.Nop()),
		journal:    &memJournal{},
		ticker:     newManualTicker(),
	}
	registration := NewRegistrationService(hub, h.identities, identity.NewCollector("test"), rt, zerolog.Nop())
	h.controller = NewController(
		h.identities,
		registration,
		hub,
		NewHeartbeatService(hub, zerolog.Nop()),
		NewReconciler(hub, rt, 1, zerolog.Nop()),
		h.journal,
		func() Ticker { return h.ticker },
		zerolog.Nop(),
	)
	return h
}

// run starts the loop, sends n extra ticks and stops it
func (h *harness) run(t *testing.T, ticks int) error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.controller.Run(ctx) }()

	for i := 0; i < ticks; i++ {
		select {
		case h.ticker.ch <- time.Now():
		case err := <-done:
			cancel()
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("loop did not take tick")
		}
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
		return nil
	}
}

func TestBootstrapRegistersOnceAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "PyDockMateAgent", "config")
	hub := newFakeHub()
	rt := &fakeRuntime{containers: []domains.ContainerRecord{rec("A"), rec("B")}, version: "27.1.0"}

	for i := 0; i < 3; i++ {
		h := newHarness(t, path, hub, rt)
		require.NoError(t, h.run(t, 0))
	}

	assert.Equal(t, 1, hub.agentRegistrations)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", string(data))
	require.Len(t, hub.descriptors, 1)
	assert.Equal(t, "27.1.0", hub.descriptors[0].Host.DockerVersion)
	assert.Equal(t, "test", hub.descriptors[0].Version)
}

func TestBootstrapBaselinePass(t *testing.T) {
	hub := newFakeHub()
	rt := &fakeRuntime{containers: []domains.ContainerRecord{rec("A"), rec("B")}}
	h := newHarness(t, filepath.Join(t.TempDir(), "config"), hub, rt)

	ident, ok, err := h.controller.Bootstrap(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, domains.AgentIdentity("agent-1"), ident)
	assert.Equal(t, []string{"A", "B"}, hub.registered)
	records := h.journal.all()
	require.Len(t, records, 1)
	assert.Equal(t, triggerBootstrap, records[0].Trigger)
	assert.Equal(t, 2, records[0].Registered)
}

func TestBootstrapUsesStoredIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("agent-7\n"), 0600))
	hub := newFakeHub()
	h := newHarness(t, path, hub, &fakeRuntime{})

	ident, ok, err := h.controller.Bootstrap(context.Background())
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Equal(t, domains.AgentIdentity("agent-7"), ident)
	assert.Zero(t, hub.agentRegistrations)
	assert.Empty(t, hub.registered, "no baseline pass for a known agent")
}

func TestBootstrapSaveFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	hub := newFakeHub()
	h := newHarness(t, filepath.Join(blocker, "config"), hub, &fakeRuntime{})

	err := h.run(t, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrConfigIO)
	assert.Equal(t, 1, hub.agentRegistrations)
}

func TestBootstrapRegisterFailureRetriesNextTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	hub := newFakeHub()
	hub.registerErr = errors.New("connection refused")
	rt := &fakeRuntime{containers: []domains.ContainerRecord{rec("A")}}
	h := newHarness(t, path, hub, rt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.controller.Run(ctx) }()

	// The startup attempt fails; clear the failure before the next tick
	waitFor(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return hub.agentRegistrations == 1
	})
	hub.mu.Lock()
	hub.registerErr = nil
	hub.mu.Unlock()

	h.ticker.ch <- time.Now()
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, hub.agentRegistrations)
	_, found := h.identities.Load()
	assert.True(t, found)
	assert.Equal(t, []string{"A"}, hub.registered)
}

func TestTickHeartbeatFailureStillReconciles(t *testing.T) {
	hub := newFakeHub()
	hub.heartbeatErr = errors.New("timeout")
	hub.hostFor["agent-1"] = testHost
	rt := &fakeRuntime{containers: []domains.ContainerRecord{rec("A")}}
	h := newHarness(t, filepath.Join(t.TempDir(), "config"), hub, rt)

	h.controller.Tick(context.Background(), "agent-1")

	assert.Equal(t, 1, hub.heartbeats)
	assert.Equal(t, []string{"A"}, hub.registered)
}

func TestTickHostFetchFailureSkipsPass(t *testing.T) {
	hub := newFakeHub()
	hub.hostErr = errors.New("502 bad gateway")
	rt := &fakeRuntime{containers: []domains.ContainerRecord{rec("A")}}
	h := newHarness(t, filepath.Join(t.TempDir(), "config"), hub, rt)

	h.controller.Tick(context.Background(), "agent-1")

	assert.Zero(t, rt.calls)
	assert.Empty(t, hub.registered)
	records := h.journal.all()
	require.Len(t, records, 1)
	assert.True(t, records[0].Aborted)
	require.NotNil(t, records[0].ErrorMsg)
}

func TestRunTicksFetchHostEveryTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("agent-1"), 0600))
	hub := newFakeHub()
	hub.hostFor["agent-1"] = testHost
	rt := &fakeRuntime{containers: []domains.ContainerRecord{rec("A")}}
	h := newHarness(t, path, hub, rt)

	require.NoError(t, h.run(t, 2))

	// initial tick plus two delivered ticks
	assert.Equal(t, 3, hub.heartbeats)
	assert.Equal(t, 3, hub.hostFetches)
	assert.Equal(t, []string{"A"}, hub.registered, "later ticks converge to no-ops")
	assert.True(t, h.ticker.stopped)
	assert.Len(t, h.journal.all(), 3)
}

func TestRunSurvivesRuntimeOutage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("agent-1"), 0600))
	hub := newFakeHub()
	hub.hostFor["agent-1"] = testHost
	hub.seed(testHost, hubRec("A", "u1"))
	rt := &fakeRuntime{err: errors.New("docker daemon unreachable")}
	h := newHarness(t, path, hub, rt)

	require.NoError(t, h.run(t, 1))

	assert.Empty(t, hub.deleted)
	for _, r := range h.journal.all() {
		assert.True(t, r.Aborted)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestBootstrapWaitsForRuntimeVersion(t *testing.T) {
	hub := newFakeHub()
	rt := &fakeRuntime{versionErr: errors.New("docker daemon unreachable")}
	h := newHarness(t, filepath.Join(t.TempDir(), "config"), hub, rt)

	_, ok, err := h.controller.Bootstrap(context.Background())
	require.NoError(t, err)

	assert.False(t, ok)
	assert.Zero(t, hub.agentRegistrations, "no descriptor without a docker version")
	_, found := h.identities.Load()
	assert.False(t, found)
}

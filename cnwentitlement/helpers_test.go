package cnwentitlement

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testWorkspaceURL = "https://chat.example.com"

var testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type testSigner struct {
	priv ed25519.PrivateKey
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &testSigner{priv: priv}
}

func (s *testSigner) seal(t *testing.T, doc any) string {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	token, err := SealEnvelope(s.priv, raw, true)
	require.NoError(t, err)
	return token
}

// v3 returns a V3-prefixed token for l.
func (s *testSigner) v3(t *testing.T, l License) string {
	return V3Prefix + s.seal(t, l)
}

func (s *testSigner) v2(t *testing.T, l LicenseV2) string {
	return s.seal(t, l)
}

func testLicense(id string, modules ...Module) License {
	granted := make([]GrantedModule, 0, len(modules))
	for _, m := range modules {
		granted = append(granted, GrantedModule{Module: m})
	}
	return License{
		Version:     LicenseVersion,
		Information: Information{ID: id},
		Validation: Validation{
			ServerURLs: []ServerURL{{Value: "chat.example.com", Type: ServerURLExact}},
		},
		GrantedModules: granted,
		Limits:         map[LimitKind][]LimitRule{},
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newEnforcedManager returns a Manager under PolicyEnforce with a fixed clock.
func newEnforcedManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	base := []ManagerOption{
		WithClock(func() time.Time { return testNow }),
		WithPolicy(PolicyEnforce),
	}
	m, err := NewManager(append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func newReadyManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	m := newEnforcedManager(t, opts...)
	require.NoError(t, m.SetWorkspaceURL(context.Background(), testWorkspaceURL))
	return m
}

// eventRecorder counts the events published on a Manager.
type eventRecorder struct {
	mu     sync.Mutex
	counts map[EventName]int
}

func recordEvents(m *Manager, names ...EventName) *eventRecorder {
	r := &eventRecorder{counts: make(map[EventName]int)}
	for _, name := range names {
		m.On(name, func(ev Event) {
			r.mu.Lock()
			r.counts[ev.Name]++
			r.mu.Unlock()
		})
	}
	return r
}

func (r *eventRecorder) count(name EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// countingCounter is a LimitCounter returning value and counting its calls.
type countingCounter struct {
	value atomic.Int64
	calls atomic.Int64
}

func newCountingCounter(value int) *countingCounter {
	c := &countingCounter{}
	c.value.Store(int64(value))
	return c
}

func (c *countingCounter) count(context.Context, LimitContext) (int, error) {
	c.calls.Add(1)
	return int(c.value.Load()), nil
}

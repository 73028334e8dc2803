package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-player/internal/show"
	"kiosk-player/internal/system"
)

type staticZones []show.Status

func (z staticZones) Statuses(context.Context) []show.Status { return z }

func fixedHealth(context.Context) system.HealthStatus {
	return system.HealthStatus{CPUTempC: 48.5, DiskUsedPct: 12}
}

func writeIdentity(t *testing.T, cfg Config) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

type heartbeatServer struct {
	*httptest.Server
	mu     sync.Mutex
	beats  []Heartbeat
	status int
}

func newHeartbeatServer(t *testing.T) *heartbeatServer {
	hs := &heartbeatServer{status: http.StatusOK}
	hs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/heartbeat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var hb Heartbeat
		if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		hs.mu.Lock()
		hs.beats = append(hs.beats, hb)
		status := hs.status
		hs.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(hs.Close)
	return hs
}

func (hs *heartbeatServer) received() []Heartbeat {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return append([]Heartbeat(nil), hs.beats...)
}

func TestNewClientLoadsIdentity(t *testing.T) {
	path := writeIdentity(t, Config{ID: "p-1", Key: "k", Endpoint: "http://example.test/"})
	c := NewClient(path, "1.0.0", Options{})

	id := c.Identity()
	assert.Equal(t, "p-1", id.ID)
	assert.Equal(t, "http://example.test", id.Endpoint)
	assert.Equal(t, 60, id.Interval)
	assert.Equal(t, DefaultInterval, c.interval())
}

func TestSendUnregistered(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.json"), "1.0.0", Options{Health: fixedHealth})
	assert.ErrorIs(t, c.Send(context.Background()), ErrUnregistered)
}

func TestSendPayload(t *testing.T) {
	hs := newHeartbeatServer(t)
	path := writeIdentity(t, Config{ID: "p-1", Key: "secret", Endpoint: hs.URL})

	c := NewClient(path, "1.2.3", Options{
		Zones:  staticZones{{Zone: "main", Items: 4, Playing: true}},
		Health: fixedHealth,
	})
	require.NoError(t, c.Send(context.Background()))

	beats := hs.received()
	require.Len(t, beats, 1)
	hb := beats[0]
	assert.Equal(t, "p-1", hb.ID)
	assert.Equal(t, "secret", hb.Key)
	assert.Equal(t, "1.2.3", hb.Version)
	require.NotNil(t, hb.Health)
	assert.Equal(t, 48.5, hb.Health.CPUTempC)
	require.Len(t, hb.Zones, 1)
	assert.Equal(t, "main", hb.Zones[0].Zone)
	assert.Equal(t, 4, hb.Zones[0].Items)
}

func TestSendReportsServerErrors(t *testing.T) {
	hs := newHeartbeatServer(t)
	hs.status = http.StatusInternalServerError
	path := writeIdentity(t, Config{ID: "p-1", Endpoint: hs.URL})

	c := NewClient(path, "1.0.0", Options{Health: fixedHealth})
	assert.Error(t, c.Send(context.Background()))
}

func TestRunSendsImmediatelyAndStops(t *testing.T) {
	hs := newHeartbeatServer(t)
	path := writeIdentity(t, Config{ID: "p-1", Endpoint: hs.URL, Interval: 3600})
	c := NewClient(path, "1.0.0", Options{Health: fixedHealth})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(hs.received()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Len(t, hs.received(), 1)
}

func TestReloadConfig(t *testing.T) {
	path := writeIdentity(t, Config{ID: "old"})
	c := NewClient(path, "1.0.0", Options{Health: fixedHealth})
	assert.Equal(t, "old", c.Identity().ID)

	data, err := json.Marshal(Config{ID: "new", Interval: 5})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	require.NoError(t, c.ReloadConfig())
	assert.Equal(t, "new", c.Identity().ID)
	assert.Equal(t, 5*time.Second, c.interval())
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-player/internal/config"
	"kiosk-player/internal/media"
	"kiosk-player/internal/motion"
	"kiosk-player/internal/player"
	"kiosk-player/internal/settings"
	"kiosk-player/internal/show"
	"kiosk-player/internal/template"
)

// mockZones is a test helper that implements the Zones interface
type mockZones struct {
	zones    map[string]template.Zone
	ids      []string
	advanced []string
	gestures []string
	callErr  error
}

func newMockZones() *mockZones {
	return &mockZones{
		ids: []string{"main", "footer"},
		zones: map[string]template.Zone{
			"main":   {ID: "main", Width: 100, Height: 85, Source: "/media/main"},
			"footer": {ID: "footer", Y: 85, Width: 100, Height: 15, Source: "/media/footer", Zindex: 1},
		},
	}
}

func (m *mockZones) lookup(id string) error {
	if _, ok := m.zones[id]; !ok {
		return fmt.Errorf("%w: %s", player.ErrZoneNotFound, id)
	}
	return m.callErr
}

func (m *mockZones) Zones() []string { return m.ids }

func (m *mockZones) ZoneInfo(id string) (template.Zone, error) {
	z, ok := m.zones[id]
	if !ok {
		return template.Zone{}, fmt.Errorf("%w: %s", player.ErrZoneNotFound, id)
	}
	return z, nil
}

func (m *mockZones) Scene(_ context.Context, id string) (show.Scene, error) {
	if err := m.lookup(id); err != nil {
		return show.Scene{}, err
	}
	return show.Scene{
		Zone:    id,
		Session: "s1",
		Mode:    motion.Slide,
		Layers: []show.Layer{{
			Key:  "image:a.jpg",
			Role: show.RoleShown,
			Item: media.NewItem("a.jpg"),
		}},
	}, nil
}

func (m *mockZones) Status(_ context.Context, id string) (show.Status, error) {
	if err := m.lookup(id); err != nil {
		return show.Status{}, err
	}
	return show.Status{Zone: id, Items: 3, Playing: true, Commits: 7}, nil
}

func (m *mockZones) Items(_ context.Context, id string) ([]media.Item, error) {
	if err := m.lookup(id); err != nil {
		return nil, err
	}
	if id == "footer" {
		return nil, nil
	}
	return []media.Item{media.NewItem("b.mp4"), media.NewItem("a.jpg")}, nil
}

func (m *mockZones) Advance(_ context.Context, id string) error {
	if err := m.lookup(id); err != nil {
		return err
	}
	m.advanced = append(m.advanced, id)
	return nil
}

func (m *mockZones) Gesture(_ context.Context, id string) error {
	if err := m.lookup(id); err != nil {
		return err
	}
	m.gestures = append(m.gestures, id)
	return nil
}

type mockHealth struct{ err error }

func (m mockHealth) Health(context.Context) error { return m.err }

type testRig struct {
	zones  *mockZones
	store  *settings.Store
	router http.Handler
}

func setupTestServer(t *testing.T, db HealthChecker) *testRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rig := &testRig{
		zones: newMockZones(),
		store: settings.NewStore(settings.Defaults(), nil),
	}
	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Zones:   rig.zones,
		Store:   rig.store,
		DB:      db,
		Version: "test",
	})
	rig.router = srv.Handler()
	return rig
}

func (r *testRig) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		rig := setupTestServer(t, nil)
		w := rig.do(http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[HealthResponse](t, w)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "disabled", resp.Database)
		assert.Equal(t, 2, resp.Zones)
		assert.Equal(t, "test", resp.Version)
	})

	t.Run("healthy database", func(t *testing.T) {
		rig := setupTestServer(t, mockHealth{})
		w := rig.do(http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", decode[HealthResponse](t, w).Database)
	})

	t.Run("unhealthy database", func(t *testing.T) {
		rig := setupTestServer(t, mockHealth{err: errors.New("disk gone")})
		w := rig.do(http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decode[HealthResponse](t, w)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "disk gone", resp.Details["database_error"])
	})
}

func TestGetSettings(t *testing.T) {
	rig := setupTestServer(t, nil)
	w := rig.do(http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["playing"])
	assert.Equal(t, "crossfade", body["transition"])
	assert.Equal(t, 5.0, body["intervalSec"])
}

func TestUpdateSettings(t *testing.T) {
	rig := setupTestServer(t, nil)

	var notified []settings.Settings
	rig.store.Subscribe(func(s settings.Settings) { notified = append(notified, s) })

	w := rig.do(http.MethodPut, "/api/settings", map[string]any{
		"transition": "flip",
		"shuffle":    true,
		"seed":       42,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[settings.Settings](t, w)
	assert.Equal(t, motion.Flip, got.Transition)
	assert.True(t, got.Shuffle)
	assert.Equal(t, uint32(42), got.Seed)
	assert.True(t, got.Playing, "unset fields are unchanged")
	assert.Equal(t, got, rig.store.Get())
	require.Len(t, notified, 1)
}

func TestUpdateSettingsClampsInterval(t *testing.T) {
	rig := setupTestServer(t, nil)

	w := rig.do(http.MethodPut, "/api/settings", `{"intervalSec": 0.1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, settings.MinIntervalSec, decode[settings.Settings](t, w).IntervalSec)
}

func TestUpdateSettingsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"unknown transition", `{"transition": "wipe"}`, "invalid_transition"},
		{"malformed json", `{"playing": `, "invalid_request"},
		{"wrong type", `{"playing": "yes"}`, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := setupTestServer(t, nil)
			before := rig.store.Get()

			w := rig.do(http.MethodPut, "/api/settings", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, w).Error)
			assert.Equal(t, before, rig.store.Get())
		})
	}
}

func TestPlayPause(t *testing.T) {
	rig := setupTestServer(t, nil)

	w := rig.do(http.MethodPost, "/api/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[settings.Settings](t, w).Playing)
	assert.False(t, rig.store.Get().Playing)

	w = rig.do(http.MethodPost, "/api/play", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, rig.store.Get().Playing)
}

func TestListZones(t *testing.T) {
	rig := setupTestServer(t, nil)

	w := rig.do(http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, w.Code)

	zones := decode[[]ZoneResponse](t, w)
	require.Len(t, zones, 2)
	assert.Equal(t, "main", zones[0].ID)
	assert.Equal(t, "/media/main", zones[0].Source)
	require.NotNil(t, zones[0].Status)
	assert.Equal(t, uint64(7), zones[0].Status.Commits)
	assert.Equal(t, "footer", zones[1].ID)
	assert.Equal(t, 85, zones[1].Y)
}

func TestZoneScene(t *testing.T) {
	rig := setupTestServer(t, nil)

	w := rig.do(http.MethodGet, "/api/zones/main/scene", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sc := decode[show.Scene](t, w)
	assert.Equal(t, "main", sc.Zone)
	assert.Equal(t, motion.Slide, sc.Mode)
	require.Len(t, sc.Layers, 1)
	assert.Equal(t, show.RoleShown, sc.Layers[0].Role)
	assert.Equal(t, media.Image, sc.Layers[0].Item.Kind)
}

func TestZoneStatusAndItems(t *testing.T) {
	rig := setupTestServer(t, nil)

	w := rig.do(http.MethodGet, "/api/zones/main/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[show.Status](t, w).Items)

	w = rig.do(http.MethodGet, "/api/zones/main/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[ItemsResponse](t, w)
	require.Len(t, items.Items, 2)
	assert.Equal(t, "b.mp4", items.Items[0].Source)
	assert.Equal(t, media.Video, items.Items[0].Kind)

	w = rig.do(http.MethodGet, "/api/zones/footer/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"zone":"footer","items":[]}`, w.Body.String())
}

func TestZoneCommands(t *testing.T) {
	rig := setupTestServer(t, nil)

	w := rig.do(http.MethodPost, "/api/zones/main/advance", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = rig.do(http.MethodPost, "/api/zones/footer/gesture", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	assert.Equal(t, []string{"main"}, rig.zones.advanced)
	assert.Equal(t, []string{"footer"}, rig.zones.gestures)
}

func TestZoneNotFound(t *testing.T) {
	rig := setupTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/zones/nope/scene"},
		{http.MethodGet, "/api/zones/nope/status"},
		{http.MethodGet, "/api/zones/nope/items"},
		{http.MethodPost, "/api/zones/nope/advance"},
		{http.MethodPost, "/api/zones/nope/gesture"},
	} {
		w := rig.do(tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
		assert.Equal(t, "zone_not_found", decode[ErrorResponse](t, w).Error)
	}
	assert.Empty(t, rig.zones.advanced)
}

func TestZoneTimeout(t *testing.T) {
	rig := setupTestServer(t, nil)
	rig.zones.callErr = context.DeadlineExceeded

	w := rig.do(http.MethodGet, "/api/zones/main/status", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "zone_busy", decode[ErrorResponse](t, w).Error)

	// zones that do not answer are listed without a status
	w = rig.do(http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, w.Code)
	zones := decode[[]ZoneResponse](t, w)
	require.Len(t, zones, 2)
	for _, z := range zones {
		assert.Nil(t, z.Status)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Zones: newMockZones(),
		Store: settings.NewStore(settings.Defaults(), nil),
	})
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.ErrorIs(t, srv.Start(), http.ErrServerClosed)
}

package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"fullscreen", "l-shape", "main-with-footer", "main-with-sidebar"}, PresetNames())

	for _, name := range PresetNames() {
		tpl, err := Preset(name, "/media/main")
		require.NoError(t, err, name)
		assert.Equal(t, name, tpl.Name)
		for _, z := range tpl.Zones {
			assert.Equal(t, "/media/main", z.Source, "%s/%s", name, z.ID)
		}
	}
}

func TestPresetAssignsSourcesInOrder(t *testing.T) {
	tpl, err := Preset("l-shape", "/media/main", "s3://bucket/side", "https://cdn.example.com/footer.json")
	require.NoError(t, err)

	side, ok := tpl.Zone("sidebar")
	require.True(t, ok)
	assert.Equal(t, "s3://bucket/side", side.Source)
	footer, _ := tpl.Zone("footer")
	assert.Equal(t, "https://cdn.example.com/footer.json", footer.Source)

	_, ok = tpl.Zone("missing")
	assert.False(t, ok)
}

func TestPresetErrors(t *testing.T) {
	_, err := Preset("mosaic", "/media")
	assert.ErrorIs(t, err, ErrUnknownPreset)

	_, err = Preset("fullscreen")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]Template{
		"no zones":     {Name: "empty"},
		"missing id":   {Zones: []Zone{{Width: 10, Height: 10, Source: "/m"}}},
		"no source":    {Zones: []Zone{{ID: "a", Width: 10, Height: 10}}},
		"zero size":    {Zones: []Zone{{ID: "a", Height: 10, Source: "/m"}}},
		"out of bound": {Zones: []Zone{{ID: "a", X: 50, Width: 60, Height: 10, Source: "/m"}}},
		"duplicate id": {Zones: []Zone{
			{ID: "a", Width: 10, Height: 10, Source: "/m"},
			{ID: "a", Width: 10, Height: 10, Source: "/m"},
		}},
	}
	for name, tpl := range cases {
		assert.Error(t, tpl.Validate(), name)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "split",
		"zones": [
			{"id": "top", "x": 0, "y": 0, "width": 100, "height": 50, "source": "/media/top", "zindex": 1},
			{"id": "bottom", "x": 0, "y": 50, "width": 100, "height": 50, "source": "s3://bucket/bottom"}
		]
	}`), 0o644))

	tpl, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, tpl.Zones, 2)

	ordered := tpl.Ordered()
	assert.Equal(t, "bottom", ordered[0].ID)
	assert.Equal(t, "top", ordered[1].ID)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestZonePixels(t *testing.T) {
	tpl, err := Preset("main-with-sidebar", "/m")
	require.NoError(t, err)
	side, _ := tpl.Zone("sidebar")
	assert.Equal(t, Rect{X: 1440, Y: 0, Width: 480, Height: 1080}, side.Pixels(1920, 1080))
}

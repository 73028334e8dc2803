// Package template defines screen layout templates. Each template divides
// the screen into rectangular zones, and every zone runs its own
// slideshow from its own media source.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
)

// ErrUnknownPreset is returned by Preset for an unregistered layout name.
var ErrUnknownPreset = errors.New("unknown layout preset")

// Zone represents a rectangular region of the screen.
// Coordinates are percentages (0-100) of total screen area.
type Zone struct {
	ID     string `json:"id" validate:"required"`
	X      int    `json:"x" validate:"gte=0,lte=100"`
	Y      int    `json:"y" validate:"gte=0,lte=100"`
	Width  int    `json:"width" validate:"gt=0,lte=100"`
	Height int    `json:"height" validate:"gt=0,lte=100"`
	// Source is a directory, an http(s) JSON list URL or s3://bucket/prefix.
	Source string `json:"source" validate:"required"`
	Zindex int    `json:"zindex"`
}

// Rect is a zone's geometry in pixels.
type Rect struct {
	X, Y, Width, Height int
}

// Pixels converts the zone's percentages to pixels on a screen of the
// given size.
func (z Zone) Pixels(screenW, screenH int) Rect {
	return Rect{
		X:      screenW * z.X / 100,
		Y:      screenH * z.Y / 100,
		Width:  screenW * z.Width / 100,
		Height: screenH * z.Height / 100,
	}
}

// Template is a named screen layout with one or more zones.
type Template struct {
	Name  string `json:"name"`
	Zones []Zone `json:"zones" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFromFile reads a template definition from a JSON file.
func LoadFromFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return &t, nil
}

// Validate checks that the template has at least one zone, that zone ids
// are unique and that every zone fits on the screen.
func (t *Template) Validate() error {
	if len(t.Zones) == 0 {
		return fmt.Errorf("template %q has no zones", t.Name)
	}
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}

	ids := make(map[string]bool)
	for _, z := range t.Zones {
		if ids[z.ID] {
			return fmt.Errorf("duplicate zone id: %s", z.ID)
		}
		ids[z.ID] = true

		if z.X+z.Width > 100 || z.Y+z.Height > 100 {
			return fmt.Errorf("zone %q exceeds screen bounds", z.ID)
		}
	}
	return nil
}

// Zone returns the zone with the given id.
func (t *Template) Zone(id string) (Zone, bool) {
	for _, z := range t.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// Ordered returns the zones from bottom to top.
func (t *Template) Ordered() []Zone {
	zones := append([]Zone(nil), t.Zones...)
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Zindex < zones[j].Zindex })
	return zones
}

// preset is a layout without sources. Sources are assigned to zones in
// declaration order.
type preset []Zone

var presets = map[string]preset{
	"fullscreen": {
		{ID: "main", Width: 100, Height: 100},
	},
	"main-with-footer": {
		{ID: "main", Width: 100, Height: 85},
		{ID: "footer", Y: 85, Width: 100, Height: 15, Zindex: 1},
	},
	"main-with-sidebar": {
		{ID: "main", Width: 75, Height: 100},
		{ID: "sidebar", X: 75, Width: 25, Height: 100, Zindex: 1},
	},
	"l-shape": {
		{ID: "main", Width: 75, Height: 85},
		{ID: "sidebar", X: 75, Width: 25, Height: 100, Zindex: 1},
		{ID: "footer", Y: 85, Width: 75, Height: 15, Zindex: 2},
	},
}

// PresetNames lists the built-in layouts.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preset builds a built-in layout. sources are assigned to zones in
// order; missing ones reuse the first source so every zone plays
// something.
func Preset(name string, sources ...string) (*Template, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("layout %q needs at least one source", name)
	}
	t := &Template{Name: name, Zones: make([]Zone, len(p))}
	for i, z := range p {
		z.Source = sources[0]
		if i < len(sources) && sources[i] != "" {
			z.Source = sources[i]
		}
		t.Zones[i] = z
	}
	return t, t.Validate()
}

// Fullscreen returns a single-zone template that fills the entire screen.
func Fullscreen(source string) *Template {
	t, _ := Preset("fullscreen", source)
	return t
}

// Package vlc provides the playback surfaces zone engines drive.
// On RPi5 (linux/arm64) each surface is a libVLC player rendering via
// DRM/KMS. On other platforms each surface runs VLC as a subprocess for
// development testing.
package vlc

import (
	"errors"
	"os"
	"strings"

	"kiosk-player/internal/media"
	"kiosk-player/internal/surface"
	"kiosk-player/internal/template"
)

var errNotAttached = errors.New("no media attached")

// Config places one surface on screen.
type Config struct {
	Zone string
	Rect template.Rect
	// Fullscreen is set when the zone covers the whole screen.
	Fullscreen bool
	// Binary overrides the VLC executable for the subprocess surface.
	Binary string
}

// ZoneConfig derives a surface config from a template zone.
func ZoneConfig(z template.Zone, screenW, screenH int) Config {
	return Config{
		Zone:       z.ID,
		Rect:       z.Pixels(screenW, screenH),
		Fullscreen: z.X == 0 && z.Y == 0 && z.Width >= 100 && z.Height >= 100,
	}
}

// NewSurface creates a playback surface for the platform.
func NewSurface(cfg Config) (surface.Surface, error) {
	return newSurface(cfg)
}

// Shutdown releases process-wide playback resources. Call it after every
// surface has been released.
func Shutdown() {
	shutdown()
}

// checkSource is the cheap existence check behind Load: local files must
// exist, URLs are left to the player.
func checkSource(item media.Item) error {
	if item.IsRemote() {
		return nil
	}
	_, err := os.Stat(strings.TrimPrefix(item.Source, "file://"))
	return err
}

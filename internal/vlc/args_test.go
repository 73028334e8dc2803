package vlc

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kiosk-player/internal/media"
	"kiosk-player/internal/template"
)

func TestMediaArgs(t *testing.T) {
	img := mediaArgs(media.Item{Kind: media.Image, Source: "/m/a.jpg"}, 0)
	assert.Contains(t, img, "--image-duration=-1")
	assert.Contains(t, img, "--no-audio")
	assert.NotContains(t, img, "--play-and-exit")

	vid := mediaArgs(media.Item{Kind: media.Video, Source: "/m/b.mp4", Muted: true}, 1500*time.Millisecond)
	assert.Contains(t, vid, "--play-and-exit")
	assert.Contains(t, vid, "--start-time=1.500")
	assert.Contains(t, vid, "--no-audio")

	loud := mediaArgs(media.Item{Kind: media.Video, Source: "/m/b.mp4"}, 0)
	assert.NotContains(t, loud, "--no-audio")
	for _, a := range loud {
		assert.NotContains(t, a, "--start-time")
	}
}

func TestBuildArgsEndsWithSource(t *testing.T) {
	item := media.Item{Kind: media.Video, Source: "/m/b.mp4"}
	args := buildArgs(item, Config{Fullscreen: true}, 0)
	assert.Equal(t, "/m/b.mp4", args[len(args)-1])
}

func TestWindowsArgsGeometry(t *testing.T) {
	item := media.Item{Kind: media.Image, Source: `C:\m\a.jpg`}

	full := buildWindowsArgs(item, Config{Fullscreen: true}, 0)
	assert.Contains(t, full, "--fullscreen")

	tpl, err := template.Preset("main-with-footer", "/m")
	assert.NoError(t, err)
	footer, _ := tpl.Zone("footer")
	cfg := ZoneConfig(footer, 1920, 1080)
	assert.False(t, cfg.Fullscreen)

	args := buildWindowsArgs(item, cfg, 0)
	assert.Contains(t, args, "--width=1920")
	assert.Contains(t, args, "--height=162")
	assert.Contains(t, args, "--video-y=918")
	assert.NotContains(t, args, "--fullscreen")
}

func TestZoneConfigFullscreen(t *testing.T) {
	cfg := ZoneConfig(template.Fullscreen("/m").Zones[0], 1280, 720)
	assert.True(t, cfg.Fullscreen)
	assert.Equal(t, template.Rect{Width: 1280, Height: 720}, cfg.Rect)

	if runtime.GOOS == "linux" {
		args := buildArgs(media.Item{Kind: media.Image, Source: "/m/a.jpg"}, cfg, 0)
		assert.Contains(t, args, "--aout=alsa")
	}
}

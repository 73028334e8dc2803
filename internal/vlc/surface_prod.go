//go:build linux && arm64

// Production surface: CGO bindings to libVLC with RPi5 hardware
// acceleration. Each surface owns one libVLC media player; libVLC events
// are forwarded as surface events.
package vlc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	libvlc "github.com/adrg/libvlc-go/v3"
	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/media"
	"kiosk-player/internal/surface"
)

var (
	vlcInitOnce sync.Once
	vlcInitErr  error
)

// initLibVLC initializes libVLC once for all surfaces.
func initLibVLC() error {
	vlcInitOnce.Do(func() {
		vlcInitErr = libvlc.Init(
			// --- RPi5 Hardware Acceleration ---
			"--vout=mmal_vout",     // MMAL video output, bypasses the desktop compositor
			"--codec=mmal_decoder", // MMAL hardware decoder for H.264/HEVC
			"--no-xlib",            // Skip X11, render via DRM/KMS directly

			// --- Display ---
			"--no-osd",
			"--no-dbus",
			"--no-video-title-show",

			// --- Audio ---
			"--aout=alsa",

			// --- Buffering (prevents stutter on 4K streams) ---
			"--file-caching=5000",
			"--network-caching=3000",
			"--clock-jitter=0",
			"--clock-synchro=0",

			// --- Quality Preservation ---
			"--no-drop-late-frames",
			"--no-skip-frames",
			"--avcodec-skiploopfilter=0",
			"--deinterlace=0",

			// images stay until the engine replaces them
			"--image-duration=-1",

			"--quiet",
		)
	})
	return vlcInitErr
}

type prodSurface struct {
	surface.Emitter

	cfg    Config
	log    zerolog.Logger
	player *libvlc.Player
	events *libvlc.EventManager
	ids    []libvlc.EventID

	mu       sync.Mutex
	media    *libvlc.Media
	item     media.Item
	attached bool
}

var forwarded = map[libvlc.Event]surface.Event{
	libvlc.MediaPlayerVout:             surface.Frame,
	libvlc.MediaPlayerPlaying:          surface.Playing,
	libvlc.MediaPlayerTimeChanged:      surface.TimeUpdate,
	libvlc.MediaPlayerEndReached:       surface.Ended,
	libvlc.MediaPlayerEncounteredError: surface.Error,
}

func newSurface(cfg Config) (surface.Surface, error) {
	if err := initLibVLC(); err != nil {
		return nil, fmt.Errorf("libvlc init failed: %w", err)
	}

	player, err := libvlc.NewPlayer()
	if err != nil {
		return nil, fmt.Errorf("player creation failed: %w", err)
	}
	events, err := player.EventManager()
	if err != nil {
		player.Release()
		return nil, fmt.Errorf("player event manager: %w", err)
	}

	s := &prodSurface{
		cfg:    cfg,
		log:    logger.Component("vlc").With().Str("zone", cfg.Zone).Logger(),
		player: player,
		events: events,
	}
	for vlcEvent, ev := range forwarded {
		ev := ev
		// libVLC forbids calling back into the player from its event
		// thread, so handlers run on their own goroutine.
		id, err := events.Attach(vlcEvent, func(libvlc.Event, interface{}) { go s.Emit(ev) }, nil)
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("attach %s handler: %w", ev, err)
		}
		s.ids = append(s.ids, id)
	}

	if cfg.Fullscreen {
		_ = player.SetFullScreen(true)
	}
	s.log.Info().Msg("libVLC surface initialized")
	return s, nil
}

func shutdown() {
	if err := libvlc.Release(); err != nil {
		log := logger.Component("vlc")
		log.Warn().Err(err).Msg("libvlc release failed")
	}
}

// Attach loads the media into the player. Nothing is output until Play,
// images included.
func (s *prodSurface) Attach(item media.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.player.Stop()
	var (
		m   *libvlc.Media
		err error
	)
	if item.IsRemote() {
		m, err = s.player.LoadMediaFromURL(item.Source)
	} else {
		m, err = s.player.LoadMediaFromPath(strings.TrimPrefix(item.Source, "file://"))
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", item.Source, err)
	}
	if item.Muted || item.IsImage() {
		_ = m.AddOptions(":no-audio")
	}
	s.releaseMediaLocked()
	s.media, s.item, s.attached = m, item, true
	return nil
}

// Load reports CanPlay once the source is reachable; libVLC opens media
// lazily on the first Play.
func (s *prodSurface) Load() error {
	s.mu.Lock()
	item, ok := s.item, s.attached
	s.mu.Unlock()
	if !ok {
		return errNotAttached
	}
	go func() {
		if err := checkSource(item); err != nil {
			s.log.Warn().Err(err).Str("src", item.Source).Msg("media not loadable")
			s.Emit(surface.Error)
			return
		}
		s.Emit(surface.CanPlay)
	}()
	return nil
}

func (s *prodSurface) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return errNotAttached
	}
	return s.player.Play()
}

func (s *prodSurface) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return nil
	}
	return s.player.SetPause(true)
}

func (s *prodSurface) SeekStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return errNotAttached
	}
	return s.player.SetMediaTime(0)
}

func (s *prodSurface) Position() (time.Duration, error) {
	ms, err := s.player.MediaTime()
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (s *prodSurface) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.player.Stop()
	s.releaseMediaLocked()
	s.item, s.attached = media.Item{}, false
	return err
}

func (s *prodSurface) FrameCallbacks() bool { return true }

func (s *prodSurface) Release() {
	_ = s.Detach()
	if s.events != nil && len(s.ids) > 0 {
		s.events.Detach(s.ids...)
		s.ids = nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Release()
		s.player = nil
	}
	s.log.Debug().Msg("surface released")
}

// releaseMediaLocked drops our reference; the player keeps its own.
func (s *prodSurface) releaseMediaLocked() {
	if s.media != nil {
		s.media.Release()
		s.media = nil
	}
}

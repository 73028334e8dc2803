//go:build !(linux && arm64)

// Development surface: one VLC subprocess per playing item. Pausing
// kills the process and remembers the position; playing again restarts
// it with --start-time. No CGO required.
package vlc

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/media"
	"kiosk-player/internal/surface"
)

type devSurface struct {
	surface.Emitter

	cfg     Config
	vlcPath string
	// pre is prepended to the VLC arguments.
	pre      []string
	position bool
	log      zerolog.Logger

	mu        sync.Mutex
	item      media.Item
	attached  bool
	cmd       *exec.Cmd
	run       uint64
	running   bool
	startedAt time.Time
	offset    time.Duration
}

func newSurface(cfg Config) (surface.Surface, error) {
	path := cfg.Binary
	if path == "" {
		var err error
		if path, err = findVLC(); err != nil {
			return nil, err
		}
	}
	s := newDevSurface(cfg, path)
	s.position = runtime.GOOS == "linux"
	s.log.Info().Str("vlc", path).Msg("development surface: VLC subprocess per item")
	return s, nil
}

func newDevSurface(cfg Config, path string) *devSurface {
	return &devSurface{
		cfg:     cfg,
		vlcPath: path,
		log:     logger.Component("vlc").With().Str("zone", cfg.Zone).Logger(),
	}
}

func shutdown() {}

// Attach stops whatever was playing. VLC is not launched until Play,
// images included.
func (s *devSurface) Attach(item media.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.item, s.attached, s.offset = item, true, 0
	return nil
}

func (s *devSurface) Load() error {
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

func (s *devSurface) Play() error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		return nil
	}
	return s.start()
}

func (s *devSurface) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.offset += time.Since(s.startedAt)
		s.stopLocked()
	}
	return nil
}

func (s *devSurface) SeekStart() error {
	s.mu.Lock()
	wasRunning := s.running
	s.stopLocked()
	s.offset = 0
	s.mu.Unlock()
	if wasRunning {
		return s.start()
	}
	return nil
}

func (s *devSurface) Position() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.offset + time.Since(s.startedAt), nil
	}
	return s.offset, nil
}

func (s *devSurface) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.item, s.attached, s.offset = media.Item{}, false, 0
	return nil
}

func (s *devSurface) FrameCallbacks() bool { return false }

func (s *devSurface) Release() {
	_ = s.Detach()
	s.log.Debug().Msg("surface released")
}

// start launches VLC for the attached item at the remembered offset.
func (s *devSurface) start() error {
	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return errNotAttached
	}
	args := append(slices.Clone(s.pre), buildArgs(s.item, s.cfg, s.offset)...)
	cmd := exec.Command(s.vlcPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" {
		cmd.Env = append(os.Environ(), "DISPLAY=:0")
	}

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("vlc start failed: %w", err)
	}
	s.run++
	run := s.run
	s.cmd, s.running, s.startedAt = cmd, true, time.Now()
	item := s.item
	s.mu.Unlock()

	s.log.Debug().Str("src", item.Source).Int("pid", cmd.Process.Pid).Msg("vlc started")
	if s.position {
		go positionWindow(s.log, cmd.Process.Pid, s.cfg)
	}
	go s.wait(cmd, run)
	s.Emit(surface.Playing)
	return nil
}

// wait reports Ended when VLC exits on its own. Processes we killed were
// superseded and stay silent.
func (s *devSurface) wait(cmd *exec.Cmd, run uint64) {
	err := cmd.Wait()

	s.mu.Lock()
	natural := s.run == run && s.running
	if natural {
		s.cmd, s.running, s.offset = nil, false, 0
	}
	src := s.item.Source
	s.mu.Unlock()

	if !natural {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("src", src).Msg("vlc exited with error")
	}
	s.Emit(surface.Ended)
}

func (s *devSurface) stopLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		s.run++
		_ = s.cmd.Process.Kill()
	}
	s.cmd, s.running = nil, false
}

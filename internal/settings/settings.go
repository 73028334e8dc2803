// Package settings holds the live slideshow settings shared by every zone:
// play/pause, the image interval, the transition mode and the playback
// order options. Values are clamped, never rejected.
package settings

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/motion"
)

const (
	MinIntervalSec     = 0.5
	DefaultIntervalSec = 5
	DefaultSeed        = 1
)

// Settings is one snapshot of the live settings.
type Settings struct {
	Playing     bool        `json:"playing"`
	IntervalSec float64     `json:"intervalSec"`
	Transition  motion.Mode `json:"transition"`
	Shuffle     bool        `json:"shuffle"`
	Seed        uint32      `json:"seed"`
	KenBurns    bool        `json:"kenBurns"`
}

// Defaults returns the settings a fresh install starts with.
func Defaults() Settings {
	return Settings{
		Playing:     true,
		IntervalSec: DefaultIntervalSec,
		Transition:  motion.Crossfade,
		Seed:        DefaultSeed,
		KenBurns:    true,
	}
}

// Normalize clamps out-of-range values.
func (s Settings) Normalize() Settings {
	if math.IsNaN(s.IntervalSec) || s.IntervalSec < MinIntervalSec {
		s.IntervalSec = MinIntervalSec
	}
	if math.IsInf(s.IntervalSec, 1) {
		s.IntervalSec = math.MaxFloat64 // keeps the value JSON-encodable
	}
	if s.Transition < motion.Crossfade || s.Transition > motion.Pan {
		s.Transition = motion.Crossfade
	}
	return s
}

// Interval is the image advance period, never shorter than 500ms. There
// is no upper bound beyond what a time.Duration can hold.
func (s Settings) Interval() time.Duration {
	if math.IsNaN(s.IntervalSec) || s.IntervalSec < MinIntervalSec {
		return 500 * time.Millisecond
	}
	ns := s.IntervalSec * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// Repository persists settings between restarts.
type Repository interface {
	// Load returns the stored settings; ok is false when none are stored.
	Load(ctx context.Context) (s Settings, ok bool, err error)
	Save(ctx context.Context, s Settings) error
}

// Store is the goroutine-safe owner of the live settings. Subscribers are
// called synchronously after every change, outside the lock.
type Store struct {
	mu     sync.RWMutex
	cur    Settings
	seq    uint64 // bumped by every change, under mu
	repo   Repository
	subs   map[int]func(Settings)
	nextID int

	// pub serializes notification and persistence. It is never taken
	// while holding mu, so readers are not blocked by a slow Save.
	pub       sync.Mutex
	published uint64
	log       zerolog.Logger
}

// NewStore creates a store holding initial. repo may be nil.
func NewStore(initial Settings, repo Repository) *Store {
	return &Store{
		cur:  initial.Normalize(),
		repo: repo,
		subs: make(map[int]func(Settings)),
		log:  logger.Component("settings"),
	}
}

// Restore replaces the current settings with the persisted ones, if any.
func (s *Store) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	stored, ok, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return s.repo.Save(ctx, s.Get())
	}
	s.mu.Lock()
	s.cur = stored.Normalize()
	s.mu.Unlock()
	s.log.Info().Interface("settings", stored).Msg("restored persisted settings")
	return nil
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update applies fn to a copy of the current settings, clamps the result,
// notifies subscribers and persists it. The new value is live even when
// persisting fails. When updates race, a change that has already been
// superseded by the time it gets to publish is skipped, so subscribers and
// the repository never go back to an older value.
func (s *Store) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	next := s.cur
	fn(&next)
	next = next.Normalize()
	if next == s.cur {
		s.mu.Unlock()
		return next, nil
	}
	s.cur = next
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.pub.Lock()
	defer s.pub.Unlock()
	if seq <= s.published {
		return next, nil
	}
	s.published = seq

	s.log.Debug().Interface("settings", next).Msg("settings changed")
	for _, sub := range s.subscribers() {
		sub(next)
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, next); err != nil {
			return next, err
		}
	}
	return next, nil
}

func (s *Store) subscribers() []func(Settings) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := make([]func(Settings), 0, len(s.subs))
	for id := 0; id <= s.nextID; id++ {
		if sub, ok := s.subs[id]; ok {
			subs = append(subs, sub)
		}
	}
	return subs
}

// SetPlaying is the play/pause change request entry point.
func (s *Store) SetPlaying(ctx context.Context, playing bool) (Settings, error) {
	return s.Update(ctx, func(st *Settings) { st.Playing = playing })
}

// Subscribe registers fn for future changes.
func (s *Store) Subscribe(fn func(Settings)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

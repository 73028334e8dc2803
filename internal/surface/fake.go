package surface

import (
	"errors"
	"sync"
	"time"

	"kiosk-player/internal/media"
)

// ErrFake is returned by Fake operations scripted to fail.
var ErrFake = errors.New("fake surface failure")

// Fake is a scriptable Surface that records every call. Events are only
// emitted when the test calls Emit, except where the auto flags say
// otherwise.
type Fake struct {
	Emitter

	mu       sync.Mutex
	calls    []string
	item     media.Item
	attached bool
	playing  bool
	position time.Duration
	released bool

	// Frames makes FrameCallbacks report true.
	Frames bool
	// FailOn makes the named operation ("attach", "load", "play", ...)
	// return ErrFake.
	FailOn map[string]bool
}

// NewFake returns an empty fake surface.
func NewFake() *Fake { return &Fake{FailOn: map[string]bool{}} }

func (f *Fake) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if f.FailOn[op] {
		return ErrFake
	}
	return nil
}

func (f *Fake) Attach(item media.Item) error {
	if err := f.record("attach"); err != nil {
		return err
	}
	f.mu.Lock()
	f.item, f.attached, f.playing, f.position = item, true, false, 0
	f.mu.Unlock()
	return nil
}

func (f *Fake) Load() error { return f.record("load") }

func (f *Fake) Play() error {
	if err := f.record("play"); err != nil {
		return err
	}
	f.mu.Lock()
	f.playing = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Pause() error {
	if err := f.record("pause"); err != nil {
		return err
	}
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
	return nil
}

func (f *Fake) SeekStart() error {
	if err := f.record("seek"); err != nil {
		return err
	}
	f.mu.Lock()
	f.position = 0
	f.mu.Unlock()
	return nil
}

func (f *Fake) Position() (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *Fake) Detach() error {
	if err := f.record("detach"); err != nil {
		return err
	}
	f.mu.Lock()
	f.attached, f.playing, f.item = false, false, media.Item{}
	f.mu.Unlock()
	return nil
}

func (f *Fake) FrameCallbacks() bool { return f.Frames }

func (f *Fake) Release() {
	f.mu.Lock()
	f.released = true
	f.mu.Unlock()
}

// SetPosition moves the fake playback position.
func (f *Fake) SetPosition(d time.Duration) {
	f.mu.Lock()
	f.position = d
	f.mu.Unlock()
}

// Calls returns the recorded operations in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how often op was called.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Reset clears the recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// Item returns the attached item and whether one is attached.
func (f *Fake) Item() (media.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.item, f.attached
}

// IsPlaying reports whether Play was the last of Play/Pause.
func (f *Fake) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

// Released reports whether Release was called.
func (f *Fake) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Package surface defines the playback handles the engine owns: one per
// rendering layer. Implementations wrap a real player (libVLC, a VLC
// subprocess) or a test double.
package surface

import (
	"sort"
	"sync"
	"time"

	"kiosk-player/internal/media"
)

// Event is a playback notification emitted by a surface.
type Event int

const (
	// CanPlay fires once enough data is loaded to render a frame.
	CanPlay Event = iota
	// Frame fires when a decoded frame has been delivered to the output.
	// Only surfaces reporting FrameCallbacks emit it.
	Frame
	// Playing fires when playback actually starts.
	Playing
	// TimeUpdate fires as the playback position advances.
	TimeUpdate
	// Ended fires when a video reaches its natural end.
	Ended
	// Error fires when loading or decoding fails.
	Error
)

func (e Event) String() string {
	switch e {
	case CanPlay:
		return "canplay"
	case Frame:
		return "frame"
	case Playing:
		return "playing"
	case TimeUpdate:
		return "timeupdate"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Surface is an exclusively owned playback handle. Event handlers may be
// invoked from any goroutine; callers marshal them onto their own loop.
type Surface interface {
	// Attach sets the media source without starting playback. Nothing,
	// not even an image, is output before Play.
	Attach(item media.Item) error
	// Load starts loading the attached source. CanPlay or Error follows.
	Load() error
	Play() error
	Pause() error
	// SeekStart resets the position to the beginning.
	SeekStart() error
	Position() (time.Duration, error)
	// Detach stops playback and releases the attached media.
	Detach() error
	// On subscribes fn to ev and returns a function that unsubscribes it.
	On(ev Event, fn func()) (off func())
	// FrameCallbacks reports whether the surface emits Frame events.
	FrameCallbacks() bool
	// Release frees the underlying player. The surface is unusable after.
	Release()
}

// Emitter is a goroutine-safe subscription registry surfaces embed to
// implement On.
type Emitter struct {
	mu       sync.Mutex
	nextID   int
	handlers map[Event]map[int]func()
}

// On registers fn for ev.
func (e *Emitter) On(ev Event, fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[Event]map[int]func())
	}
	if e.handlers[ev] == nil {
		e.handlers[ev] = make(map[int]func())
	}
	e.nextID++
	id := e.nextID
	e.handlers[ev][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.handlers[ev], id)
			e.mu.Unlock()
		})
	}
}

// Emit calls every handler subscribed to ev, in subscription order.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	ids := make([]int, 0, len(e.handlers[ev]))
	for id := range e.handlers[ev] {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, e.handlers[ev][id])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribers reports how many handlers are registered for ev.
func (e *Emitter) Subscribers(ev Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[ev])
}

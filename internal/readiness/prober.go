// Package readiness decides when a staged media item is safe to reveal:
// an image once it is decoded and paintable, a video once its first frame
// has been decoded and the player rewound, or when the kind's timeout
// expires, whichever comes first. Every failure resolves as ready so a bad
// asset never stalls the show.
package readiness

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/loop"
	"kiosk-player/internal/media"
	"kiosk-player/internal/surface"
)

const (
	VideoTimeout         = 4500 * time.Millisecond
	ImageTimeout         = 2000 * time.Millisecond
	FirstFrameGrace      = 350 * time.Millisecond
	DefaultFrameInterval = time.Second / 60
)

// Reasons reported in Result.
const (
	ReasonDecoded      = "decoded"
	ReasonDecodeFailed = "decode-failed"
	ReasonFirstFrame   = "first-frame"
	ReasonFrameGrace   = "first-frame-grace"
	ReasonTimeout      = "timeout"
	ReasonError        = "error"
)

var errPlaybackEvent = errors.New("surface reported a playback error")

// ImageDecoder decodes an image off-screen. done is called exactly once,
// from any goroutine.
type ImageDecoder interface {
	Decode(ctx context.Context, src string, done func(error))
}

// Result describes how a probe resolved.
type Result struct {
	Item    media.Item
	Reason  string
	Elapsed time.Duration
}

// Options tunes the prober. Zero fields take the package defaults.
type Options struct {
	VideoTimeout    time.Duration
	ImageTimeout    time.Duration
	FirstFrameGrace time.Duration
	FrameInterval   time.Duration
	Zone            string
}

// Prober primes media on a surface and reports readiness on its scheduler.
type Prober struct {
	sched   loop.Scheduler
	decoder ImageDecoder
	opts    Options
	log     zerolog.Logger
}

// NewProber creates a prober that runs its continuations on sched.
func NewProber(sched loop.Scheduler, decoder ImageDecoder, opts Options) *Prober {
	if opts.VideoTimeout <= 0 {
		opts.VideoTimeout = VideoTimeout
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = ImageTimeout
	}
	if opts.FirstFrameGrace <= 0 {
		opts.FirstFrameGrace = FirstFrameGrace
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	return &Prober{
		sched:   sched,
		decoder: decoder,
		opts:    opts,
		log:     logger.Component("readiness").With().Str("zone", opts.Zone).Logger(),
	}
}

// Prime starts making item ready on s. ready runs on the scheduler at most
// once; it never runs after cancel has been called.
func (p *Prober) Prime(item media.Item, s surface.Surface, ready func(Result)) (cancel func()) {
	pr := &probe{
		p:       p,
		item:    item,
		surf:    s,
		ready:   ready,
		started: p.sched.Now(),
	}

	timeout := p.opts.ImageTimeout
	if item.IsVideo() {
		timeout = p.opts.VideoTimeout
	}
	pr.after(timeout, func() {
		p.log.Warn().Str("src", item.Source).Dur("timeout", timeout).Msg("readiness timed out, revealing anyway")
		pr.finish(ReasonTimeout)
	})

	if item.IsVideo() {
		pr.startVideo()
	} else {
		pr.startImage()
	}
	return pr.cancel
}

// probe is one in-flight readiness check. All fields are touched only on
// the scheduler.
type probe struct {
	p       *Prober
	item    media.Item
	surf    surface.Surface
	ready   func(Result)
	started time.Time

	done   bool
	primed bool
	framed bool

	timers       []loop.Timer
	offs         []func()
	cancelDecode context.CancelFunc
}

func (pr *probe) after(d time.Duration, fn func()) {
	t := pr.p.sched.AfterFunc(d, func() {
		if !pr.done {
			fn()
		}
	})
	pr.timers = append(pr.timers, t)
}

// listen subscribes to ev and marshals the handler onto the scheduler.
func (pr *probe) listen(ev surface.Event, fn func()) {
	off := pr.surf.On(ev, func() {
		pr.p.sched.Post(func() {
			if !pr.done {
				fn()
			}
		})
	})
	pr.offs = append(pr.offs, off)
}

func (pr *probe) release() {
	pr.done = true
	for _, t := range pr.timers {
		t.Stop()
	}
	for _, off := range pr.offs {
		off()
	}
	if pr.cancelDecode != nil {
		pr.cancelDecode()
	}
	pr.timers, pr.offs = nil, nil
}

func (pr *probe) cancel() {
	if pr.done {
		return
	}
	pr.release()
	pr.p.log.Debug().Str("src", pr.item.Source).Msg("probe abandoned")
}

func (pr *probe) finish(reason string) {
	if pr.done {
		return
	}
	pr.release()
	res := Result{Item: pr.item, Reason: reason, Elapsed: pr.p.sched.Now().Sub(pr.started)}
	pr.p.log.Debug().
		Str("src", pr.item.Source).
		Str("reason", reason).
		Dur("elapsed", res.Elapsed).
		Msg("media ready")
	pr.ready(res)
}

// failOpen resolves the probe as ready after a surface error.
func (pr *probe) failOpen(step string, err error) {
	pr.p.log.Warn().Err(err).Str("src", pr.item.Source).Str("step", step).Msg("probe step failed, revealing anyway")
	pr.finish(ReasonError)
}

func (pr *probe) startImage() {
	if err := pr.surf.Attach(pr.item); err != nil {
		pr.p.log.Warn().Err(err).Str("src", pr.item.Source).Msg("attach image failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	pr.cancelDecode = cancel
	pr.p.decoder.Decode(ctx, pr.item.Source, func(err error) {
		pr.p.sched.Post(func() {
			if pr.done {
				return
			}
			if err != nil {
				pr.p.log.Warn().Err(err).Str("src", pr.item.Source).Msg("image decode failed, revealing anyway")
				pr.finish(ReasonDecodeFailed)
				return
			}
			// two frame ticks so the compositor has a paintable bitmap
			pr.after(pr.p.opts.FrameInterval, func() {
				pr.after(pr.p.opts.FrameInterval, func() { pr.finish(ReasonDecoded) })
			})
		})
	})
}

func (pr *probe) startVideo() {
	if err := pr.surf.Attach(pr.item); err != nil {
		pr.failOpen("attach", err)
		return
	}
	pr.listen(surface.Error, func() { pr.failOpen("load", errPlaybackEvent) })
	pr.listen(surface.CanPlay, pr.onCanPlay)
	if err := pr.surf.Load(); err != nil {
		pr.failOpen("load", err)
	}
}

// onCanPlay rewinds and briefly plays the video so the first frame is
// decoded before the layer becomes visible.
func (pr *probe) onCanPlay() {
	if pr.primed {
		return
	}
	pr.primed = true

	if err := pr.surf.Pause(); err != nil {
		pr.failOpen("pause", err)
		return
	}
	if err := pr.surf.SeekStart(); err != nil {
		pr.failOpen("seek", err)
		return
	}

	if pr.surf.FrameCallbacks() {
		pr.listen(surface.Frame, func() { pr.onFirstFrame(ReasonFirstFrame) })
	} else {
		pr.listen(surface.Playing, func() { pr.onFirstFrame(ReasonFirstFrame) })
		pr.listen(surface.TimeUpdate, func() { pr.onFirstFrame(ReasonFirstFrame) })
		pr.after(pr.p.opts.FirstFrameGrace, func() { pr.onFirstFrame(ReasonFrameGrace) })
	}

	if err := pr.surf.Play(); err != nil {
		pr.failOpen("play", err)
	}
}

func (pr *probe) onFirstFrame(reason string) {
	if pr.framed {
		return
	}
	pr.framed = true

	if err := pr.surf.Pause(); err != nil {
		pr.failOpen("pause", err)
		return
	}
	if err := pr.surf.SeekStart(); err != nil {
		pr.failOpen("seek", err)
		return
	}
	pr.finish(reason)
}

// Package show implements the playback/transition engine of one screen
// zone. The engine owns two playback surfaces, the shown one and the one
// an incoming item is primed on, and swaps them once the incoming item is
// ready and the visual transition has had time to finish.
//
// An Engine is not safe for concurrent use. Every method, and every
// callback it arms, runs on the zone's loop.Scheduler.
package show

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/loop"
	"kiosk-player/internal/media"
	"kiosk-player/internal/motion"
	"kiosk-player/internal/order"
	"kiosk-player/internal/readiness"
	"kiosk-player/internal/settings"
	"kiosk-player/internal/surface"
)

// CommitHold is how long after readiness the swap is committed, long
// enough for the eased transition to finish painting.
const CommitHold = 560 * time.Millisecond

// Primer makes an item ready on a surface. See readiness.Prober.
type Primer interface {
	Prime(item media.Item, s surface.Surface, ready func(readiness.Result)) (cancel func())
}

// Config wires an engine to its collaborators.
type Config struct {
	Zone       string
	Scheduler  loop.Scheduler
	Surfaces   [2]surface.Surface
	Primer     Primer
	Prefetcher readiness.Prefetcher
	Settings   settings.Settings

	// OnPlayingRequest receives play/pause change requests. The engine
	// never changes Playing itself; the owner of the settings does and
	// feeds the result back through SetSettings.
	OnPlayingRequest func(playing bool)
	// OnRender receives every new scene.
	OnRender func(Scene)
}

type incoming struct {
	position    int
	item        media.Item
	slot        int
	ready       bool
	gen         uint64
	cancelProbe func()
	commitTimer loop.Timer
}

// Engine is the per-zone state machine: Idle when incoming is nil,
// Transitioning otherwise.
type Engine struct {
	cfg   Config
	sched loop.Scheduler
	log   zerolog.Logger

	items    []media.Item
	listGen  uint64
	order    order.Cache
	perm     []int
	settings settings.Settings

	shownPos  int
	shownSlot int
	incoming  *incoming
	gen       uint64

	advanceTimer loop.Timer
	offEnded     func()

	session    string
	commits    uint64
	lastCommit time.Time
	scene      Scene
	closed     bool
}

// New creates an idle engine with an empty media list.
func New(cfg Config) *Engine {
	e := &Engine{
		cfg:      cfg,
		sched:    cfg.Scheduler,
		log:      logger.Component("engine").With().Str("zone", cfg.Zone).Logger(),
		settings: cfg.Settings.Normalize(),
		session:  uuid.NewString(),
	}
	e.scene = Scene{Zone: cfg.Zone, Session: e.session, Mode: e.settings.Transition}
	return e
}

// SetMedia replaces the media list. Any replacement is a full reset: the
// transition in flight is abandoned and playback restarts at position 0.
func (e *Engine) SetMedia(items []media.Item) {
	if e.closed {
		return
	}
	e.abort()

	e.items = append([]media.Item(nil), items...)
	e.listGen++
	e.gen++
	e.shownPos = 0
	e.session = uuid.NewString()
	e.rebuildOrder()

	shown := e.surface(e.shownSlot)
	e.detach(1 - e.shownSlot)

	e.log.Info().
		Str("session", e.session).
		Int("items", len(e.items)).
		Msg("media list replaced, engine reset")

	if len(e.items) == 0 {
		e.detach(e.shownSlot)
		e.render()
		return
	}

	item := e.shownItem()
	if err := shown.Attach(item); err != nil {
		e.log.Warn().Err(err).Str("src", item.Source).Msg("attach shown item failed")
	}
	e.reveal(shown, item)
	if item.IsVideo() {
		if err := shown.Load(); err != nil {
			e.log.Warn().Err(err).Str("src", item.Source).Msg("load shown video failed")
		}
	}

	e.reconcile()
	e.prefetchNext()
	e.render()
}

// SetSettings applies new live settings. Only play state and interval
// changes re-arm timers; only shuffle or seed changes rebuild the order.
func (e *Engine) SetSettings(s settings.Settings) {
	if e.closed {
		return
	}
	s = s.Normalize()
	prev := e.settings
	e.settings = s

	if prev.Shuffle != s.Shuffle || prev.Seed != s.Seed {
		e.reorder()
	}
	if prev.Playing && !s.Playing {
		e.pauseOutgoing()
	}
	if prev.Playing != s.Playing || prev.Interval() != s.Interval() {
		e.reconcile()
	}
	if prev != s {
		e.render()
	}
}

// Advance stages the next item. It is a no-op while a transition is in
// flight, for an empty list and for a single image; a single video is
// restarted in place.
func (e *Engine) Advance() {
	if e.closed || len(e.items) == 0 || e.incoming != nil {
		return
	}
	if len(e.items) == 1 {
		if e.shownItem().IsVideo() {
			e.restartShown()
		}
		return
	}
	e.stage()
}

// DoubleInteraction handles the forced-resume gesture: it always requests
// playing=true and changes nothing else.
func (e *Engine) DoubleInteraction() {
	if e.cfg.OnPlayingRequest != nil {
		e.cfg.OnPlayingRequest(true)
	}
}

// Scene returns the last rendered scene.
func (e *Engine) Scene() Scene { return e.scene }

// Order returns the current playback order.
func (e *Engine) Order() []int { return append([]int(nil), e.perm...) }

// Items returns the current media list.
func (e *Engine) Items() []media.Item { return append([]media.Item(nil), e.items...) }

// Status summarizes the engine state.
func (e *Engine) Status() Status {
	st := Status{
		Zone:     e.cfg.Zone,
		Session:  e.session,
		Items:    len(e.items),
		Position: e.shownPos,
		Playing:  e.settings.Playing,
		Interval: e.settings.Interval(),
		Mode:     e.settings.Transition,
		Commits:  e.commits,
	}
	if len(e.items) > 0 {
		st.Shown = e.shownItem().Key()
	}
	if e.incoming != nil {
		st.Incoming = e.incoming.item.Key()
		st.Ready = e.incoming.ready
	}
	if !e.lastCommit.IsZero() {
		st.LastCommitAgo = e.sched.Now().Sub(e.lastCommit)
	}
	return st
}

// Close abandons all pending work. The surfaces are left to their owner.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.abort()
	e.gen++
	e.closed = true
}

// reconcile recomputes timers and video playback from the current state.
// It is the single place the idle behaviour is decided.
func (e *Engine) reconcile() {
	e.stopAdvanceTimer()
	e.stopEndedListener()

	if e.closed || len(e.items) == 0 || e.incoming != nil {
		return
	}

	item := e.shownItem()
	s := e.surface(e.shownSlot)
	gen := e.gen

	if item.IsVideo() {
		e.offEnded = s.On(surface.Ended, func() {
			e.sched.Post(func() {
				if e.gen == gen {
					e.onVideoEnded()
				}
			})
		})
		var err error
		if e.settings.Playing {
			err = s.Play()
		} else {
			err = s.Pause()
		}
		if err != nil {
			e.log.Warn().Err(err).Str("src", item.Source).Bool("playing", e.settings.Playing).Msg("video play state change failed")
		}
		return
	}

	if e.settings.Playing && len(e.items) > 1 {
		e.advanceTimer = e.sched.AfterFunc(e.settings.Interval(), func() {
			if e.gen == gen {
				e.Advance()
			}
		})
	}
}

func (e *Engine) onVideoEnded() {
	if !e.settings.Playing || e.incoming != nil {
		return
	}
	e.log.Debug().Str("src", e.shownItem().Source).Msg("video ended")
	e.Advance()
}

func (e *Engine) restartShown() {
	s := e.surface(e.shownSlot)
	if err := s.SeekStart(); err != nil {
		e.log.Warn().Err(err).Msg("rewind failed")
	}
	if e.settings.Playing {
		if err := s.Play(); err != nil {
			e.log.Warn().Err(err).Msg("replay failed")
		}
	}
}

// stage creates the incoming item for the next order position and starts
// priming it on the spare surface.
func (e *Engine) stage() {
	e.stopAdvanceTimer()
	e.stopEndedListener()

	next := order.Wrap(e.shownPos+1, len(e.perm))
	e.gen++
	inc := &incoming{
		position: next,
		item:     e.itemAt(next),
		slot:     1 - e.shownSlot,
		gen:      e.gen,
	}
	e.incoming = inc

	e.log.Debug().
		Int("position", next).
		Str("src", inc.item.Source).
		Str("kind", inc.item.Kind.String()).
		Msg("staging incoming item")

	key := inc.item.Key()
	gen := inc.gen
	inc.cancelProbe = e.cfg.Primer.Prime(inc.item, e.surface(inc.slot), func(res readiness.Result) {
		e.onReady(gen, key, res)
	})
	e.render()
}

// onReady is only honoured for the incoming it was started for.
func (e *Engine) onReady(gen uint64, key string, res readiness.Result) {
	inc := e.incoming
	if e.closed || inc == nil || inc.gen != gen || inc.item.Key() != key || inc.ready {
		return
	}
	inc.ready = true
	inc.cancelProbe = nil

	e.pauseOutgoing()
	e.reveal(e.surface(inc.slot), inc.item)

	e.log.Debug().
		Str("src", inc.item.Source).
		Str("reason", res.Reason).
		Dur("latency", res.Elapsed).
		Msg("incoming ready, holding for transition")

	inc.commitTimer = e.sched.AfterFunc(CommitHold, func() { e.commit(gen) })
	e.render()
}

// commit promotes the incoming item to shown.
func (e *Engine) commit(gen uint64) {
	inc := e.incoming
	if e.closed || inc == nil || inc.gen != gen {
		return
	}
	oldSlot := e.shownSlot
	e.shownPos = inc.position
	e.shownSlot = inc.slot
	e.incoming = nil
	e.gen++
	e.commits++
	e.lastCommit = e.sched.Now()

	e.detach(oldSlot)

	e.log.Info().
		Int("position", e.shownPos).
		Str("src", inc.item.Source).
		Uint64("commits", e.commits).
		Msg("transition committed")

	e.reconcile()
	e.prefetchNext()
	e.render()
}

// abort drops the transition in flight and every idle timer.
func (e *Engine) abort() {
	if inc := e.incoming; inc != nil {
		if inc.cancelProbe != nil {
			inc.cancelProbe()
		}
		if inc.commitTimer != nil {
			inc.commitTimer.Stop()
		}
		e.incoming = nil
	}
	e.stopAdvanceTimer()
	e.stopEndedListener()
}

// pauseOutgoing pauses the shown video while a transition is in flight.
// Idle play state is left to reconcile, and a transition never gives the
// shown video a fresh play command.
func (e *Engine) pauseOutgoing() {
	if e.incoming == nil || len(e.items) == 0 {
		return
	}
	shown := e.shownItem()
	if !shown.IsVideo() {
		return
	}
	if err := e.surface(e.shownSlot).Pause(); err != nil {
		e.log.Warn().Err(err).Str("src", shown.Source).Msg("pause outgoing video failed")
	}
}

// reveal starts output of an image. Surfaces attach images dark so that
// nothing is painted before the engine allows it.
func (e *Engine) reveal(s surface.Surface, item media.Item) {
	if !item.IsImage() {
		return
	}
	if err := s.Play(); err != nil {
		e.log.Warn().Err(err).Str("src", item.Source).Msg("reveal image failed")
	}
}

func (e *Engine) stopAdvanceTimer() {
	if e.advanceTimer != nil {
		e.advanceTimer.Stop()
		e.advanceTimer = nil
	}
}

func (e *Engine) stopEndedListener() {
	if e.offEnded != nil {
		e.offEnded()
		e.offEnded = nil
	}
}

func (e *Engine) rebuildOrder() {
	e.perm = e.order.Get(e.listGen, len(e.items), e.settings.Shuffle, e.settings.Seed)
}

// reorder rebuilds the order and keeps the shown and incoming items where
// they are on screen by remapping their positions.
func (e *Engine) reorder() {
	shownIdx, incIdx := -1, -1
	if len(e.perm) > 0 {
		shownIdx = e.perm[order.Wrap(e.shownPos, len(e.perm))]
		if e.incoming != nil {
			incIdx = e.perm[e.incoming.position]
		}
	}
	e.rebuildOrder()
	for pos, idx := range e.perm {
		if idx == shownIdx {
			e.shownPos = pos
		}
		if e.incoming != nil && idx == incIdx {
			e.incoming.position = pos
		}
	}
	e.log.Debug().
		Bool("shuffle", e.settings.Shuffle).
		Uint32("seed", e.settings.Seed).
		Msg("playback order rebuilt")
}

func (e *Engine) itemAt(pos int) media.Item {
	return e.items[e.perm[order.Wrap(pos, len(e.perm))]]
}

func (e *Engine) shownItem() media.Item { return e.itemAt(e.shownPos) }

func (e *Engine) surface(slot int) surface.Surface { return e.cfg.Surfaces[slot] }

func (e *Engine) detach(slot int) {
	if err := e.surface(slot).Detach(); err != nil {
		e.log.Debug().Err(err).Int("slot", slot).Msg("detach failed")
	}
}

func (e *Engine) prefetchNext() {
	if e.cfg.Prefetcher == nil || len(e.items) < 2 {
		return
	}
	e.cfg.Prefetcher.Prefetch(e.itemAt(e.shownPos + 1))
}

// render rebuilds the scene from the motion table and publishes it.
func (e *Engine) render() {
	sc := Scene{
		Zone:    e.cfg.Zone,
		Session: e.session,
		Mode:    e.settings.Transition,
	}
	if len(e.items) > 0 {
		shown := e.shownItem()
		sp := motion.Lookup(e.settings.Transition, shown.IsImage(), e.settings.KenBurns)
		top := Layer{Key: shown.Key(), Role: RoleShown, Slot: e.shownSlot, Item: shown, Motion: sp.Settled}

		if inc := e.incoming; inc != nil {
			ip := motion.Lookup(e.settings.Transition, inc.item.IsImage(), e.settings.KenBurns)
			in := Layer{Key: inc.item.Key(), Role: RoleIncoming, Slot: inc.slot, Item: inc.item, Motion: ip.Enter}
			if inc.ready {
				top.Motion = sp.Exit
				in.Motion = ip.Settled
			}
			sc.Transitioning = true
			sc.Layers = []Layer{top, in}
		} else {
			sc.Layers = []Layer{top}
		}
	}
	e.scene = sc
	if e.cfg.OnRender != nil {
		e.cfg.OnRender(sc)
	}
}

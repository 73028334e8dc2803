// Package player runs one slideshow engine per template zone. Each zone
// gets its own event loop, surface pair and media source; the shared
// settings store is fanned out to every zone.
package player

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/loop"
	"kiosk-player/internal/media"
	"kiosk-player/internal/readiness"
	"kiosk-player/internal/settings"
	"kiosk-player/internal/show"
	"kiosk-player/internal/source"
	"kiosk-player/internal/surface"
	"kiosk-player/internal/template"
)

// ErrZoneNotFound is returned for an unknown zone id.
var ErrZoneNotFound = errors.New("zone not found")

// SurfaceFactory creates one playback surface for a zone.
type SurfaceFactory func(z template.Zone) (surface.Surface, error)

// SourceFactory opens the media source of a zone.
type SourceFactory func(ctx context.Context, z template.Zone) (source.Source, error)

// Options configures a Player.
type Options struct {
	Template   *template.Template
	Store      *settings.Store
	NewSurface SurfaceFactory
	OpenSource SourceFactory
	// Decoder decodes images for readiness and prefetch. Nil uses a
	// readiness.Decoder on HTTPClient.
	Decoder    readiness.ImageDecoder
	HTTPClient *http.Client
	Readiness  readiness.Options
	// OnRender, when set, receives every scene of every zone on that
	// zone's loop.
	OnRender func(show.Scene)
}

// Zone is one running slideshow.
type Zone struct {
	cfg      template.Zone
	loop     *loop.Loop
	engine   *show.Engine
	surfaces [2]surface.Surface
	source   source.Source
	warmer   *readiness.Warmer
	log      zerolog.Logger
}

// Player coordinates all zones of a template.
type Player struct {
	zones []*Zone
	byID  map[string]*Zone
	store *settings.Store
	log   zerolog.Logger
}

// New creates every zone's surfaces, source and engine. Nothing plays
// until Run.
func New(ctx context.Context, opts Options) (*Player, error) {
	if opts.Template == nil || opts.Store == nil {
		return nil, errors.New("player needs a template and a settings store")
	}
	if opts.NewSurface == nil || opts.OpenSource == nil {
		return nil, errors.New("player needs surface and source factories")
	}
	decoder := opts.Decoder
	if decoder == nil {
		decoder = readiness.NewDecoder(opts.HTTPClient)
	}

	p := &Player{
		byID:  make(map[string]*Zone),
		store: opts.Store,
		log:   logger.Component("player"),
	}

	for _, zc := range opts.Template.Ordered() {
		z, err := p.newZone(ctx, zc, decoder, opts)
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("zone %q: %w", zc.ID, err)
		}
		p.zones = append(p.zones, z)
		p.byID[zc.ID] = z
		p.log.Info().
			Str("zone", zc.ID).
			Str("source", z.source.String()).
			Str("geometry", fmt.Sprintf("%d%%x%d%% at %d%%,%d%%", zc.Width, zc.Height, zc.X, zc.Y)).
			Msg("zone initialized")
	}

	p.log.Info().Int("zones", len(p.zones)).Msg("player ready")
	return p, nil
}

func (p *Player) newZone(ctx context.Context, zc template.Zone, decoder readiness.ImageDecoder, opts Options) (*Zone, error) {
	z := &Zone{
		cfg:  zc,
		loop: loop.New(),
		log:  logger.Component("player").With().Str("zone", zc.ID).Logger(),
	}

	for i := range z.surfaces {
		s, err := opts.NewSurface(zc)
		if err != nil {
			z.release()
			return nil, fmt.Errorf("create surface: %w", err)
		}
		z.surfaces[i] = s
	}

	src, err := opts.OpenSource(ctx, zc)
	if err != nil {
		z.release()
		return nil, fmt.Errorf("open source: %w", err)
	}
	z.source = src

	ropts := opts.Readiness
	ropts.Zone = zc.ID
	z.warmer = readiness.NewWarmer(decoder, opts.HTTPClient)

	store := p.store
	z.engine = show.New(show.Config{
		Zone:       zc.ID,
		Scheduler:  z.loop,
		Surfaces:   z.surfaces,
		Primer:     readiness.NewProber(z.loop, decoder, ropts),
		Prefetcher: z.warmer,
		Settings:   store.Get(),
		OnPlayingRequest: func(playing bool) {
			// the store notifies every loop, including this one
			go func() {
				if _, err := store.SetPlaying(context.Background(), playing); err != nil {
					z.log.Warn().Err(err).Msg("persist play state failed")
				}
			}()
		},
		OnRender: opts.OnRender,
	})
	return z, nil
}

// Run plays every zone until ctx is cancelled.
func (p *Player) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	unsubscribe := p.store.Subscribe(func(s settings.Settings) {
		for _, z := range p.zones {
			z.loop.Post(func() { z.engine.SetSettings(s) })
		}
	})
	defer unsubscribe()

	current := p.store.Get()
	for _, z := range p.zones {
		z.loop.Post(func() { z.engine.SetSettings(current) })
		g.Go(func() error { return z.loop.Run(ctx) })
		g.Go(func() error {
			err := z.source.Watch(ctx, func(items []media.Item) {
				z.log.Info().Int("items", len(items)).Msg("media list received")
				z.loop.Post(func() { z.engine.SetMedia(items) })
			})
			if err != nil {
				// a broken source leaves the zone blank, the others keep playing
				z.log.Error().Err(err).Str("source", z.source.String()).Msg("media source stopped")
			}
			return nil
		})
	}

	<-ctx.Done()
	p.log.Info().Msg("stopping all zones")
	return g.Wait()
}

// Release closes the engines and frees every surface. Call after Run
// has returned.
func (p *Player) Release() {
	for _, z := range p.zones {
		z.release()
	}
	p.log.Info().Msg("all zones released")
}

func (z *Zone) release() {
	if z.engine != nil {
		z.engine.Close()
	}
	for _, s := range z.surfaces {
		if s != nil {
			s.Release()
		}
	}
	if z.warmer != nil {
		z.warmer.Wait()
	}
}

// Zones returns the zone ids, bottom to top.
func (p *Player) Zones() []string {
	ids := make([]string, len(p.zones))
	for i, z := range p.zones {
		ids[i] = z.cfg.ID
	}
	return ids
}

// ZoneInfo returns the template geometry and source of a zone.
func (p *Player) ZoneInfo(id string) (template.Zone, error) {
	z, err := p.zone(id)
	if err != nil {
		return template.Zone{}, err
	}
	return z.cfg, nil
}

func (p *Player) zone(id string) (*Zone, error) {
	z, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	return z, nil
}

// Scene returns the current scene of a zone.
func (p *Player) Scene(ctx context.Context, id string) (show.Scene, error) {
	var sc show.Scene
	err := p.call(ctx, id, func(e *show.Engine) { sc = e.Scene() })
	return sc, err
}

// Status returns the status of a zone.
func (p *Player) Status(ctx context.Context, id string) (show.Status, error) {
	var st show.Status
	err := p.call(ctx, id, func(e *show.Engine) { st = e.Status() })
	return st, err
}

// Statuses returns the status of every zone that answers before ctx ends.
func (p *Player) Statuses(ctx context.Context) []show.Status {
	out := make([]show.Status, 0, len(p.zones))
	for _, z := range p.zones {
		if st, err := p.Status(ctx, z.cfg.ID); err == nil {
			out = append(out, st)
		}
	}
	return out
}

// Advance stages the next item in a zone.
func (p *Player) Advance(ctx context.Context, id string) error {
	return p.call(ctx, id, func(e *show.Engine) { e.Advance() })
}

// Gesture delivers a double interaction to a zone.
func (p *Player) Gesture(ctx context.Context, id string) error {
	return p.call(ctx, id, func(e *show.Engine) { e.DoubleInteraction() })
}

// Items returns a zone's current media list in playback order.
func (p *Player) Items(ctx context.Context, id string) ([]media.Item, error) {
	var out []media.Item
	err := p.call(ctx, id, func(e *show.Engine) {
		items := e.Items()
		for _, idx := range e.Order() {
			out = append(out, items[idx])
		}
	})
	return out, err
}

func (p *Player) call(ctx context.Context, id string, fn func(*show.Engine)) error {
	z, err := p.zone(id)
	if err != nil {
		return err
	}
	return z.loop.Call(ctx, func() { fn(z.engine) })
}

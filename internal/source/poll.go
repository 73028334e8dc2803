package source

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"kiosk-player/internal/media"
)

// fetchFunc returns the current list and a fingerprint of it. An
// unchanged fingerprint suppresses delivery.
type fetchFunc func(ctx context.Context) (items []media.Item, fingerprint string, err error)

// poll runs fetch every interval and calls fn with each changed list. A
// failed fetch keeps the previous list on screen. The first successful
// fetch is always delivered.
func poll(ctx context.Context, log zerolog.Logger, interval time.Duration, fetch fetchFunc, fn func([]media.Item)) error {
	var last string
	delivered := false

	tick := func() {
		items, fp, err := fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("media list fetch failed, keeping current list")
			}
			return
		}
		if delivered && fp == last {
			return
		}
		last, delivered = fp, true
		log.Info().Int("items", len(items)).Msg("media list changed")
		fn(items)
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick()
		}
	}
}

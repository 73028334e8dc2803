package readiness

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/media"
)

// Prefetcher warms up an item the engine will probably stage next.
// Prefetch must not block.
type Prefetcher interface {
	Prefetch(item media.Item)
}

const defaultPrefetchTimeout = 10 * time.Second

// Warmer is the default Prefetcher: images are decoded through the shared
// decoder so the prime step finds them cached, videos get a cheap
// existence check.
type Warmer struct {
	decoder  ImageDecoder
	client   *http.Client
	timeout  time.Duration
	inflight sync.Map
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewWarmer creates a prefetcher. A nil client gets a short-timeout one.
func NewWarmer(decoder ImageDecoder, client *http.Client) *Warmer {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Warmer{
		decoder: decoder,
		client:  client,
		timeout: defaultPrefetchTimeout,
		log:     logger.Component("prefetch"),
	}
}

// Prefetch starts warming item unless a prefetch for it is already running.
func (w *Warmer) Prefetch(item media.Item) {
	key := item.Key()
	if _, busy := w.inflight.LoadOrStore(key, struct{}{}); busy {
		return
	}
	w.wg.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	finish := func(err error) {
		cancel()
		w.inflight.Delete(key)
		if err != nil {
			w.log.Debug().Err(err).Str("src", item.Source).Msg("prefetch failed")
		}
		w.wg.Done()
	}

	switch item.Kind {
	case media.Image:
		w.decoder.Decode(ctx, item.Source, finish)
	case media.Video:
		go func() { finish(w.exists(ctx, item)) }()
	default:
		finish(nil)
	}
}

// Wait blocks until running prefetches finish.
func (w *Warmer) Wait() { w.wg.Wait() }

func (w *Warmer) exists(ctx context.Context, item media.Item) error {
	if !item.IsRemote() {
		_, err := os.Stat(strings.TrimPrefix(item.Source, "file://"))
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, item.Source, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("head %s: status %d", item.Source, resp.StatusCode)
	}
	return nil
}

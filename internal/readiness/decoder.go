package readiness

import (
	"bufio"
	"container/list"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	defaultDecodeTimeout = 15 * time.Second
	// DecodedCacheSize bounds how many successful decodes are remembered.
	// The warmer only ever runs one item ahead of the prime step.
	DecodedCacheSize = 8
)

// Decoder is the default ImageDecoder. It reads local paths, file:// and
// http(s) URLs and fully decodes the image so a broken file is detected
// before it is revealed.
//
// Concurrent decodes of the same source share one fetch, and the last few
// sources that decoded cleanly are remembered, so a prime that follows a
// prefetch resolves without touching the network again. Failures are
// never remembered.
type Decoder struct {
	client  *http.Client
	timeout time.Duration
	group   singleflight.Group

	mu      sync.Mutex
	decoded *list.List // of string, most recent first
	index   map[string]*list.Element
	size    int
}

// NewDecoder creates a decoder. A nil client gets a 15s timeout client.
func NewDecoder(client *http.Client) *Decoder {
	if client == nil {
		client = &http.Client{Timeout: defaultDecodeTimeout}
	}
	return &Decoder{
		client:  client,
		timeout: defaultDecodeTimeout,
		decoded: list.New(),
		index:   make(map[string]*list.Element),
		size:    DecodedCacheSize,
	}
}

// Decode reports through done whether src decodes. A remembered source
// calls done before Decode returns; otherwise done runs on another
// goroutine once the shared decode finishes or ctx is done. The shared
// decode is not tied to ctx, so an abandoned caller still leaves the
// result behind for the next one.
func (d *Decoder) Decode(ctx context.Context, src string, done func(error)) {
	if d.remembered(src) {
		done(nil)
		return
	}
	ch := d.group.DoChan(src, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.DecodeSync(dctx, src); err != nil {
			return nil, err
		}
		d.remember(src)
		return nil, nil
	})
	go func() {
		select {
		case res := <-ch:
			done(res.Err)
		case <-ctx.Done():
			done(ctx.Err())
		}
	}()
}

// Cached reports whether src is remembered as decodable.
func (d *Decoder) Cached(src string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.index[src]
	return ok
}

func (d *Decoder) remembered(src string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.index[src]
	if ok {
		d.decoded.MoveToFront(el)
	}
	return ok
}

func (d *Decoder) remember(src string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.index[src]; ok {
		d.decoded.MoveToFront(el)
		return
	}
	d.index[src] = d.decoded.PushFront(src)
	for d.decoded.Len() > d.size {
		oldest := d.decoded.Back()
		d.decoded.Remove(oldest)
		delete(d.index, oldest.Value.(string))
	}
}

// DecodeSync decodes src on the calling goroutine, bypassing the cache.
func (d *Decoder) DecodeSync(ctx context.Context, src string) error {
	rc, err := open(ctx, d.client, src)
	if err != nil {
		return err
	}
	defer rc.Close()

	// SVG is rasterized by the output, not by us; readable is enough.
	if strings.HasSuffix(strings.ToLower(stripQuery(src)), ".svg") {
		_, err := io.Copy(io.Discard, rc)
		return err
	}

	if _, _, err := image.Decode(bufio.NewReader(rc)); err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}
	return nil
}

func open(ctx context.Context, client *http.Client, src string) (io.ReadCloser, error) {
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", src, err)
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
		}
		return resp.Body, nil
	case strings.HasPrefix(lower, "file://"):
		return os.Open(src[len("file://"):])
	default:
		return os.Open(src)
	}
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/media"
)

const maxListBytes = 4 << 20

// Remote polls a JSON media list over HTTP. Relative src values are
// resolved against the list URL.
type Remote struct {
	url      string
	client   *http.Client
	interval time.Duration
	log      zerolog.Logger
}

// NewRemote creates a remote list source.
func NewRemote(listURL string, client *http.Client, interval time.Duration) *Remote {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Remote{
		url:      listURL,
		client:   client,
		interval: interval,
		log:      logger.Component("source").With().Str("url", listURL).Logger(),
	}
}

func (r *Remote) String() string { return r.url }

// List fetches and decodes the list once.
func (r *Remote) List(ctx context.Context) ([]media.Item, error) {
	items, _, err := r.fetch(ctx)
	return items, err
}

// Watch polls the list until ctx is done.
func (r *Remote) Watch(ctx context.Context, fn func([]media.Item)) error {
	return poll(ctx, r.log, r.interval, r.fetch, fn)
}

func (r *Remote) fetch(ctx context.Context) ([]media.Item, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch media list: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read media list: %w", err)
	}
	sum := sha256.Sum256(body)

	items, err := media.DecodeList(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	base, err := url.Parse(r.url)
	if err != nil {
		return nil, "", fmt.Errorf("parse list url: %w", err)
	}
	for i := range items {
		ref, err := url.Parse(items[i].Source)
		if err != nil {
			continue
		}
		items[i].Source = base.ResolveReference(ref).String()
	}
	return items, hex.EncodeToString(sum[:]), nil
}

// Package source resolves a zone's source string into something that
// produces ordered media lists: a local directory, a remote JSON list or
// an S3 bucket prefix.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kiosk-player/internal/media"
	"kiosk-player/internal/playlist"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultTimeout      = 10 * time.Second
	DefaultPresignTTL   = 12 * time.Hour
)

// ErrEmptySource is returned by Open for a blank source string.
var ErrEmptySource = errors.New("empty media source")

// Source produces ordered media lists.
type Source interface {
	// List fetches the current list once.
	List(ctx context.Context) ([]media.Item, error)
	// Watch delivers the current list and then every changed list until
	// ctx is done. fn is called from a single goroutine.
	Watch(ctx context.Context, fn func([]media.Item)) error
	String() string
}

// Options configures the polled sources.
type Options struct {
	PollInterval time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
	S3           S3Config
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.S3.PresignTTL <= 0 {
		o.S3.PresignTTL = DefaultPresignTTL
	}
	return o
}

// Open picks the source implementation from the shape of uri:
// s3://bucket/prefix, http(s)://host/list.json or a directory path.
func Open(ctx context.Context, uri string, opts Options) (Source, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, ErrEmptySource
	}
	opts = opts.withDefaults()

	lower := strings.ToLower(uri)
	switch {
	case strings.HasPrefix(lower, "s3://"):
		bucket, prefix, err := ParseS3URI(uri)
		if err != nil {
			return nil, err
		}
		cfg := opts.S3
		cfg.Bucket, cfg.Prefix = bucket, prefix
		return NewS3(ctx, cfg, opts.PollInterval)
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return NewRemote(uri, opts.HTTPClient, opts.PollInterval), nil
	default:
		w, err := playlist.NewWatcher(uri)
		if err != nil {
			return nil, fmt.Errorf("open directory source: %w", err)
		}
		return w, nil
	}
}

// IsLocal reports whether uri names a directory rather than a remote
// list or bucket.
func IsLocal(uri string) bool {
	lower := strings.ToLower(strings.TrimSpace(uri))
	for _, scheme := range []string{"s3://", "http://", "https://"} {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return lower != ""
}

var _ Source = (*playlist.Watcher)(nil)

// Package api handles remote server communication: heartbeat reporting
// and identity management via the legacy config.json format.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/show"
	"kiosk-player/internal/system"
)

// DefaultInterval is used when the identity file sets no interval.
const DefaultInterval = 60 * time.Second

// Config mirrors the legacy config.json identity structure.
type Config struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Interval int    `json:"heartbeat_interval_sec"`
}

// Heartbeat is the payload sent to the remote server on each tick.
type Heartbeat struct {
	ID        string               `json:"id"`
	Key       string               `json:"key"`
	Timestamp string               `json:"timestamp"`
	Uptime    float64              `json:"uptime_sec"`
	Version   string               `json:"version"`
	Arch      string               `json:"arch"`
	OS        string               `json:"os"`
	Health    *system.HealthStatus `json:"health,omitempty"`
	Zones     []show.Status        `json:"zones,omitempty"`
}

// StatusProvider reports the live state of every zone.
type StatusProvider interface {
	Statuses(ctx context.Context) []show.Status
}

// Options are the optional collaborators of a Client.
type Options struct {
	Zones StatusProvider
	// Health takes the system snapshot; nil uses system.RunHealthCheck.
	Health     func(ctx context.Context) system.HealthStatus
	HTTPClient *http.Client
}

// Client manages the heartbeat loop and server communication.
type Client struct {
	mu      sync.RWMutex
	cfg     Config
	cfgPath string
	version string
	startAt time.Time
	httpCli *http.Client
	zones   StatusProvider
	health  func(ctx context.Context) system.HealthStatus
	log     zerolog.Logger
}

// NewClient creates an API client by loading the config from the given path.
// If the file does not exist, the client starts in "unregistered" mode
// and skips heartbeats until the identity is reloaded.
func NewClient(cfgPath, version string, opts Options) *Client {
	c := &Client{
		cfgPath: cfgPath,
		version: version,
		startAt: time.Now(),
		httpCli: opts.HTTPClient,
		zones:   opts.Zones,
		health:  opts.Health,
		log:     logger.Component("api"),
	}
	if c.httpCli == nil {
		c.httpCli = &http.Client{Timeout: 10 * time.Second}
	}
	if c.health == nil {
		c.health = system.RunHealthCheck
	}

	if err := c.loadConfig(); err != nil {
		c.log.Warn().Err(err).Msg("identity not loaded, running unregistered")
	}

	return c
}

func (c *Client) loadConfig() error {
	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if cfg.Interval <= 0 {
		cfg.Interval = int(DefaultInterval / time.Second)
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()

	c.log.Info().
		Str("id", cfg.ID).
		Str("endpoint", cfg.Endpoint).
		Int("interval_sec", cfg.Interval).
		Msg("loaded identity")
	return nil
}

// ReloadConfig re-reads the config from disk. Safe to call at runtime;
// a new interval takes effect after the next heartbeat.
func (c *Client) ReloadConfig() error {
	return c.loadConfig()
}

// Identity returns the current configuration (thread-safe).
func (c *Client) Identity() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *Client) interval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cfg.Interval <= 0 {
		return DefaultInterval
	}
	return time.Duration(c.cfg.Interval) * time.Second
}

// Run sends one heartbeat immediately and then one per interval until
// ctx is done. Failed heartbeats are logged and never stop the loop.
func (c *Client) Run(ctx context.Context) error {
	interval := c.interval()
	c.log.Info().Dur("interval", interval).Msg("heartbeat started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("heartbeat stopped")
			return nil
		case <-timer.C:
			err := c.Send(ctx)
			switch {
			case err == nil, ctx.Err() != nil:
			case errors.Is(err, ErrUnregistered):
				c.log.Debug().Msg(err.Error())
			default:
				c.log.Warn().Err(err).Msg("heartbeat failed")
			}
			timer.Reset(c.interval())
		}
	}
}

// ErrUnregistered is returned by Send when the identity has no id or
// endpoint.
var ErrUnregistered = errors.New("heartbeat skipped: missing endpoint or id")

// Send constructs and POSTs one heartbeat to the configured endpoint.
func (c *Client) Send(ctx context.Context) error {
	cfg := c.Identity()
	if cfg.Endpoint == "" || cfg.ID == "" {
		return ErrUnregistered
	}

	body, err := json.Marshal(c.build(ctx, cfg))
	if err != nil {
		return fmt.Errorf("heartbeat marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint+"/heartbeat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("heartbeat response: %d", resp.StatusCode)
	}

	c.log.Debug().Int("status", resp.StatusCode).Msg("heartbeat sent")
	return nil
}

func (c *Client) build(ctx context.Context, cfg Config) Heartbeat {
	health := c.health(ctx)
	hb := Heartbeat{
		ID:        cfg.ID,
		Key:       cfg.Key,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(c.startAt).Seconds(),
		Version:   c.version,
		Arch:      runtime.GOARCH,
		OS:        runtime.GOOS,
		Health:    &health,
	}
	if c.zones != nil {
		hb.Zones = c.zones.Statuses(ctx)
	}
	return hb
}

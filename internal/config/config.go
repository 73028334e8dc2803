// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, config
// files and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/motion"
	"kiosk-player/internal/settings"
	"kiosk-player/internal/source"
)

const (
	DefaultScreenWidth     = 1920
	DefaultScreenHeight    = 1080
	DefaultServerPort      = 8080
	defaultServerHost      = "0.0.0.0"
	defaultServerEnabled   = true
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	DefaultDatabasePath    = "./data/kiosk.db"
	DefaultLogLevel        = "info"
	defaultLogPretty       = false
	defaultRemotePoll      = source.DefaultPollInterval
	defaultRemoteTimeout   = source.DefaultTimeout
	defaultS3PresignTTL    = source.DefaultPresignTTL
	defaultSlideTransition = "crossfade"
	envPrefix              = "KIOSK"
)

// DefaultPlaylistDir is the fullscreen source when nothing else is
// configured: next to the executable on Windows, /playlist elsewhere.
func DefaultPlaylistDir() string {
	if runtime.GOOS == "windows" {
		exe, _ := os.Executable()
		return filepath.Join(filepath.Dir(exe), "playlist")
	}
	return "/playlist"
}

// DefaultIdentityPath is where the heartbeat identity file is read from.
func DefaultIdentityPath() string {
	if runtime.GOOS == "windows" {
		exe, _ := os.Executable()
		return filepath.Join(filepath.Dir(exe), "config.json")
	}
	return "/etc/kiosk-player/config.json"
}

// Config holds all application configuration
type Config struct {
	Player    PlayerConfig
	Slideshow SlideshowConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	S3        S3Config
	Remote    RemoteConfig
}

// PlayerConfig selects what is shown and where.
type PlayerConfig struct {
	// PlaylistDir is the fullscreen source when neither Source, Template
	// nor Layout is set.
	PlaylistDir string
	// Source overrides PlaylistDir: a directory, http(s) list or s3 URI.
	Source   string
	Template string
	// Layout names a preset; LayoutSources fills its zones in order.
	Layout        string
	LayoutSources []string
	ScreenWidth   int
	ScreenHeight  int
	Fullscreen    bool
	Identity      string
}

// SlideshowConfig holds the initial settings used when nothing is
// persisted yet.
type SlideshowConfig struct {
	Playing     bool
	IntervalSec float64
	Transition  string
	Shuffle     bool
	Seed        uint32
	KenBurns    bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled      bool
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds settings persistence configuration. An empty path
// disables persistence.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// S3Config holds credentials for s3:// sources.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

// RemoteConfig tunes the polled sources.
type RemoteConfig struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// flagKeys maps command line flag names onto config keys.
var flagKeys = map[string]string{
	"playlist":      "player.playlistdir",
	"source":        "player.source",
	"template":      "player.template",
	"layout":        "player.layout",
	"layout-source": "player.layoutsources",
	"screen-width":  "player.screenwidth",
	"screen-height": "player.screenheight",
	"fullscreen":    "player.fullscreen",
	"config":        "player.identity",
	"listen":        "server.host",
	"port":          "server.port",
	"no-server":     "server.disabled",
	"db":            "database.path",
	"log-level":     "logging.level",
	"pretty":        "logging.pretty",
	"shuffle":       "slideshow.shuffle",
	"seed":          "slideshow.seed",
	"interval":      "slideshow.intervalsec",
	"transition":    "slideshow.transition",
}

// Load reads configuration from environment variables, .env file and an
// optional config.yaml. Flags that are set on flags take precedence;
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/kiosk-player")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if v.GetBool("server.disabled") {
		cfg.Server.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("player.playlistdir", DefaultPlaylistDir())
	v.SetDefault("player.source", "")
	v.SetDefault("player.template", "")
	v.SetDefault("player.layout", "")
	v.SetDefault("player.layoutsources", []string{})
	v.SetDefault("player.screenwidth", DefaultScreenWidth)
	v.SetDefault("player.screenheight", DefaultScreenHeight)
	v.SetDefault("player.fullscreen", false)
	v.SetDefault("player.identity", DefaultIdentityPath())

	d := settings.Defaults()
	v.SetDefault("slideshow.playing", d.Playing)
	v.SetDefault("slideshow.intervalsec", d.IntervalSec)
	v.SetDefault("slideshow.transition", defaultSlideTransition)
	v.SetDefault("slideshow.shuffle", d.Shuffle)
	v.SetDefault("slideshow.seed", d.Seed)
	v.SetDefault("slideshow.kenburns", d.KenBurns)

	v.SetDefault("server.enabled", defaultServerEnabled)
	v.SetDefault("server.disabled", false)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.accesskeyid", "")
	v.SetDefault("s3.secretaccesskey", "")
	v.SetDefault("s3.presignttl", defaultS3PresignTTL)

	v.SetDefault("remote.pollinterval", defaultRemotePoll)
	v.SetDefault("remote.timeout", defaultRemoteTimeout)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}

	validLevels := logger.ValidLevels()
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if _, err := motion.ParseMode(c.Slideshow.Transition); err != nil {
		return err
	}

	if c.Player.ScreenWidth <= 0 || c.Player.ScreenHeight <= 0 {
		return fmt.Errorf("invalid screen size: %dx%d", c.Player.ScreenWidth, c.Player.ScreenHeight)
	}
	if c.Player.Template != "" && c.Player.Layout != "" {
		return errors.New("template and layout are mutually exclusive")
	}

	return nil
}

// Settings returns the initial slideshow settings, clamped.
func (c *Config) Settings() settings.Settings {
	mode, err := motion.ParseMode(c.Slideshow.Transition)
	if err != nil {
		mode = motion.Crossfade
	}
	return settings.Settings{
		Playing:     c.Slideshow.Playing,
		IntervalSec: c.Slideshow.IntervalSec,
		Transition:  mode,
		Shuffle:     c.Slideshow.Shuffle,
		Seed:        c.Slideshow.Seed,
		KenBurns:    c.Slideshow.KenBurns,
	}.Normalize()
}

// SourceOptions returns the options for source.Open.
func (c *Config) SourceOptions() source.Options {
	return source.Options{
		PollInterval: c.Remote.PollInterval,
		Timeout:      c.Remote.Timeout,
		S3: source.S3Config{
			Region:          c.S3.Region,
			Endpoint:        c.S3.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			PresignTTL:      c.S3.PresignTTL,
		},
	}
}

// PrimarySource is the source of a fullscreen layout.
func (c *Config) PrimarySource() string {
	if c.Player.Source != "" {
		return c.Player.Source
	}
	return c.Player.PlaylistDir
}

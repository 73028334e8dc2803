// kiosk-player: multi-zone slideshow player for digital signage.
// Plays images and videos with readiness-gated transitions on libVLC
// (Raspberry Pi 5) or a VLC subprocess (development).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kiosk-player/internal/api"
	"kiosk-player/internal/config"
	"kiosk-player/internal/db"
	"kiosk-player/internal/logger"
	"kiosk-player/internal/motion"
	"kiosk-player/internal/order"
	"kiosk-player/internal/player"
	"kiosk-player/internal/server"
	"kiosk-player/internal/settings"
	"kiosk-player/internal/source"
	"kiosk-player/internal/surface"
	"kiosk-player/internal/system"
	"kiosk-player/internal/template"
	"kiosk-player/internal/vlc"
)

// Build-time variables set by the Makefile via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "kiosk-player",
		Short:        "kiosk-player: multi-zone image and video slideshow player",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(orderCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addLayoutFlags registers the flags that pick what plays where.
func addLayoutFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("playlist", "p", config.DefaultPlaylistDir(), "Path to the media playlist directory")
	f.StringP("source", "s", "", "Media source: directory, http(s) JSON list or s3://bucket/prefix (overrides --playlist)")
	f.StringP("template", "t", "", "Path to a template JSON file (default: fullscreen)")
	f.StringP("layout", "l", "", "Built-in layout: "+strings.Join(template.PresetNames(), ", "))
	f.StringSlice("layout-source", nil, "Sources for the layout zones, in zone order")
	f.Int("screen-width", config.DefaultScreenWidth, "Screen width in pixels (for zone positioning)")
	f.Int("screen-height", config.DefaultScreenHeight, "Screen height in pixels (for zone positioning)")
	f.String("log-level", config.DefaultLogLevel, "Log level: "+strings.Join(logger.ValidLevels(), ", "))
	f.Bool("pretty", false, "Human readable console logs")
}

// runCmd is the primary command that starts one slideshow per zone, the
// control API and the heartbeat client.
func runCmd() *cobra.Command {
	var setResolution bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the slideshow player",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
			log := logger.Component("main")
			log.Info().Str("version", version).Str("built", buildTime).Msg("kiosk-player starting")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if setResolution {
				if err := system.SetResolution(ctx, cfg.Player.ScreenWidth, cfg.Player.ScreenHeight); err != nil {
					log.Warn().Err(err).Msg("could not set resolution")
				}
			}

			tmpl, err := loadTemplate(cfg)
			if err != nil {
				return err
			}
			log.Info().Str("template", tmpl.Name).Int("zones", len(tmpl.Zones)).Msg("template loaded")

			// Ensure all playlist directories exist.
			for _, z := range tmpl.Zones {
				if !source.IsLocal(z.Source) {
					continue
				}
				if err := system.EnsureDir(z.Source); err != nil {
					return fmt.Errorf("playlist dir %s: %w", z.Source, err)
				}
			}

			// --- Settings (optionally persisted) ---
			var (
				database *db.DB
				repo     settings.Repository
				health   server.HealthChecker
			)
			if cfg.Database.Path != "" {
				if err := system.EnsureDir(filepath.Dir(cfg.Database.Path)); err != nil {
					return fmt.Errorf("database dir: %w", err)
				}
				database, err = db.Open(cfg.Database.Path)
				if err != nil {
					return fmt.Errorf("database: %w", err)
				}
				defer func() { _ = database.Close() }()
				repo = db.NewSettingsRepository(database)
				health = database
			}
			store := settings.NewStore(cfg.Settings(), repo)
			if err := store.Restore(ctx); err != nil {
				log.Warn().Err(err).Msg("settings not restored, using configured defaults")
			}

			// --- Player (one engine per zone) ---
			httpClient := &http.Client{Timeout: cfg.Remote.Timeout}
			srcOpts := cfg.SourceOptions()
			srcOpts.HTTPClient = httpClient
			single := len(tmpl.Zones) == 1

			p, err := player.New(ctx, player.Options{
				Template: tmpl,
				Store:    store,
				NewSurface: func(z template.Zone) (surface.Surface, error) {
					sc := vlc.ZoneConfig(z, cfg.Player.ScreenWidth, cfg.Player.ScreenHeight)
					if single && cfg.Player.Fullscreen {
						sc.Fullscreen = true
					}
					return vlc.NewSurface(sc)
				},
				OpenSource: func(ctx context.Context, z template.Zone) (source.Source, error) {
					return source.Open(ctx, z.Source, srcOpts)
				},
				HTTPClient: httpClient,
			})
			if err != nil {
				return fmt.Errorf("player init: %w", err)
			}

			// --- API Client (heartbeats) ---
			apiClient := api.NewClient(cfg.Player.Identity, version, api.Options{Zones: p})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return p.Run(gctx) })
			g.Go(func() error { return apiClient.Run(gctx) })
			g.Go(func() error {
				reloadOnHangup(gctx, apiClient)
				return nil
			})

			// --- Control API ---
			if cfg.Server.Enabled {
				if cfg.Logging.Level == "debug" {
					gin.SetMode(gin.DebugMode)
				} else {
					gin.SetMode(gin.ReleaseMode)
				}
				srv := server.New(cfg.Server, server.Deps{
					Zones:   p,
					Store:   store,
					DB:      health,
					Version: version,
				})
				g.Go(func() error {
					// playback carries on without the control surface
					if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Msg("http server failed")
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			err = g.Wait()
			log.Info().Msg("shutting down")

			p.Release()
			vlc.Shutdown()

			log.Info().Msg("shutdown complete")
			return err
		},
	}

	addLayoutFlags(cmd)
	f := cmd.Flags()
	f.StringP("config", "c", config.DefaultIdentityPath(), "Path to config.json identity file")
	f.Bool("fullscreen", false, "Force a fullscreen window for a single-zone layout")
	f.String("listen", "0.0.0.0", "Control API listen address")
	f.Int("port", config.DefaultServerPort, "Control API port")
	f.Bool("no-server", false, "Disable the control API")
	f.String("db", config.DefaultDatabasePath, "Settings database path (empty disables persistence)")
	f.Float64("interval", settings.DefaultIntervalSec, "Image interval in seconds (minimum 0.5)")
	f.String("transition", motion.Crossfade.String(), "Transition mode: crossfade, slide, flip, zoom, pan")
	f.Bool("shuffle", false, "Shuffle the playback order")
	f.Uint32("seed", settings.DefaultSeed, "Shuffle seed")
	f.BoolVar(&setResolution, "set-resolution", false, "Set the framebuffer resolution to the screen size with fbset")

	return cmd
}

// reloadOnHangup re-reads the heartbeat identity on SIGHUP.
func reloadOnHangup(ctx context.Context, c *api.Client) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log := logger.Component("main")
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := c.ReloadConfig(); err != nil {
				log.Warn().Err(err).Msg("identity reload failed")
			}
		}
	}
}

// loadTemplate resolves the layout: a template file, a preset or a
// fullscreen zone on the primary source.
func loadTemplate(cfg *config.Config) (*template.Template, error) {
	switch {
	case cfg.Player.Template != "":
		tmpl, err := template.LoadFromFile(cfg.Player.Template)
		if err != nil {
			return nil, fmt.Errorf("template load: %w", err)
		}
		return tmpl, nil
	case cfg.Player.Layout != "":
		sources := cfg.Player.LayoutSources
		if len(sources) == 0 {
			sources = []string{cfg.PrimarySource()}
		}
		tmpl, err := template.Preset(cfg.Player.Layout, sources...)
		if err != nil {
			return nil, fmt.Errorf("layout: %w", err)
		}
		return tmpl, nil
	default:
		return template.Fullscreen(cfg.PrimarySource()), nil
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kiosk-player %s\nBuilt: %s\n", version, buildTime)
		},
	}
}

// checkCmd prints a system health snapshot and resolves every zone's
// media source once.
func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a system health check and list each zone's media",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			status := system.RunHealthCheck(ctx)
			fmt.Printf("CPU Temperature : %.1f°C\n", status.CPUTempC)
			fmt.Printf("Disk Usage      : %.1f%%\n", status.DiskUsedPct)
			fmt.Printf("Disk Free       : %d MB\n", status.DiskFreeBytes/1024/1024)
			fmt.Printf("Throttled       : %v\n", status.Throttled)

			tmpl, err := loadTemplate(cfg)
			if err != nil {
				return err
			}
			fmt.Printf("Template        : %s\n", tmpl.Name)

			var failed int
			for _, z := range tmpl.Ordered() {
				src, err := source.Open(ctx, z.Source, cfg.SourceOptions())
				if err != nil {
					fmt.Printf("  zone %-10s %s: %v\n", z.ID, z.Source, err)
					failed++
					continue
				}
				items, err := src.List(ctx)
				if err != nil {
					fmt.Printf("  zone %-10s %s: %v\n", z.ID, src, err)
					failed++
					continue
				}
				fmt.Printf("  zone %-10s %s: %d item(s)\n", z.ID, src, len(items))
			}
			if failed > 0 {
				return fmt.Errorf("%d zone source(s) failed", failed)
			}
			return nil
		},
	}
	addLayoutFlags(cmd)
	return cmd
}

// orderCmd prints a source's media list in playback order.
func orderCmd() *cobra.Command {
	var (
		shuffle bool
		seed    uint32
	)

	cmd := &cobra.Command{
		Use:   "order SOURCE",
		Short: "Print the playback order of a media source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			src, err := source.Open(ctx, args[0], cfg.SourceOptions())
			if err != nil {
				return err
			}
			items, err := src.List(ctx)
			if err != nil {
				return fmt.Errorf("list %s: %w", src, err)
			}

			for pos, idx := range order.Build(len(items), shuffle, seed) {
				it := items[idx]
				fmt.Printf("%3d  %-5s  %s\n", pos, it.Kind, it.Source)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "Shuffle the order")
	cmd.Flags().Uint32Var(&seed, "seed", settings.DefaultSeed, "Shuffle seed")
	return cmd
}

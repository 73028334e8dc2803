package vlc

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kiosk-player/internal/media"
)

// buildArgs builds the subprocess flags for one item. startAt resumes a
// video part way through.
func buildArgs(item media.Item, cfg Config, startAt time.Duration) []string {
	if runtime.GOOS == "linux" {
		return buildLinuxArgs(item, startAt)
	}
	return buildWindowsArgs(item, cfg, startAt)
}

// mediaArgs are the flags shared by every platform.
func mediaArgs(item media.Item, startAt time.Duration) []string {
	args := []string{
		"--no-video-title-show", // No filename overlay
		"--no-osd",              // No on-screen display
		"--no-spu",              // No subtitles

		"--avcodec-hw=any",           // HW decode (V4L2 M2M on RPi5)
		"--avcodec-threads=0",        // Auto-detect cores
		"--avcodec-skiploopfilter=0", // Keep deblocking

		"--file-caching=8000",
		"--network-caching=3000",

		"--clock-jitter=0",
		"--deinterlace=0",

		"--quiet",
	}
	if item.IsImage() {
		// the engine decides when an image leaves the screen
		args = append(args, "--image-duration=-1")
	} else {
		args = append(args, "--play-and-exit")
		if startAt > 0 {
			args = append(args, "--start-time="+strconv.FormatFloat(startAt.Seconds(), 'f', 3, 64))
		}
	}
	if item.Muted || item.IsImage() {
		args = append(args, "--no-audio")
	}
	return args
}

// buildLinuxArgs builds flags for cvlc (no Qt interface).
// Window positioning is handled by xdotool, not VLC flags.
func buildLinuxArgs(item media.Item, startAt time.Duration) []string {
	args := mediaArgs(item, startAt)
	args = append(args, "--aout=alsa")
	return append(args, item.Source)
}

// buildWindowsArgs builds flags for vlc.exe (Qt interface with kiosk flags).
func buildWindowsArgs(item media.Item, cfg Config, startAt time.Duration) []string {
	args := []string{
		"--no-video-deco",
		"--video-on-top",
		"--mouse-hide-timeout=0",
		"--no-qt-fs-controller",
		"--no-qt-name-in-title",
		"--no-qt-privacy-ask",
		"--vout=direct3d11",
	}
	args = append(args, mediaArgs(item, startAt)...)

	if cfg.Fullscreen {
		args = append(args, "--fullscreen")
	} else {
		args = append(args,
			"--width="+strconv.Itoa(cfg.Rect.Width),
			"--height="+strconv.Itoa(cfg.Rect.Height),
			"--video-x="+strconv.Itoa(cfg.Rect.X),
			"--video-y="+strconv.Itoa(cfg.Rect.Y),
		)
	}
	return append(args, item.Source)
}

// positionWindow uses xdotool to position the VLC video window.
// override-redirect removes the window from WM control entirely:
//   - No title bar or borders (WM doesn't draw decorations)
//   - No taskbar entry
//   - Exact pixel positioning
func positionWindow(log zerolog.Logger, pid int, cfg Config) {
	pidStr := strconv.Itoa(pid)
	wStr := strconv.Itoa(cfg.Rect.Width)
	hStr := strconv.Itoa(cfg.Rect.Height)
	xStr := strconv.Itoa(cfg.Rect.X)
	yStr := strconv.Itoa(cfg.Rect.Y)

	for attempt := 0; attempt < 50; attempt++ {
		time.Sleep(200 * time.Millisecond)

		out, err := exec.Command("xdotool", "search", "--pid", pidStr).Output()
		if err != nil || strings.TrimSpace(string(out)) == "" {
			continue
		}

		lines := strings.Split(strings.TrimSpace(string(out)), "\n")
		windowID := lines[len(lines)-1]

		exec.Command("xdotool", "set_window", "--overrideredirect", "1", windowID).Run()
		exec.Command("xdotool", "windowsize", windowID, wStr, hStr).Run()
		exec.Command("xdotool", "windowmove", windowID, xStr, yStr).Run()
		exec.Command("xdotool", "windowraise", windowID).Run()

		log.Debug().Str("window", windowID).Str("geometry", wStr+"x"+hStr+"+"+xStr+"+"+yStr).Msg("window positioned")
		return
	}
	log.Warn().Int("pid", pid).Msg("could not find VLC window after 10s")
}

func findVLC() (string, error) {
	// On Linux, prefer cvlc (VLC without the Qt GUI, video only).
	if runtime.GOOS == "linux" {
		for _, name := range []string{"cvlc", "/usr/bin/cvlc"} {
			if path, err := exec.LookPath(name); err == nil {
				return path, nil
			}
			if _, err := os.Stat(name); err == nil {
				return name, nil
			}
		}
	}

	if path, err := exec.LookPath("vlc"); err == nil {
		return path, nil
	}

	var candidates []string
	switch runtime.GOOS {
	case "windows":
		candidates = []string{
			`C:\Program Files\VideoLAN\VLC\vlc.exe`,
			`C:\Program Files (x86)\VideoLAN\VLC\vlc.exe`,
		}
	case "darwin":
		candidates = []string{
			"/Applications/VLC.app/Contents/MacOS/VLC",
		}
	default:
		candidates = []string{
			"/usr/bin/cvlc",
			"/usr/bin/vlc",
			"/snap/bin/vlc",
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", errors.New("VLC not found, install with: sudo apt install vlc")
}

// Package motion maps a transition mode and media kind to the three
// declarative visual states a layer moves through: enter, settled and exit.
package motion

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TransitionDuration is the nominal length of the eased visual transition
// between two layers.
const TransitionDuration = 550 * time.Millisecond

// ErrInvalidMode is returned by ParseMode for unknown mode names.
var ErrInvalidMode = errors.New("invalid transition mode")

// Mode selects the transition visuals.
type Mode int

const (
	Crossfade Mode = iota
	Slide
	Flip
	Zoom
	Pan
)

var modeNames = [...]string{"crossfade", "slide", "flip", "zoom", "pan"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "crossfade"
	}
	return modeNames[m]
}

// ParseMode resolves a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return Crossfade, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Modes lists every supported mode in table order.
func Modes() []Mode {
	return []Mode{Crossfade, Slide, Flip, Zoom, Pan}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// State is one set of visual parameters. X is a horizontal offset in
// pixels, RotateY is in degrees, Perspective is zero when unused.
type State struct {
	Opacity     float64 `json:"opacity"`
	X           float64 `json:"x"`
	RotateY     float64 `json:"rotateY"`
	Scale       float64 `json:"scale"`
	Perspective float64 `json:"perspective,omitempty"`
}

// Profile holds the three states of a layer for one mode.
type Profile struct {
	Enter   State `json:"enter"`
	Settled State `json:"settled"`
	Exit    State `json:"exit"`
}

var settled = State{Opacity: 1, Scale: 1}

// Lookup returns the motion profile for mode. kenBurns only changes the
// crossfade profile, and only for images.
func Lookup(mode Mode, isImage, kenBurns bool) Profile {
	switch mode {
	case Slide:
		return Profile{
			Enter:   State{X: 60, Scale: 1},
			Settled: settled,
			Exit:    State{X: -60, Scale: 1},
		}
	case Flip:
		return Profile{
			Enter:   State{RotateY: -70, X: 40, Scale: 1, Perspective: 1200},
			Settled: settled,
			Exit:    State{RotateY: 70, X: -40, Scale: 1},
		}
	case Zoom:
		return Profile{
			Enter:   State{Scale: 0.97},
			Settled: settled,
			Exit:    State{Scale: 1.03},
		}
	case Pan:
		return Profile{
			Enter:   State{X: 24, Scale: 1},
			Settled: settled,
			Exit:    State{X: -24, Scale: 1},
		}
	default:
		enter, exit := 1.0, 1.0
		if isImage && kenBurns {
			enter, exit = 1.03, 1.01
		}
		return Profile{
			Enter:   State{Scale: enter},
			Settled: settled,
			Exit:    State{Scale: exit},
		}
	}
}

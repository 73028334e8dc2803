package show

import (
	"time"

	"kiosk-player/internal/media"
	"kiosk-player/internal/motion"
)

// Role tells the presentation layer which of the two layers it is painting.
type Role string

const (
	RoleShown    Role = "shown"
	RoleIncoming Role = "incoming"
)

// Layer is one visual layer: the media, its stable key and the motion
// state to animate towards.
type Layer struct {
	Key    string       `json:"key"`
	Role   Role         `json:"role"`
	Slot   int          `json:"slot"`
	Item   media.Item   `json:"item"`
	Motion motion.State `json:"motion"`
}

// Scene is the render output of an engine. An empty Layers slice means
// there is nothing to show.
type Scene struct {
	Zone          string      `json:"zone"`
	Session       string      `json:"session"`
	Mode          motion.Mode `json:"mode"`
	Transitioning bool        `json:"transitioning"`
	Layers        []Layer     `json:"layers"`
}

// Status is a point-in-time summary used by the API and heartbeats.
type Status struct {
	Zone          string        `json:"zone"`
	Session       string        `json:"session"`
	Items         int           `json:"items"`
	Position      int           `json:"position"`
	Shown         string        `json:"shown,omitempty"`
	Incoming      string        `json:"incoming,omitempty"`
	Ready         bool          `json:"ready"`
	Playing       bool          `json:"playing"`
	Interval      time.Duration `json:"interval"`
	Mode          motion.Mode   `json:"mode"`
	Commits       uint64        `json:"commits"`
	LastCommitAgo time.Duration `json:"lastCommitAgo,omitempty"`
}

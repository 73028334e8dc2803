// Package media provides centralized media type detection and the item
// descriptors the slideshow engine plays, distinguishing between video
// and image content.
package media

import (
	"path/filepath"
	"strings"
)

// Kind represents the kind of media an item carries.
type Kind int

const (
	Unknown Kind = iota
	Video
	Image
)

func (k Kind) String() string {
	switch k {
	case Video:
		return "video"
	case Image:
		return "image"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

// ParseKind maps the list wire names ("image", "video") to a Kind.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video":
		return Video
	case "image":
		return Image
	default:
		return Unknown
	}
}

// Video file extensions.
var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".ts":   true,
	".m4v":  true,
	".hevc": true,
	".flv":  true,
	".wmv":  true,
}

// Image file extensions.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
	".tiff": true,
	".svg":  true,
}

// Detect returns the media kind for a path or URL based on its extension.
// Query strings and fragments are ignored so presigned URLs resolve too.
func Detect(path string) Kind {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	ext := strings.ToLower(filepath.Ext(path))
	if videoExts[ext] {
		return Video
	}
	if imageExts[ext] {
		return Image
	}
	return Unknown
}

// IsSupported returns true if the file has a recognized media extension.
func IsSupported(path string) bool {
	return Detect(path) != Unknown
}

// Item is one entry of an ordered media list. Items are immutable once
// produced by a source.
type Item struct {
	Kind   Kind   `json:"kind"`
	Source string `json:"source"`
	// Muted only applies to video.
	Muted bool `json:"muted"`
}

// NewItem builds an item for src, detecting its kind from the extension.
// Videos start muted.
func NewItem(src string) Item {
	k := Detect(src)
	return Item{Kind: k, Source: src, Muted: k == Video}
}

// Key identifies an item by kind and source. Two items with the same key
// are the same media for rendering purposes.
func (it Item) Key() string {
	return it.Kind.String() + ":" + it.Source
}

// IsImage reports whether the item is an image.
func (it Item) IsImage() bool { return it.Kind == Image }

// IsVideo reports whether the item is a video.
func (it Item) IsVideo() bool { return it.Kind == Video }

// IsRemote reports whether the source is an http(s) URL rather than a
// local path.
func (it Item) IsRemote() bool {
	s := strings.ToLower(it.Source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// FromPaths converts a sorted list of file paths into items, skipping
// anything without a recognized extension.
func FromPaths(paths []string) []Item {
	items := make([]Item, 0, len(paths))
	for _, p := range paths {
		it := NewItem(p)
		if it.Kind == Unknown {
			continue
		}
		items = append(items, it)
	}
	return items
}

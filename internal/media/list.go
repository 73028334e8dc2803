package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidList is returned when a JSON media list does not match the
// external list contract.
var ErrInvalidList = errors.New("invalid media list")

// entry is the wire form of an item: {type, src, muted?}.
type entry struct {
	Type  string `json:"type" validate:"required,oneof=image video"`
	Src   string `json:"src" validate:"required"`
	Muted *bool  `json:"muted,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeList parses a JSON array of {type, src, muted?} entries. Muted
// defaults to true for videos.
func DecodeList(r io.Reader) ([]Item, error) {
	var entries []entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidList, err)
	}

	items := make([]Item, 0, len(entries))
	for i, e := range entries {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidList, i, err)
		}
		it := Item{Kind: ParseKind(e.Type), Source: e.Src}
		if it.Kind == Video {
			it.Muted = true
			if e.Muted != nil {
				it.Muted = *e.Muted
			}
		}
		items = append(items, it)
	}
	return items, nil
}

// EncodeList renders items in the external list format.
func EncodeList(items []Item) ([]byte, error) {
	entries := make([]entry, 0, len(items))
	for _, it := range items {
		e := entry{Type: it.Kind.String(), Src: it.Source}
		if it.Kind == Video {
			muted := it.Muted
			e.Muted = &muted
		}
		entries = append(entries, e)
	}
	return json.Marshal(entries)
}

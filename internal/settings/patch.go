package settings

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"kiosk-player/internal/motion"
)

// Patch is a partial update as accepted by the control API. Nil fields
// are left unchanged. Intervals are clamped, not rejected.
type Patch struct {
	Playing     *bool    `json:"playing,omitempty"`
	IntervalSec *float64 `json:"intervalSec,omitempty"`
	Transition  *string  `json:"transition,omitempty" validate:"omitempty,oneof=crossfade slide flip zoom pan"`
	Shuffle     *bool    `json:"shuffle,omitempty"`
	Seed        *uint32  `json:"seed,omitempty"`
	KenBurns    *bool    `json:"kenBurns,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the fields that cannot be clamped.
func (p Patch) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", motion.ErrInvalidMode, err)
	}
	return nil
}

// Apply writes the set fields onto s.
func (p Patch) Apply(s *Settings) {
	if p.Playing != nil {
		s.Playing = *p.Playing
	}
	if p.IntervalSec != nil {
		s.IntervalSec = *p.IntervalSec
	}
	if p.Transition != nil {
		if m, err := motion.ParseMode(*p.Transition); err == nil {
			s.Transition = m
		}
	}
	if p.Shuffle != nil {
		s.Shuffle = *p.Shuffle
	}
	if p.Seed != nil {
		s.Seed = *p.Seed
	}
	if p.KenBurns != nil {
		s.KenBurns = *p.KenBurns
	}
}

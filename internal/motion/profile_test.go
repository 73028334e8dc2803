package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTable(t *testing.T) {
	tests := []struct {
		mode    Mode
		enter   State
		settled State
		exit    State
	}{
		{Slide, State{X: 60, Scale: 1}, State{Opacity: 1, Scale: 1}, State{X: -60, Scale: 1}},
		{Flip, State{RotateY: -70, X: 40, Scale: 1, Perspective: 1200}, State{Opacity: 1, Scale: 1}, State{RotateY: 70, X: -40, Scale: 1}},
		{Zoom, State{Scale: 0.97}, State{Opacity: 1, Scale: 1}, State{Scale: 1.03}},
		{Pan, State{X: 24, Scale: 1}, State{Opacity: 1, Scale: 1}, State{X: -24, Scale: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			// kind and kenBurns only matter for crossfade
			for _, isImage := range []bool{true, false} {
				p := Lookup(tt.mode, isImage, true)
				assert.Equal(t, tt.enter, p.Enter)
				assert.Equal(t, tt.settled, p.Settled)
				assert.Equal(t, tt.exit, p.Exit)
			}
		})
	}
}

func TestCrossfadeKenBurns(t *testing.T) {
	p := Lookup(Crossfade, true, true)
	assert.Equal(t, State{Scale: 1.03}, p.Enter)
	assert.Equal(t, State{Opacity: 1, Scale: 1}, p.Settled)
	assert.Equal(t, State{Scale: 1.01}, p.Exit)

	for _, p := range []Profile{
		Lookup(Crossfade, false, true),
		Lookup(Crossfade, true, false),
		Lookup(Crossfade, false, false),
	} {
		assert.Equal(t, State{Scale: 1}, p.Enter)
		assert.Equal(t, State{Scale: 1}, p.Exit)
	}
}

func TestEnterAndExitAreTransparent(t *testing.T) {
	for _, m := range Modes() {
		p := Lookup(m, true, true)
		assert.Zero(t, p.Enter.Opacity, m.String())
		assert.Zero(t, p.Exit.Opacity, m.String())
		assert.Equal(t, 1.0, p.Settled.Opacity, m.String())
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseMode(" Flip ")
	require.NoError(t, err)
	assert.Equal(t, Flip, got)

	_, err = ParseMode("wipe")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestModeText(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("zoom")))
	assert.Equal(t, Zoom, m)

	b, err := Pan.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "pan", string(b))
}

package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterOrderAndOff(t *testing.T) {
	var e Emitter
	var got []int

	off1 := e.On(Ended, func() { got = append(got, 1) })
	e.On(Ended, func() { got = append(got, 2) })
	e.On(Playing, func() { got = append(got, 99) })

	e.Emit(Ended)
	assert.Equal(t, []int{1, 2}, got)

	off1()
	off1()
	e.Emit(Ended)
	assert.Equal(t, []int{1, 2, 2}, got)
	assert.Equal(t, 1, e.Subscribers(Ended))
}

func TestEmitterHandlerMayUnsubscribe(t *testing.T) {
	var e Emitter
	calls := 0
	var off func()
	off = e.On(CanPlay, func() {
		calls++
		off()
	})

	e.Emit(CanPlay)
	e.Emit(CanPlay)
	assert.Equal(t, 1, calls)
}

func TestFakeRecordsAndFails(t *testing.T) {
	f := NewFake()
	f.FailOn["play"] = true

	assert.NoError(t, f.Load())
	assert.ErrorIs(t, f.Play(), ErrFake)
	assert.NoError(t, f.Pause())
	assert.Equal(t, []string{"load", "play", "pause"}, f.Calls())
	assert.False(t, f.IsPlaying())
}

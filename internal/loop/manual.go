package loop

import (
	"sort"
	"time"
)

// Manual is a virtual-time Scheduler. Nothing happens until the caller
// flushes the queue or advances the clock, which makes timer-driven code
// deterministic under test.
type Manual struct {
	now    time.Time
	queue  []func()
	timers []*manualTimer
	seq    uint64
}

type manualTimer struct {
	at      time.Time
	seq     uint64
	fn      func()
	stopped bool
}

func (mt *manualTimer) Stop() bool {
	was := !mt.stopped
	mt.stopped = true
	return was
}

// NewManual starts the virtual clock at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Post queues fn; it runs on the next Flush or Advance.
func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

// AfterFunc arms fn at Now()+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.seq++
	mt := &manualTimer{at: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, mt)
	return mt
}

// Now returns the virtual clock.
func (m *Manual) Now() time.Time { return m.now }

// Flush runs queued callbacks, including ones they post, until the queue
// is empty.
func (m *Manual) Flush() {
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in time order
// and flushing the queue after each one.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.Flush()
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.now = next.at
		next.stopped = true
		next.fn()
		m.Flush()
	}
	m.now = target
}

// Pending reports how many armed timers have not fired or been stopped.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// NextAt returns when the earliest armed timer fires.
func (m *Manual) NextAt() (time.Time, bool) {
	next := m.nextDue(time.Time{})
	if next == nil {
		return time.Time{}, false
	}
	return next.at, true
}

// nextDue returns the earliest live timer due at or before limit; a zero
// limit means no bound.
func (m *Manual) nextDue(limit time.Time) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].seq < live[j].seq
		}
		return live[i].at.Before(live[j].at)
	})
	if !limit.IsZero() && live[0].at.After(limit) {
		return nil
	}
	return live[0]
}

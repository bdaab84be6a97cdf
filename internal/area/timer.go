package area

import (
	"time"

	"github.com/benbjohnson/clock"
)

// timerSlot holds at most one pending timer. Arming or stopping bumps the
// generation so a fire that was already queued in the inbox is recognised
// as stale and dropped.
type timerSlot struct {
	t   *clock.Timer
	gen uint64
}

func (s *timerSlot) arm(c clock.Clock, d time.Duration, fire func(gen uint64)) {
	s.stop()
	gen := s.gen
	s.t = c.AfterFunc(d, func() { fire(gen) })
}

func (s *timerSlot) stop() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	s.gen++
}

// take reports whether gen is the live timer and clears it if so.
func (s *timerSlot) take(gen uint64) bool {
	if s.t == nil || gen != s.gen {
		return false
	}
	s.t = nil
	return true
}

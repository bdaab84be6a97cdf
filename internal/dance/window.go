package dance

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidLayout = errors.New("invalid key viewer layout")

// Layout is the geometry of the scrolling key viewer, in pixels. The prompts
// scroll from above the viewport down past the press line over exactly one
// round duration, so elapsed time maps to a scroll offset.
type Layout struct {
	KeySize        float64
	KeySpacing     float64
	ViewportHeight float64
	LineOffset     float64 // distance of the press line from the viewport bottom
}

// DefaultLayout puts window 0 of a 5s, 3-key round at [1.5s, 2.0s).
var DefaultLayout = Layout{
	KeySize:        50,
	KeySpacing:     25,
	ViewportHeight: 275,
	LineOffset:     125,
}

func (l Layout) pitch() float64 { return l.KeySize + l.KeySpacing }

// rate is the scroll speed in px per millisecond.
func (l Layout) rate(duration time.Duration, numKeys int) float64 {
	contentExtent := float64(numKeys) * l.pitch()
	totalTravel := contentExtent + l.ViewportHeight
	return totalTravel / float64(duration.Milliseconds())
}

// ActiveIndex reports which key index is over the press line after elapsed
// time since the round started. It is a pure function of its inputs so it
// can be called on every key press without accumulating drift.
func (l Layout) ActiveIndex(duration time.Duration, numKeys int, elapsed time.Duration) (int, bool) {
	if duration.Milliseconds() <= 0 || numKeys <= 0 || elapsed <= 0 {
		return 0, false
	}
	traveled := l.rate(duration, numKeys) * float64(elapsed.Milliseconds())
	dist := traveled - (l.ViewportHeight - l.LineOffset)
	if dist < 0 {
		return 0, false
	}
	index := int(math.Floor(dist / l.pitch()))
	if index >= numKeys {
		return 0, false
	}
	if math.Mod(dist, l.pitch()) >= l.KeySize {
		return 0, false
	}
	return index, true
}

// Window returns the elapsed-time range [start, end) during which index is
// over the press line.
func (l Layout) Window(duration time.Duration, numKeys, index int) (start, end time.Duration) {
	r := l.rate(duration, numKeys)
	if r <= 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return 0, 0
	}
	base := l.ViewportHeight - l.LineOffset + float64(index)*l.pitch()
	start = time.Duration(math.Round(base/r)) * time.Millisecond
	end = time.Duration(math.Round((base+l.KeySize)/r)) * time.Millisecond
	return start, end
}

// Validate rejects geometry that would make every index unreachable.
func (l Layout) Validate() error {
	if l.KeySize <= 0 || l.KeySpacing < 0 || l.ViewportHeight <= 0 {
		return fmt.Errorf("%w: key size and viewport height must be positive", ErrInvalidLayout)
	}
	if l.LineOffset < 0 || l.LineOffset > l.ViewportHeight {
		return fmt.Errorf("%w: line offset must lie inside the viewport", ErrInvalidLayout)
	}
	return nil
}

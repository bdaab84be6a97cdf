package mirror

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
)

// KeyResult is the local grade of one prompt in the current round.
type KeyResult int8

const (
	Unset KeyResult = iota
	Correct
	Incorrect
)

func (r KeyResult) String() string {
	switch r {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unset"
	}
}

type Option func(*Mirror)

func WithClock(c clock.Clock) Option { return func(m *Mirror) { m.clock = c } }

// Mirror is a client's replica of one area. Each snapshot field is an
// observable Field, so listeners only hear about fields that changed.
//
// Subscribers run on the updating goroutine after the update has been
// applied and its lock released, so they may read any field, call
// CurrentRound, or grade a press.
type Mirror struct {
	id    string
	clock clock.Clock

	// update serializes state changes from ApplySnapshot, RecordResult and
	// round expiry. Notifications are delivered after it is released.
	update sync.Mutex

	// mu guards the local round clock.
	mu         sync.Mutex
	roundStart time.Time
	started    bool
	expiry     *clock.Timer
	expiryGen  uint64

	musicQueue   *Field[[]dance.TrackInfo]
	currentTrack *Field[*dance.TrackInfo]
	roundID      *Field[string]
	keySequence  *Field[dance.KeySequence]
	duration     *Field[int]
	points       *Field[map[string]int]
	roundActive  *Field[bool]
	keyResults   *Field[[]KeyResult]
}

func New(areaID string, opts ...Option) *Mirror {
	m := &Mirror{
		id:           areaID,
		clock:        clock.New(),
		musicQueue:   NewField([]dance.TrackInfo{}, dance.TracksEqual),
		currentTrack: NewField[*dance.TrackInfo](nil, sameTrack),
		roundID:      NewComparableField(""),
		keySequence:  NewField(dance.KeySequence{}, equalKeys),
		duration:     NewComparableField(0),
		points:       NewField(map[string]int{}, equalPoints),
		roundActive:  NewComparableField(false),
		keyResults:   NewField([]KeyResult{}, equalSlices[KeyResult]),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func equalSlices[E comparable](a, b []E) bool { return slices.Equal(a, b) }

func equalKeys(a, b dance.KeySequence) bool { return slices.Equal(a, b) }

func equalPoints(a, b map[string]int) bool { return maps.Equal(a, b) }

// sameTrack compares by identity (url) only.
func sameTrack(a, b *dance.TrackInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.URL == b.URL
}

func (m *Mirror) ID() string { return m.id }

func (m *Mirror) MusicQueue() Observable[[]dance.TrackInfo] { return m.musicQueue }

// CurrentTrack is the head of the queue, or nil when nothing is queued.
func (m *Mirror) CurrentTrack() Observable[*dance.TrackInfo] { return m.currentTrack }

func (m *Mirror) RoundID() Observable[string] { return m.roundID }

func (m *Mirror) KeySequence() Observable[dance.KeySequence] { return m.keySequence }

// Duration is the round length in seconds.
func (m *Mirror) Duration() Observable[int] { return m.duration }

func (m *Mirror) Points() Observable[map[string]int] { return m.points }

// RoundActive turns true when a new round id is seen and false when the
// round id is cleared or the local round timer expires, whichever is first.
func (m *Mirror) RoundActive() Observable[bool] { return m.roundActive }

func (m *Mirror) KeyResults() Observable[[]KeyResult] { return m.keyResults }

// RoundStart is the local time the current round id was first observed.
func (m *Mirror) RoundStart() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roundStart, m.started
}

// Round is a consistent view of the round fields for grading.
type Round struct {
	ID       string
	Keys     dance.KeySequence
	Duration time.Duration
	Start    time.Time
}

// CurrentRound reports false when no round start has been observed.
func (m *Mirror) CurrentRound() (Round, bool) {
	m.update.Lock()
	defer m.update.Unlock()

	start, ok := m.RoundStart()
	if !ok {
		return Round{}, false
	}
	return Round{
		ID:       m.roundID.Get(),
		Keys:     m.keySequence.Get(),
		Duration: time.Duration(m.duration.Get()) * time.Second,
		Start:    start,
	}, true
}

// Snapshot reassembles the mirrored state.
func (m *Mirror) Snapshot() dance.Area {
	return dance.Area{
		ID:          m.id,
		MusicQueue:  slices.Clone(m.musicQueue.Get()),
		RoundID:     m.roundID.Get(),
		KeySequence: slices.Clone(m.keySequence.Get()),
		Duration:    m.duration.Get(),
		Points:      maps.Clone(m.points.Get()),
	}
}

// ApplySnapshot diffs s into the mirror field by field. The area id is
// fixed at construction and never re-applied.
func (m *Mirror) ApplySnapshot(s dance.Area) {
	var p pending
	defer p.flush()
	m.update.Lock()
	defer m.update.Unlock()

	prev := m.roundID.Get()
	newRound := s.RoundID != "" && s.RoundID != prev
	switch {
	case newRound:
		m.startRoundClock(time.Duration(s.Duration) * time.Second)
		p.add(m.keyResults.swap(make([]KeyResult, len(s.KeySequence))))
	case s.RoundID == "" && prev != "":
		m.stopRoundClock()
		p.add(m.keyResults.swap([]KeyResult{}))
	}

	queue := slices.Clone(s.MusicQueue)
	if queue == nil {
		queue = []dance.TrackInfo{}
	}
	p.add(m.musicQueue.swap(queue))
	if head, ok := s.CurrentTrack(); ok {
		p.add(m.currentTrack.swap(&head))
	} else {
		p.add(m.currentTrack.swap(nil))
	}

	seq := slices.Clone(s.KeySequence)
	if seq == nil {
		seq = dance.KeySequence{}
	}
	p.add(m.keySequence.swap(seq))
	p.add(m.duration.swap(s.Duration))

	pts := maps.Clone(s.Points)
	if pts == nil {
		pts = map[string]int{}
	}
	p.add(m.points.swap(pts))

	p.add(m.roundID.swap(s.RoundID))
	switch {
	case newRound:
		p.add(m.roundActive.swap(true))
	case s.RoundID == "":
		p.add(m.roundActive.swap(false))
	}
}

// RecordResult grades index in round roundID. Only the first grade for an
// index sticks; later calls, and calls for a round that is no longer
// current, report false.
func (m *Mirror) RecordResult(roundID string, index int, success bool) bool {
	var p pending
	defer p.flush()
	m.update.Lock()
	defer m.update.Unlock()

	if roundID == "" || roundID != m.roundID.Get() {
		return false
	}
	cur := m.keyResults.Get()
	if index < 0 || index >= len(cur) || cur[index] != Unset {
		return false
	}
	next := slices.Clone(cur)
	next[index] = Incorrect
	if success {
		next[index] = Correct
	}
	p.add(m.keyResults.swap(next))
	return true
}

// pending queues field notifications until the update lock is released.
// Deferred flush runs after the deferred unlock.
type pending []func()

func (p *pending) add(fn func()) {
	if fn != nil {
		*p = append(*p, fn)
	}
}

func (p *pending) flush() {
	for _, fn := range *p {
		fn()
	}
}

// Close stops the local round timer.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
}

func (m *Mirror) startRoundClock(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.roundStart = m.clock.Now()
	m.started = true
	gen := m.expiryGen
	if d > 0 {
		m.expiry = m.clock.AfterFunc(d, func() { m.expire(gen) })
	}
}

func (m *Mirror) stopRoundClock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.roundStart = time.Time{}
	m.started = false
}

func (m *Mirror) stopTimerLocked() {
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
	m.expiryGen++
}

func (m *Mirror) expire(gen uint64) {
	var p pending
	defer p.flush()
	m.update.Lock()
	defer m.update.Unlock()

	m.mu.Lock()
	live := gen == m.expiryGen && m.expiry != nil
	if live {
		m.expiry = nil
	}
	m.mu.Unlock()

	if live {
		p.add(m.roundActive.swap(false))
	}
}

package main

import (
	"math/rand"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/grader"
	"github.com/DoyleJ11/dance-area-backend/internal/mirror"
)

// bot presses every prompt in the middle of its window, getting it right
// with the configured accuracy.
type bot struct {
	mirror   *mirror.Mirror
	grader   *grader.Grader
	clock    clock.Clock
	layout   dance.Layout
	accuracy float64
	log      *zap.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	timers []*clock.Timer
}

func (b *bot) play(roundID string) {
	b.cancel()
	round, ok := b.mirror.CurrentRound()
	if !ok || round.ID != roundID {
		return
	}
	b.log.Info("round", zap.String("id", round.ID), zap.Int("keys", len(round.Keys)))

	b.mu.Lock()
	defer b.mu.Unlock()
	elapsed := b.clock.Since(round.Start)
	for i, want := range round.Keys {
		start, end := b.layout.Window(round.Duration, len(round.Keys), i)
		wait := (start+end)/2 - elapsed
		if wait < 0 {
			continue
		}
		key := want
		if b.rng.Float64() >= b.accuracy {
			key = dance.Alphabet[b.rng.Intn(len(dance.Alphabet))]
		}
		b.timers = append(b.timers, b.clock.AfterFunc(wait, func() {
			b.grader.Press(key)
		}))
	}
}

func (b *bot) cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
}

// watchRounds signals whenever the mirror's round id changes, and once up
// front for a round that is already running. Signals coalesce; readers
// should take the current id from the mirror.
func watchRounds(m *mirror.Mirror) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	signal := func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	unsub := m.RoundID().Subscribe(func(string) { signal() })
	signal()
	return ch, unsub
}

package area

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/metrics"
)

// startRound generates a fresh round and arms the timer for the next one.
// Any pending round timer is replaced.
func (a *Area) startRound() {
	a.state.RoundID = a.newID()
	a.state.KeySequence = dance.GenerateKeySequence(a.rng, a.cfg.KeysPerRound)
	a.state.Duration = int(a.cfg.RoundDuration / time.Second)
	clear(a.scored)

	a.round.arm(a.clock, time.Duration(a.state.Duration)*time.Second, func(gen uint64) {
		a.post(roundTimerFired{gen: gen})
	})

	metrics.RoundsStarted.WithLabelValues(a.ID()).Inc()
	a.log.Debug("round started",
		zap.String("round", a.state.RoundID),
		zap.Int("keys", len(a.state.KeySequence)),
		zap.Int("duration", a.state.Duration))
}

func (a *Area) roundElapsed(gen uint64) {
	if !a.round.take(gen) {
		a.log.Debug("dropping stale round timer")
		return
	}
	if !a.state.Occupied() {
		a.stopRounds()
		a.broadcastState()
		return
	}
	a.startRound()
	a.broadcastState()
}

func (a *Area) stopRounds() {
	a.round.stop()
	a.state.RoundID = ""
	a.state.KeySequence = dance.KeySequence{}
	a.state.Duration = 0
	clear(a.scored)
}

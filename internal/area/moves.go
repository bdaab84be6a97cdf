package area

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/metrics"
)

// scoreMove checks a graded move against the live round and awards points
// for a correct key. The client's success flag is re-derived here from the
// round's key sequence. Every accepted move is relayed to subscribers.
func (a *Area) scoreMove(m dance.MoveResult) {
	reject := func(reason string) {
		metrics.MovesScored.WithLabelValues(a.ID(), "rejected").Inc()
		a.log.Debug("move ignored",
			zap.String("player", m.PlayerID),
			zap.String("round", m.RoundID),
			zap.Int("index", m.Index),
			zap.String("reason", reason))
	}

	switch {
	case m.AreaID != "" && m.AreaID != a.ID():
		reject("wrong area")
		return
	case a.state.RoundID == "" || m.RoundID != a.state.RoundID:
		reject("stale round")
		return
	case m.Index < 0 || m.Index >= len(a.state.KeySequence):
		reject("index out of range")
		return
	}
	if _, ok := a.state.Points[m.PlayerID]; !ok {
		reject("not an occupant")
		return
	}

	done := a.scored[m.PlayerID]
	if done == nil {
		done = make(map[int]bool)
		a.scored[m.PlayerID] = done
	}
	if done[m.Index] {
		reject("already graded")
		return
	}
	done[m.Index] = true

	m.AreaID = a.ID()
	m.Success = m.KeyPressed == a.state.KeySequence[m.Index]

	result := "miss"
	if m.Success {
		result = "hit"
	}
	metrics.MovesScored.WithLabelValues(a.ID(), result).Inc()

	a.broadcast(Event{Type: EventMove, Version: a.version, Move: &m})
	if m.Success && a.addPoints(m.PlayerID, a.cfg.PointsPerMove) {
		a.broadcastState()
	}
}

// relayRating forwards one occupant's rating of another to every
// subscriber. Ratings do not change points.
func (a *Area) relayRating(r dance.Rating) {
	if err := r.Validate(); err != nil {
		a.log.Debug("rating ignored", zap.Error(err))
		return
	}
	if r.Sender == r.Recipient {
		a.log.Debug("rating ignored, self rating", zap.String("player", r.Sender))
		return
	}
	_, senderIn := a.state.Points[r.Sender]
	_, recipientIn := a.state.Points[r.Recipient]
	if !senderIn || !recipientIn {
		a.log.Debug("rating ignored, player not in area",
			zap.String("sender", r.Sender), zap.String("recipient", r.Recipient))
		return
	}
	r.AreaID = a.ID()
	a.broadcast(Event{Type: EventRating, Version: a.version, Rating: &r})
}

package area

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/metrics"
)

// join adds an occupant with zero points. The first occupant starts the
// round loop. Re-joining, from the same or another connection, only
// records the connection so points are not wiped.
func (a *Area) join(playerID, clientID string) bool {
	if playerID == "" {
		return false
	}
	if a.conns[playerID] == nil {
		a.conns[playerID] = make(map[string]struct{})
	}
	a.conns[playerID][clientID] = struct{}{}
	if _, ok := a.state.Points[playerID]; ok {
		return false
	}
	a.state.Points[playerID] = 0
	metrics.Occupants.WithLabelValues(a.ID()).Set(float64(len(a.state.Points)))
	a.log.Info("player joined", zap.String("player", playerID), zap.Int("occupants", len(a.state.Points)))

	if len(a.state.Points) == 1 {
		a.startRound()
	}
	return true
}

// leave drops clientID's claim on playerID and removes the occupant once
// no connection holds it. When the last occupant leaves every timer is
// cancelled and the area returns to its initial state.
func (a *Area) leave(playerID, clientID string) bool {
	held, ok := a.conns[playerID]
	if !ok {
		return false
	}
	if _, ok := held[clientID]; !ok {
		return false
	}
	delete(held, clientID)
	if len(held) > 0 {
		return false
	}
	delete(a.conns, playerID)
	if _, ok := a.state.Points[playerID]; !ok {
		return false
	}
	delete(a.state.Points, playerID)
	delete(a.scored, playerID)
	metrics.Occupants.WithLabelValues(a.ID()).Set(float64(len(a.state.Points)))
	a.log.Info("player left", zap.String("player", playerID), zap.Int("occupants", len(a.state.Points)))

	if len(a.state.Points) == 0 {
		a.reset()
	}
	return true
}

// addPoints only ever increases a present player's score.
func (a *Area) addPoints(playerID string, delta int) bool {
	cur, ok := a.state.Points[playerID]
	if !ok || delta <= 0 {
		return false
	}
	a.state.Points[playerID] = cur + delta
	return true
}

func (a *Area) reset() {
	a.stopRounds()
	a.stopMusic()
	a.epoch++
	a.state = dance.NewArea(a.ID())
	a.log.Info("area emptied, state reset")
}

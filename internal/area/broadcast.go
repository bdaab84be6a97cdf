package area

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/metrics"
)

func (a *Area) subscribe(msg Subscribe) {
	if old, ok := a.subs[msg.ClientID]; ok && old != msg.Outbox {
		close(old)
	}
	a.subs[msg.ClientID] = msg.Outbox
	metrics.Subscribers.WithLabelValues(a.ID()).Set(float64(len(a.subs)))

	select {
	case msg.Outbox <- a.snapshot():
	default:
		a.drop(msg.ClientID)
	}
}

func (a *Area) snapshot() Event {
	return Event{Type: EventSnapshot, Version: a.version, Area: a.state.Clone()}
}

// broadcastState bumps the version and pushes the full snapshot. Callers
// must finish mutating state first.
func (a *Area) broadcastState() {
	a.version++
	a.broadcast(a.snapshot())
}

func (a *Area) broadcast(ev Event) {
	for id, ch := range a.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is slow/full - drop it.
			a.drop(id)
		}
	}
}

func (a *Area) drop(clientID string) {
	ch, ok := a.subs[clientID]
	if !ok {
		return
	}
	close(ch)
	delete(a.subs, clientID)
	metrics.Subscribers.WithLabelValues(a.ID()).Set(float64(len(a.subs)))
	a.log.Warn("dropped slow subscriber", zap.String("client", clientID))
}

package hub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"github.com/DoyleJ11/dance-area-backend/internal/area"
)

var (
	ErrDuplicateArea = errors.New("duplicate area id")
	ErrHubClosed     = errors.New("hub closed")
)

type HubMsg interface{ isHubMsg() }

type GetArea struct {
	ID    string
	Reply chan *area.Area
}

// ListAreas replies with every area, ordered by id.
type ListAreas struct {
	Reply chan []*area.Area
}

type ShutdownHub struct {
	Done chan struct{} // optional, closed once every area has stopped
}

func (GetArea) isHubMsg()     {}
func (ListAreas) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the set of area actors. Areas come from static map data, so the
// set is fixed at construction.
type Hub struct {
	inbox chan HubMsg
	areas map[string]*area.Area
	all   []*area.Area // read-only after NewHub

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, areas []*area.Area) (*Hub, error) {
	byID := make(map[string]*area.Area, len(areas))
	for _, a := range areas {
		if _, dup := byID[a.ID()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateArea, a.ID())
		}
		byID[a.ID()] = a
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		areas:  byID,
		all:    slices.Clone(areas),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h, nil
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetArea:
				msg.Reply <- h.areas[msg.ID] // may be nil

			case ListAreas:
				out := make([]*area.Area, 0, len(h.areas))
				for _, a := range h.areas {
					out = append(out, a)
				}
				slices.SortFunc(out, func(x, y *area.Area) int { return strings.Compare(x.ID(), y.ID()) })
				msg.Reply <- out

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}

// shutdown stops every area and waits for their loops to exit.
func (h *Hub) shutdown() {
	for id, a := range h.areas {
		select {
		case a.Inbox() <- area.Shutdown{}:
		case <-a.Done():
		}
		<-a.Done()
		delete(h.areas, id)
	}
}

// Area looks up one area by id. It returns nil when the id is unknown.
func (h *Hub) Area(ctx context.Context, id string) (*area.Area, error) {
	reply := make(chan *area.Area, 1)
	if err := h.send(ctx, GetArea{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

func (h *Hub) Areas(ctx context.Context) ([]*area.Area, error) {
	reply := make(chan []*area.Area, 1)
	if err := h.send(ctx, ListAreas{Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

// Shutdown stops every area. Areas that fail to stop before ctx ends are
// reported together.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.send(ctx, ShutdownHub{Done: done}); err != nil {
		if errors.Is(err, ErrHubClosed) {
			return nil
		}
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		var err error
		for _, a := range h.all {
			select {
			case <-a.Done():
			default:
				err = multierr.Append(err, fmt.Errorf("area %s: %w", a.ID(), ctx.Err()))
			}
		}
		return err
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, h *Hub, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

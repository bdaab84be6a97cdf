package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/area"
	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/hub"
	"github.com/DoyleJ11/dance-area-backend/internal/types"
)

type Options struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	EnqueueTimeout time.Duration
	OriginPatterns []string
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.EnqueueTimeout <= 0 {
		o.EnqueueTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Handler upgrades /ws?area=ID&player=ID. The connection is subscribed to
// the area straight away; the player only becomes an occupant after a
// JoinArea message, and leaves when the connection ends.
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()

	return func(w http.ResponseWriter, r *http.Request) {
		areaID := r.URL.Query().Get("area")
		if areaID == "" {
			http.Error(w, "missing area", http.StatusBadRequest)
			return
		}
		playerID := r.URL.Query().Get("player")
		if playerID == "" {
			playerID = uuid.NewString()
		}

		a, err := h.Area(r.Context(), areaID)
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if a == nil {
			http.Error(w, "area not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		s := &session{
			conn:     conn,
			area:     a,
			playerID: playerID,
			clientID: uuid.NewString(),
			direct:   make(chan types.ServerMessage, 8),
			opts:     opts,
			log:      opts.Logger.With(zap.String("area", areaID), zap.String("player", playerID)),
		}
		s.serve(r.Context())
	}
}

type session struct {
	conn     *websocket.Conn
	area     *area.Area
	playerID string
	clientID string
	direct   chan types.ServerMessage // replies for this connection only
	opts     Options
	log      *zap.Logger
}

func (s *session) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	out := make(chan area.Event, 16)
	if !s.post(ctx, area.Subscribe{ClientID: s.clientID, Outbox: out}) {
		return
	}
	s.log.Debug("connection subscribed")
	defer func() {
		// Best effort; the area may already be gone.
		post := func(m area.Msg) {
			select {
			case s.area.Inbox() <- m:
			case <-s.area.Done():
			}
		}
		post(area.Leave{PlayerID: s.playerID, ClientID: s.clientID})
		post(area.Unsubscribe{ClientID: s.clientID})
		s.log.Debug("connection closed")
	}()

	go s.writeLoop(ctx, cancel, out)
	go s.keepAlive(ctx, cancel)

	// Reader loop
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					s.log.Debug("read failed", zap.Error(err))
				}
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			s.reply(types.ServerMessage{Type: types.MsgError, Error: "bad json"})
			continue
		}
		if err := s.dispatch(ctx, cm); err != nil {
			s.reply(types.ServerMessage{Type: types.MsgError, Error: err.Error()})
		}
	}
}

var errUnknownType = errors.New("unknown type")

func (s *session) dispatch(ctx context.Context, cm types.ClientMessage) error {
	switch cm.Type {
	case types.MsgJoinArea:
		s.post(ctx, area.Join{PlayerID: s.playerID, ClientID: s.clientID})

	case types.MsgLeaveArea:
		s.post(ctx, area.Leave{PlayerID: s.playerID, ClientID: s.clientID})

	case types.MsgEnqueueTrack:
		if cm.URL == "" {
			return errors.New("missing url")
		}
		go s.enqueue(ctx, cm.URL)

	case types.MsgDanceMove:
		key, err := dance.ParseKey(string(cm.KeyPressed))
		if err != nil {
			return err
		}
		s.post(ctx, area.Move{Result: dance.MoveResult{
			AreaID:     s.area.ID(),
			PlayerID:   s.playerID,
			RoundID:    cm.RoundID,
			Index:      cm.Index,
			Success:    cm.Success,
			KeyPressed: key,
		}})

	case types.MsgDanceRating:
		r := dance.Rating{AreaID: s.area.ID(), Sender: s.playerID, Recipient: cm.Recipient, Rating: cm.Rating}
		if err := r.Validate(); err != nil {
			return err
		}
		s.post(ctx, area.Rate{Rating: r})

	default:
		return errUnknownType
	}
	return nil
}

func (s *session) enqueue(ctx context.Context, url string) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.EnqueueTimeout)
	defer cancel()

	res, err := s.area.EnqueueTrack(ctx, url)
	msg := types.ServerMessage{Type: types.MsgEnqueueResult, URL: url, Queued: res.Queued}
	switch {
	case err != nil:
		msg.Error = err.Error()
	case res.Err != nil:
		msg.Error = res.Err.Error()
	default:
		track := res.Track
		msg.Track = &track
	}
	s.reply(msg)
}

func (s *session) post(ctx context.Context, m area.Msg) bool {
	select {
	case s.area.Inbox() <- m:
		return true
	case <-s.area.Done():
	case <-ctx.Done():
	}
	return false
}

// reply never blocks the reader; a full direct queue means the writer is
// stuck and the connection is about to be dropped anyway.
func (s *session) reply(msg types.ServerMessage) {
	select {
	case s.direct <- msg:
	default:
		s.log.Warn("reply dropped", zap.String("type", msg.Type))
	}
}

func (s *session) writeLoop(ctx context.Context, cancel context.CancelFunc, out <-chan area.Event) {
	defer cancel()
	for {
		var msg types.ServerMessage
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-out:
			if !ok {
				// The area dropped us (slow or shut down).
				s.conn.Close(websocket.StatusGoingAway, "unsubscribed")
				return
			}
			msg = fromEvent(ev)
		case msg = <-s.direct:
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			s.log.Error("marshal server message", zap.Error(err))
			continue
		}
		wctx, wcancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
		err = s.conn.Write(wctx, websocket.MessageText, payload)
		wcancel()
		if err != nil {
			s.log.Debug("write failed", zap.Error(err))
			return
		}
	}
}

func (s *session) keepAlive(ctx context.Context, cancel context.CancelFunc) {
	t := time.NewTicker(s.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, s.opts.PingInterval)
			err := s.conn.Ping(pctx)
			pcancel()
			if err != nil {
				s.log.Debug("ping failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}

func fromEvent(ev area.Event) types.ServerMessage {
	switch ev.Type {
	case area.EventMove:
		return types.ServerMessage{Type: types.MsgDanceMove, Version: ev.Version, Move: ev.Move}
	case area.EventRating:
		return types.ServerMessage{Type: types.MsgDanceRating, Version: ev.Version, Rating: ev.Rating}
	default:
		snap := ev.Area
		return types.ServerMessage{Type: types.MsgAreaSnapshot, Version: ev.Version, Area: &snap}
	}
}

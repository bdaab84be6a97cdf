package area

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/metadata"
	"github.com/DoyleJ11/dance-area-backend/internal/metrics"
)

var (
	ErrAreaClosed    = errors.New("area closed")
	ErrMissingBounds = errors.New("missing width/height for area")
	ErrAreaReset     = errors.New("area emptied before track was resolved")
	ErrInvalidConfig = errors.New("invalid area config")
)

// Bounds is the area's rectangle on the town map.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Config struct {
	RoundDuration        time.Duration
	KeysPerRound         int
	PointsPerMove        int
	DefaultTrackDuration time.Duration
	TrackSpacing         time.Duration
	FetchTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		RoundDuration:        20 * time.Second,
		KeysPerRound:         6,
		PointsPerMove:        1,
		DefaultTrackDuration: 180 * time.Second,
		TrackSpacing:         3 * time.Second,
		FetchTimeout:         5 * time.Second,
	}
}

func (c Config) validate() error {
	switch {
	case c.RoundDuration < time.Second:
		return fmt.Errorf("%w: round duration %v is below one second", ErrInvalidConfig, c.RoundDuration)
	case c.KeysPerRound <= 0:
		return fmt.Errorf("%w: keys per round must be positive", ErrInvalidConfig)
	case c.PointsPerMove <= 0:
		return fmt.Errorf("%w: points per move must be positive", ErrInvalidConfig)
	case c.DefaultTrackDuration <= 0:
		return fmt.Errorf("%w: default track duration must be positive", ErrInvalidConfig)
	case c.TrackSpacing < 0:
		return fmt.Errorf("%w: track spacing must not be negative", ErrInvalidConfig)
	}
	return nil
}

type Option func(*Area)

func WithClock(c clock.Clock) Option { return func(a *Area) { a.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(a *Area) { a.log = l } }

func WithRand(r *rand.Rand) Option { return func(a *Area) { a.rng = r } }

// WithIDs replaces the round id generator.
func WithIDs(next func() string) Option { return func(a *Area) { a.newID = next } }

// Area is the server-side actor for one dance area. All state is owned by
// the loop goroutine; everything else talks to it through Inbox.
type Area struct {
	inbox    chan Msg
	bounds   Bounds
	cfg      Config
	provider metadata.Provider
	clock    clock.Clock
	rng      *rand.Rand
	newID    func() string
	log      *zap.Logger

	state   dance.Area
	version int
	subs    map[string]chan Event

	round   timerSlot
	track   timerSlot
	playing bool

	// epoch changes whenever the area is emptied, so lookups started before
	// that are discarded.
	epoch uint64

	// scored[player][index] marks moves already counted this round.
	scored map[string]map[int]bool

	// conns[player] holds the connections that joined as that player.
	conns map[string]map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates the static configuration and starts the area's loop.
func New(parent context.Context, id string, bounds Bounds, provider metadata.Provider, cfg Config, opts ...Option) (*Area, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidConfig)
	}
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingBounds, id)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: nil metadata provider", ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(parent)
	a := &Area{
		inbox:    make(chan Msg, 64),
		bounds:   bounds,
		cfg:      cfg,
		provider: provider,
		clock:    clock.New(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:    uuid.NewString,
		log:      zap.NewNop(),
		state:    dance.NewArea(id),
		subs:     make(map[string]chan Event),
		scored:   make(map[string]map[int]bool),
		conns:    make(map[string]map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(zap.String("area", id))

	go a.loop()
	return a, nil
}

func (a *Area) ID() string { return a.state.ID }

func (a *Area) Bounds() Bounds { return a.bounds }

// Inbox exposes the actor's mailbox to the hub and the websocket layer.
func (a *Area) Inbox() chan<- Msg { return a.inbox }

// Done is closed once the loop has exited.
func (a *Area) Done() <-chan struct{} { return a.ctx.Done() }

func (a *Area) loop() {
	for {
		select {
		case <-a.ctx.Done():
			a.shutdown()
			return

		case m := <-a.inbox:
			switch msg := m.(type) {
			case Subscribe:
				a.subscribe(msg)

			case Unsubscribe:
				if ch, ok := a.subs[msg.ClientID]; ok {
					close(ch)
					delete(a.subs, msg.ClientID)
					metrics.Subscribers.WithLabelValues(a.ID()).Set(float64(len(a.subs)))
				}

			case Join:
				if a.join(msg.PlayerID, msg.ClientID) {
					a.broadcastState()
				}

			case Leave:
				if a.leave(msg.PlayerID, msg.ClientID) {
					a.broadcastState()
				}

			case Enqueue:
				a.startFetch(msg)

			case trackFetched:
				if a.trackResolved(msg) {
					a.broadcastState()
				}

			case trackTimerFired:
				a.trackFinished(msg.gen)

			case roundTimerFired:
				a.roundElapsed(msg.gen)

			case Move:
				a.scoreMove(msg.Result)

			case Rate:
				a.relayRating(msg.Rating)

			case GetState:
				msg.Reply <- View{
					Version:        a.version,
					NumSubscribers: len(a.subs),
					Playing:        a.playing,
					Area:           a.state.Clone(),
				}

			case Shutdown:
				a.shutdown()
				return
			}
		}
	}
}

// post is used by timers and fetch goroutines; it gives up once the area
// has shut down instead of blocking forever.
func (a *Area) post(m Msg) {
	select {
	case a.inbox <- m:
	case <-a.ctx.Done():
	}
}

func (a *Area) shutdown() {
	a.round.stop()
	a.track.stop()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
	metrics.Subscribers.DeleteLabelValues(a.ID())
	metrics.Occupants.DeleteLabelValues(a.ID())
	a.cancel()
	a.log.Info("area shut down")
}

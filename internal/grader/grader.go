package grader

import (
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/mirror"
)

// Sink receives graded moves bound for the server.
type Sink interface {
	SendMove(m dance.MoveResult) error
}

type Option func(*Grader)

func WithLogger(l *zap.Logger) Option { return func(g *Grader) { g.log = l } }

// Grader turns local key presses into graded moves for the round held in
// a mirror.
type Grader struct {
	mirror   *mirror.Mirror
	playerID string
	sink     Sink
	clock    clock.Clock
	layout   dance.Layout
	log      *zap.Logger

	mu        sync.Mutex
	listeners map[int]func(dance.MoveResult)
	nextID    int
}

// New builds a grader. sink may be nil for purely local play.
func New(m *mirror.Mirror, playerID string, sink Sink, clk clock.Clock, layout dance.Layout, opts ...Option) *Grader {
	if clk == nil {
		clk = clock.New()
	}
	g := &Grader{
		mirror:    m,
		playerID:  playerID,
		sink:      sink,
		clock:     clk,
		layout:    layout,
		log:       zap.NewNop(),
		listeners: map[int]func(dance.MoveResult){},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Press grades key against the prompt crossing the line right now. It
// reports false, and sends nothing, when no round is running, no prompt is
// in its window, or that prompt was already graded.
func (g *Grader) Press(key dance.Key) (dance.MoveResult, bool) {
	round, ok := g.mirror.CurrentRound()
	if !ok {
		return dance.MoveResult{}, false
	}
	elapsed := g.clock.Since(round.Start)
	index, ok := g.layout.ActiveIndex(round.Duration, len(round.Keys), elapsed)
	if !ok || index >= len(round.Keys) {
		return dance.MoveResult{}, false
	}

	success := round.Keys[index] == key
	if !g.mirror.RecordResult(round.ID, index, success) {
		return dance.MoveResult{}, false
	}

	move := dance.MoveResult{
		AreaID:     g.mirror.ID(),
		PlayerID:   g.playerID,
		RoundID:    round.ID,
		Index:      index,
		Success:    success,
		KeyPressed: key,
	}
	g.emit(move)
	if g.sink != nil {
		if err := g.sink.SendMove(move); err != nil {
			g.log.Warn("send move", zap.Int("index", index), zap.Error(err))
		}
	}
	return move, true
}

// OnMove registers a local listener for graded moves.
func (g *Grader) OnMove(fn func(dance.MoveResult)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

func (g *Grader) emit(m dance.MoveResult) {
	g.mu.Lock()
	fns := make([]func(dance.MoveResult), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}

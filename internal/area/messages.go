package area

import "github.com/DoyleJ11/dance-area-backend/internal/dance"

type Msg interface{ isAreaMsg() }

// Subscribe registers a connection for area events. The current snapshot is
// sent immediately.
type Subscribe struct {
	ClientID string
	Outbox   chan Event
}

func (Subscribe) isAreaMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isAreaMsg() {}

// Join makes a player an occupant of the area. ClientID names the
// connection the join came from; a player with several connections stays
// an occupant until every one of them has left.
type Join struct {
	PlayerID string
	ClientID string
}

func (Join) isAreaMsg() {}

// Leave undoes a Join from the same connection. A Leave from a connection
// that never joined is ignored.
type Leave struct {
	PlayerID string
	ClientID string
}

func (Leave) isAreaMsg() {}

// Enqueue asks for a track to be resolved and appended to the music queue.
// Reply, if set, receives exactly one result once the lookup finished.
type Enqueue struct {
	URL   string
	Reply chan EnqueueResult
}

func (Enqueue) isAreaMsg() {}

// Move carries a client-graded key press to be scored.
type Move struct{ Result dance.MoveResult }

func (Move) isAreaMsg() {}

type Rate struct{ Rating dance.Rating }

func (Rate) isAreaMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isAreaMsg() {}

type Shutdown struct{}

func (Shutdown) isAreaMsg() {}

// Posted by the actor's own timers and fetch goroutines.
type roundTimerFired struct{ gen uint64 }

func (roundTimerFired) isAreaMsg() {}

type trackTimerFired struct{ gen uint64 }

func (trackTimerFired) isAreaMsg() {}

type trackFetched struct {
	epoch uint64
	url   string
	info  dance.TrackInfo
	err   error
	reply chan EnqueueResult
}

func (trackFetched) isAreaMsg() {}

type EventType string

const (
	EventSnapshot EventType = "AreaSnapshot"
	EventMove     EventType = "DanceMove"
	EventRating   EventType = "DanceRating"
)

// Event is what subscribers receive. Snapshot events carry a full copy of
// the area; move and rating events are relays.
type Event struct {
	Type    EventType
	Version int
	Area    dance.Area
	Move    *dance.MoveResult
	Rating  *dance.Rating
}

type EnqueueResult struct {
	Track  dance.TrackInfo
	Queued bool
	Err    error
}

type View struct {
	Version        int
	NumSubscribers int
	Playing        bool
	Area           dance.Area
}

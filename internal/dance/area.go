package dance

import (
	"errors"
	"maps"
	"slices"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// Area is the wire snapshot of one dance area. The server owns it and
// pushes full copies to every subscribed client.
type Area struct {
	ID          string         `json:"id"`
	MusicQueue  []TrackInfo    `json:"musicQueue"`
	RoundID     string         `json:"roundId,omitempty"` // empty when no round is active
	KeySequence KeySequence    `json:"keySequence"`
	Duration    int            `json:"duration"` // seconds
	Points      map[string]int `json:"points"`
}

func NewArea(id string) Area {
	return Area{
		ID:          id,
		MusicQueue:  []TrackInfo{},
		KeySequence: KeySequence{},
		Points:      map[string]int{},
	}
}

// Clone returns a deep copy so snapshots handed to subscribers never alias
// the actor's state.
func (a Area) Clone() Area {
	c := a
	c.MusicQueue = slices.Clone(a.MusicQueue)
	if c.MusicQueue == nil {
		c.MusicQueue = []TrackInfo{}
	}
	c.KeySequence = slices.Clone(a.KeySequence)
	if c.KeySequence == nil {
		c.KeySequence = KeySequence{}
	}
	c.Points = maps.Clone(a.Points)
	if c.Points == nil {
		c.Points = map[string]int{}
	}
	return c
}

func (a Area) CurrentTrack() (TrackInfo, bool) {
	if len(a.MusicQueue) == 0 {
		return TrackInfo{}, false
	}
	return a.MusicQueue[0], true
}

func (a Area) RoundActive() bool { return a.RoundID != "" }

func (a Area) Occupied() bool { return len(a.Points) > 0 }

// MoveResult is a graded key press, produced on the client and sent to the
// server for scoring.
type MoveResult struct {
	AreaID     string `json:"areaId"`
	PlayerID   string `json:"playerId"`
	RoundID    string `json:"roundId"`
	Index      int    `json:"index"`
	Success    bool   `json:"success"`
	KeyPressed Key    `json:"keyPressed"`
}

// Rating is one occupant's 1-5 rating of another occupant's dancing.
type Rating struct {
	AreaID    string `json:"areaId"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Rating    int    `json:"rating"`
}

func (r Rating) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

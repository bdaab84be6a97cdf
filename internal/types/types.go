package types

import "github.com/DoyleJ11/dance-area-backend/internal/dance"

// Client -> server message types.
const (
	MsgJoinArea     = "JoinArea"
	MsgLeaveArea    = "LeaveArea"
	MsgEnqueueTrack = "EnqueueTrack"
	MsgDanceMove    = "DanceMove"
	MsgDanceRating  = "DanceRating"
)

// Server -> client message types. DanceMove and DanceRating are relays and
// reuse the client names.
const (
	MsgAreaSnapshot  = "AreaSnapshot"
	MsgEnqueueResult = "EnqueueResult"
	MsgError         = "Error"
)

// ClientMessage is one frame from a client. The area and player are bound
// by the connection, so they are not repeated here.
type ClientMessage struct {
	Type       string    `json:"type"`
	URL        string    `json:"url,omitempty"`
	RoundID    string    `json:"roundId,omitempty"`
	Index      int       `json:"index,omitempty"`
	KeyPressed dance.Key `json:"keyPressed,omitempty"`
	Success    bool      `json:"success,omitempty"`
	Recipient  string    `json:"recipient,omitempty"`
	Rating     int       `json:"rating,omitempty"`
}

type ServerMessage struct {
	Type    string            `json:"type"`
	Version int               `json:"version,omitempty"`
	Area    *dance.Area       `json:"area,omitempty"`
	Move    *dance.MoveResult `json:"move,omitempty"`
	Rating  *dance.Rating     `json:"rating,omitempty"`
	Track   *dance.TrackInfo  `json:"track,omitempty"`
	URL     string            `json:"url,omitempty"`
	Queued  bool              `json:"queued,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// AreaSummary is the REST view of one area.
type AreaSummary struct {
	X           int        `json:"x"`
	Y           int        `json:"y"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Version     int        `json:"version"`
	Playing     bool       `json:"playing"`
	Subscribers int        `json:"subscribers"`
	Area        dance.Area `json:"area"`
}

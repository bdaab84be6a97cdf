package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/mirror"
	"github.com/DoyleJ11/dance-area-backend/internal/types"
)

var ErrClosed = errors.New("client closed")

// EnqueueOutcome is the server's answer to an enqueue request.
type EnqueueOutcome struct {
	Track  dance.TrackInfo
	Queued bool
	Reason string
}

type Option func(*Client)

// WithMirror feeds snapshots into m instead of a fresh mirror.
func WithMirror(m *mirror.Mirror) Option { return func(c *Client) { c.mirror = m } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func WithWriteTimeout(d time.Duration) Option { return func(c *Client) { c.writeTimeout = d } }

// Client is one player's connection to one area. Snapshots go into the
// mirror; relayed moves and ratings go to the registered handlers.
type Client struct {
	conn         *websocket.Conn
	mirror       *mirror.Mirror
	areaID       string
	playerID     string
	writeTimeout time.Duration
	log          *zap.Logger

	mu       sync.Mutex
	pending  map[string][]chan EnqueueOutcome // by url
	onMove   func(dance.MoveResult)
	onRating func(dance.Rating)
	onError  func(string)

	done chan struct{}
}

// Dial connects to serverURL (http, https, ws or wss; the /ws path is
// added) for the given area and player.
func Dial(ctx context.Context, serverURL, areaID, playerID string, opts ...Option) (*Client, error) {
	u, err := wsURL(serverURL, areaID, playerID)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}

	c := &Client{
		conn:         conn,
		areaID:       areaID,
		playerID:     playerID,
		writeTimeout: 3 * time.Second,
		log:          zap.NewNop(),
		pending:      map[string][]chan EnqueueOutcome{},
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mirror == nil {
		c.mirror = mirror.New(areaID)
	}
	c.log = c.log.With(zap.String("area", areaID), zap.String("player", playerID))
	return c, nil
}

func wsURL(serverURL, areaID, playerID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("area", areaID)
	q.Set("player", playerID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) Mirror() *mirror.Mirror { return c.mirror }

func (c *Client) PlayerID() string { return c.playerID }

func (c *Client) OnMove(fn func(dance.MoveResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMove = fn
}

func (c *Client) OnRating(fn func(dance.Rating)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRating = fn
}

func (c *Client) OnError(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Run reads server messages until ctx ends or the connection drops.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.failPending()

	for {
		var msg types.ServerMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg types.ServerMessage) {
	switch msg.Type {
	case types.MsgAreaSnapshot:
		if msg.Area != nil {
			c.mirror.ApplySnapshot(*msg.Area)
		}

	case types.MsgDanceMove:
		c.mu.Lock()
		fn := c.onMove
		c.mu.Unlock()
		if fn != nil && msg.Move != nil {
			fn(*msg.Move)
		}

	case types.MsgDanceRating:
		c.mu.Lock()
		fn := c.onRating
		c.mu.Unlock()
		if fn != nil && msg.Rating != nil {
			fn(*msg.Rating)
		}

	case types.MsgEnqueueResult:
		out := EnqueueOutcome{Queued: msg.Queued, Reason: msg.Error}
		if msg.Track != nil {
			out.Track = *msg.Track
		}
		c.resolve(msg.URL, out)

	case types.MsgError:
		c.log.Warn("server error", zap.String("error", msg.Error))
		c.mu.Lock()
		fn := c.onError
		c.mu.Unlock()
		if fn != nil {
			fn(msg.Error)
		}

	default:
		c.log.Debug("unknown server message", zap.String("type", msg.Type))
	}
}

// resolve answers the oldest waiter for url.
func (c *Client) resolve(trackURL string, out EnqueueOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.pending[trackURL]
	if len(waiters) == 0 {
		return
	}
	waiters[0] <- out
	if len(waiters) == 1 {
		delete(c.pending, trackURL)
	} else {
		c.pending[trackURL] = waiters[1:]
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for trackURL, waiters := range c.pending {
		for _, w := range waiters {
			close(w)
		}
		delete(c.pending, trackURL)
	}
}

func (c *Client) send(ctx context.Context, msg types.ClientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *Client) Join(ctx context.Context) error {
	return c.send(ctx, types.ClientMessage{Type: types.MsgJoinArea})
}

func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, types.ClientMessage{Type: types.MsgLeaveArea})
}

// Enqueue asks for a track and waits for the server's verdict. Run must be
// running to receive it.
func (c *Client) Enqueue(ctx context.Context, trackURL string) (EnqueueOutcome, error) {
	wait := make(chan EnqueueOutcome, 1)
	c.mu.Lock()
	c.pending[trackURL] = append(c.pending[trackURL], wait)
	c.mu.Unlock()

	if err := c.send(ctx, types.ClientMessage{Type: types.MsgEnqueueTrack, URL: trackURL}); err != nil {
		c.forget(trackURL, wait)
		return EnqueueOutcome{}, err
	}
	select {
	case out, ok := <-wait:
		if !ok {
			return EnqueueOutcome{}, ErrClosed
		}
		return out, nil
	case <-ctx.Done():
		c.forget(trackURL, wait)
		return EnqueueOutcome{}, ctx.Err()
	}
}

func (c *Client) forget(trackURL string, wait chan EnqueueOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.pending[trackURL]
	for i, w := range waiters {
		if w == wait {
			c.pending[trackURL] = append(waiters[:i:i], waiters[i+1:]...)
			break
		}
	}
	if len(c.pending[trackURL]) == 0 {
		delete(c.pending, trackURL)
	}
}

// SendMove forwards a graded move. It satisfies grader.Sink.
func (c *Client) SendMove(m dance.MoveResult) error {
	return c.send(context.Background(), types.ClientMessage{
		Type:       types.MsgDanceMove,
		RoundID:    m.RoundID,
		Index:      m.Index,
		KeyPressed: m.KeyPressed,
		Success:    m.Success,
	})
}

func (c *Client) Rate(ctx context.Context, recipient string, rating int) error {
	r := dance.Rating{AreaID: c.areaID, Sender: c.playerID, Recipient: recipient, Rating: rating}
	if err := r.Validate(); err != nil {
		return err
	}
	return c.send(ctx, types.ClientMessage{Type: types.MsgDanceRating, Recipient: recipient, Rating: rating})
}

// Close ends the connection and stops the mirror's round timer.
func (c *Client) Close() error {
	c.mirror.Close()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Done is closed when Run returns.
func (c *Client) Done() <-chan struct{} { return c.done }

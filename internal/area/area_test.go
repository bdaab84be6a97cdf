package area

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/metadata"
)

var (
	t1 = dance.TrackInfo{URL: "https://open.spotify.com/track/one", Title: "One", Duration: 1000}
	t2 = dance.TrackInfo{URL: "https://open.spotify.com/track/two", Title: "Two", Duration: 2000}
	t3 = dance.TrackInfo{URL: "https://open.spotify.com/track/unknown", Title: "No length"}
)

func testConfig() Config {
	return Config{
		RoundDuration:        5 * time.Second,
		KeysPerRound:         6,
		PointsPerMove:        1,
		DefaultTrackDuration: 2 * time.Second,
		TrackSpacing:         500 * time.Millisecond,
		FetchTimeout:         time.Second,
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("round-%d", n)
	}
}

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, ch <-chan Event, within time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("subscriber outbox closed unexpectedly")
		}
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return Event{} // unreachable
	}
}

func recvSnapshot(t *testing.T, ch <-chan Event) dance.Area {
	t.Helper()
	ev := recvEvent(t, ch, 500*time.Millisecond)
	require.Equal(t, EventSnapshot, ev.Type)
	return ev.Area
}

func recvNoEvent(t *testing.T, ch <-chan Event, within time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no event within %v, but got: %+v", within, ev)
	case <-time.After(within):
	}
}

type fixture struct {
	area  *Area
	clock *clock.Mock
	out   chan Event
}

func newFixture(t *testing.T, provider metadata.Provider) fixture {
	t.Helper()
	if provider == nil {
		provider = metadata.NewStaticProvider(t1, t2, t3)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mock := clock.NewMock()
	a, err := New(ctx, "floor", Bounds{Width: 10, Height: 10}, provider, testConfig(),
		WithClock(mock),
		WithRand(rand.New(rand.NewSource(1))),
		WithIDs(sequentialIDs()),
	)
	require.NoError(t, err)

	out := make(chan Event, 16)
	a.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	first := recvSnapshot(t, out)
	require.Equal(t, "floor", first.ID)
	require.Empty(t, first.RoundID)

	return fixture{area: a, clock: mock, out: out}
}

func (f fixture) enqueue(t *testing.T, url string) EnqueueResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := f.area.EnqueueTrack(ctx, url)
	require.NoError(t, err)
	return res
}

func TestNew_FailsFastOnBadStaticConfig(t *testing.T) {
	p := metadata.NewStaticProvider()

	_, err := New(context.Background(), "floor", Bounds{Width: 0, Height: 10}, p, testConfig())
	require.ErrorIs(t, err, ErrMissingBounds)

	cfg := testConfig()
	cfg.RoundDuration = 0
	_, err = New(context.Background(), "floor", Bounds{Width: 10, Height: 10}, p, cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(context.Background(), "", Bounds{Width: 10, Height: 10}, p, testConfig())
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFirstJoin_StartsRound(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	snap := recvSnapshot(t, f.out)

	assert.Equal(t, "round-1", snap.RoundID)
	assert.Len(t, snap.KeySequence, 6)
	assert.Equal(t, 5, snap.Duration)
	assert.Equal(t, map[string]int{"p1": 0}, snap.Points)

	// A second occupant does not restart the round.
	f.area.Inbox() <- Join{PlayerID: "p2"}
	snap = recvSnapshot(t, f.out)
	assert.Equal(t, "round-1", snap.RoundID)
	assert.Equal(t, map[string]int{"p1": 0, "p2": 0}, snap.Points)

	// Re-joining is ignored.
	f.area.Inbox() <- Join{PlayerID: "p2"}
	recvNoEvent(t, f.out, 50*time.Millisecond)
}

func TestRounds_RescheduleWhileOccupied(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	first := recvSnapshot(t, f.out)
	require.Equal(t, "round-1", first.RoundID)

	f.clock.Add(4 * time.Second)
	recvNoEvent(t, f.out, 50*time.Millisecond)

	f.clock.Add(time.Second)
	second := recvSnapshot(t, f.out)
	assert.Equal(t, "round-2", second.RoundID)
	assert.Len(t, second.KeySequence, 6)

	f.clock.Add(5 * time.Second)
	third := recvSnapshot(t, f.out)
	assert.Equal(t, "round-3", third.RoundID)
}

func TestRounds_RejoinDoesNotLeakTimer(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)
	f.clock.Add(3 * time.Second)

	f.area.Inbox() <- Leave{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)
	f.area.Inbox() <- Join{PlayerID: "p1"}
	rejoined := recvSnapshot(t, f.out)
	require.Equal(t, "round-2", rejoined.RoundID)

	// The first loop's timer would have fired at 5s; only the new one
	// (due at 8s) may produce a round.
	f.clock.Add(2 * time.Second)
	recvNoEvent(t, f.out, 50*time.Millisecond)

	f.clock.Add(3 * time.Second)
	next := recvSnapshot(t, f.out)
	assert.Equal(t, "round-3", next.RoundID)
	recvNoEvent(t, f.out, 50*time.Millisecond)
}

func TestLeave_LastOccupantResetsEverything(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)

	res := f.enqueue(t, t1.URL)
	require.True(t, res.Queued)
	queued := recvSnapshot(t, f.out)
	require.Len(t, queued.MusicQueue, 1)

	f.area.Inbox() <- Leave{PlayerID: "p1"}
	snap := recvSnapshot(t, f.out)
	assert.Empty(t, snap.RoundID)
	assert.Empty(t, snap.KeySequence)
	assert.Zero(t, snap.Duration)
	assert.Empty(t, snap.MusicQueue)
	assert.Empty(t, snap.Points)

	// No timers may survive the reset.
	f.clock.Add(time.Hour)
	recvNoEvent(t, f.out, 100*time.Millisecond)

	view, err := f.area.View(context.Background())
	require.NoError(t, err)
	assert.False(t, view.Playing)
}

func TestLeave_OtherOccupantsKeepPlaying(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)
	f.area.Inbox() <- Join{PlayerID: "p2"}
	_ = recvSnapshot(t, f.out)

	f.area.Inbox() <- Leave{PlayerID: "p1"}
	snap := recvSnapshot(t, f.out)
	assert.Equal(t, map[string]int{"p2": 0}, snap.Points)
	assert.Equal(t, "round-1", snap.RoundID)

	f.area.Inbox() <- Leave{PlayerID: "nobody"}
	recvNoEvent(t, f.out, 50*time.Millisecond)
}

func TestLeave_PlayerStaysWhileAnotherConnectionJoined(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1", ClientID: "tab-a"}
	_ = recvSnapshot(t, f.out)
	f.area.Inbox() <- Join{PlayerID: "p1", ClientID: "tab-b"}
	recvNoEvent(t, f.out, 50*time.Millisecond)

	// A connection that never joined cannot evict the player.
	f.area.Inbox() <- Leave{PlayerID: "p1", ClientID: "watcher"}
	recvNoEvent(t, f.out, 50*time.Millisecond)

	f.area.Inbox() <- Leave{PlayerID: "p1", ClientID: "tab-a"}
	recvNoEvent(t, f.out, 50*time.Millisecond)
	view, err := f.area.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 0}, view.Area.Points)
	assert.Equal(t, "round-1", view.Area.RoundID)

	f.area.Inbox() <- Leave{PlayerID: "p1", ClientID: "tab-b"}
	snap := recvSnapshot(t, f.out)
	assert.Empty(t, snap.Points)
	assert.Empty(t, snap.RoundID)
}

func TestMusicQueue_FIFO(t *testing.T) {
	f := newFixture(t, nil)

	require.True(t, f.enqueue(t, t1.URL).Queued)
	snap := recvSnapshot(t, f.out)
	require.Equal(t, []dance.TrackInfo{t1}, snap.MusicQueue)

	require.True(t, f.enqueue(t, t2.URL).Queued)
	snap = recvSnapshot(t, f.out)
	require.Equal(t, []dance.TrackInfo{t1, t2}, snap.MusicQueue)

	// t1 plays for its duration plus spacing.
	f.clock.Add(1400 * time.Millisecond)
	recvNoEvent(t, f.out, 50*time.Millisecond)
	f.clock.Add(100 * time.Millisecond)
	snap = recvSnapshot(t, f.out)
	assert.Equal(t, []dance.TrackInfo{t2}, snap.MusicQueue)
	recvNoEvent(t, f.out, 50*time.Millisecond)

	f.clock.Add(2500 * time.Millisecond)
	snap = recvSnapshot(t, f.out)
	assert.Empty(t, snap.MusicQueue)

	require.Eventually(t, func() bool {
		v, err := f.area.View(context.Background())
		return err == nil && !v.Playing
	}, time.Second, 10*time.Millisecond)
}

func TestMusicQueue_UnknownDurationUsesDefault(t *testing.T) {
	f := newFixture(t, nil)

	require.True(t, f.enqueue(t, t3.URL).Queued)
	_ = recvSnapshot(t, f.out)

	f.clock.Add(2 * time.Second)
	recvNoEvent(t, f.out, 50*time.Millisecond)
	f.clock.Add(500 * time.Millisecond)
	snap := recvSnapshot(t, f.out)
	assert.Empty(t, snap.MusicQueue)
}

func TestMusicQueue_InvalidTrackSkipped(t *testing.T) {
	f := newFixture(t, nil)

	res := f.enqueue(t, "https://open.spotify.com/track/missing")
	assert.False(t, res.Queued)
	assert.ErrorIs(t, res.Err, metadata.ErrInvalidTrack)
	recvNoEvent(t, f.out, 50*time.Millisecond)

	require.True(t, f.enqueue(t, t1.URL).Queued)
	snap := recvSnapshot(t, f.out)
	assert.Equal(t, []dance.TrackInfo{t1}, snap.MusicQueue)
}

func TestMusicQueue_ResultAfterResetIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	slow := metadata.ProviderFunc(func(ctx context.Context, url string) (dance.TrackInfo, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return dance.TrackInfo{}, ctx.Err()
		}
		return dance.TrackInfo{URL: url, Duration: 1000}, nil
	})
	f := newFixture(t, slow)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)

	reply := make(chan EnqueueResult, 1)
	f.area.Inbox() <- Enqueue{URL: "https://x/track/1", Reply: reply}

	f.area.Inbox() <- Leave{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)
	close(release)

	select {
	case res := <-reply:
		assert.False(t, res.Queued)
		assert.ErrorIs(t, res.Err, ErrAreaReset)
	case <-time.After(time.Second):
		t.Fatal("no enqueue reply")
	}
	recvNoEvent(t, f.out, 50*time.Millisecond)
}

func TestMoves_ScoreOncePerIndex(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	snap := recvSnapshot(t, f.out)
	seq := snap.KeySequence

	wrong := dance.KeyOne
	if seq[1] == dance.KeyOne {
		wrong = dance.KeyTwo
	}

	f.area.Inbox() <- Move{Result: dance.MoveResult{PlayerID: "p1", RoundID: snap.RoundID, Index: 0, KeyPressed: seq[0], Success: true}}
	ev := recvEvent(t, f.out, 500*time.Millisecond)
	require.Equal(t, EventMove, ev.Type)
	assert.True(t, ev.Move.Success)
	assert.Equal(t, "floor", ev.Move.AreaID)
	scored := recvSnapshot(t, f.out)
	assert.Equal(t, 1, scored.Points["p1"])

	// Same index again is ignored.
	f.area.Inbox() <- Move{Result: dance.MoveResult{PlayerID: "p1", RoundID: snap.RoundID, Index: 0, KeyPressed: seq[0], Success: true}}
	recvNoEvent(t, f.out, 50*time.Millisecond)

	// A wrong key claimed as success is relayed as a miss and scores nothing.
	f.area.Inbox() <- Move{Result: dance.MoveResult{PlayerID: "p1", RoundID: snap.RoundID, Index: 1, KeyPressed: wrong, Success: true}}
	ev = recvEvent(t, f.out, 500*time.Millisecond)
	require.Equal(t, EventMove, ev.Type)
	assert.False(t, ev.Move.Success)
	recvNoEvent(t, f.out, 50*time.Millisecond)
}

func TestMoves_Rejected(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	snap := recvSnapshot(t, f.out)
	seq := snap.KeySequence

	cases := []struct {
		name string
		move dance.MoveResult
	}{
		{name: "stale round", move: dance.MoveResult{PlayerID: "p1", RoundID: "old", Index: 0, KeyPressed: seq[0]}},
		{name: "not an occupant", move: dance.MoveResult{PlayerID: "ghost", RoundID: snap.RoundID, Index: 0, KeyPressed: seq[0]}},
		{name: "index out of range", move: dance.MoveResult{PlayerID: "p1", RoundID: snap.RoundID, Index: 99, KeyPressed: seq[0]}},
		{name: "wrong area", move: dance.MoveResult{AreaID: "elsewhere", PlayerID: "p1", RoundID: snap.RoundID, Index: 0, KeyPressed: seq[0]}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.area.Inbox() <- Move{Result: tc.move}
			recvNoEvent(t, f.out, 50*time.Millisecond)
		})
	}
}

func TestMoves_NewRoundClearsGradedIndices(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	r1 := recvSnapshot(t, f.out)
	f.area.Inbox() <- Move{Result: dance.MoveResult{PlayerID: "p1", RoundID: r1.RoundID, Index: 0, KeyPressed: r1.KeySequence[0]}}
	_ = recvEvent(t, f.out, 500*time.Millisecond)
	_ = recvSnapshot(t, f.out)

	f.clock.Add(5 * time.Second)
	r2 := recvSnapshot(t, f.out)
	require.NotEqual(t, r1.RoundID, r2.RoundID)

	f.area.Inbox() <- Move{Result: dance.MoveResult{PlayerID: "p1", RoundID: r2.RoundID, Index: 0, KeyPressed: r2.KeySequence[0]}}
	ev := recvEvent(t, f.out, 500*time.Millisecond)
	require.Equal(t, EventMove, ev.Type)
	snap := recvSnapshot(t, f.out)
	assert.Equal(t, 2, snap.Points["p1"])
}

func TestRatings_Relayed(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)
	f.area.Inbox() <- Join{PlayerID: "p2"}
	_ = recvSnapshot(t, f.out)

	f.area.Inbox() <- Rate{Rating: dance.Rating{Sender: "p1", Recipient: "p2", Rating: 4}}
	ev := recvEvent(t, f.out, 500*time.Millisecond)
	require.Equal(t, EventRating, ev.Type)
	assert.Equal(t, dance.Rating{AreaID: "floor", Sender: "p1", Recipient: "p2", Rating: 4}, *ev.Rating)

	f.area.Inbox() <- Rate{Rating: dance.Rating{Sender: "p1", Recipient: "p2", Rating: 9}}
	f.area.Inbox() <- Rate{Rating: dance.Rating{Sender: "p1", Recipient: "p1", Rating: 5}}
	f.area.Inbox() <- Rate{Rating: dance.Rating{Sender: "p1", Recipient: "ghost", Rating: 5}}
	recvNoEvent(t, f.out, 50*time.Millisecond)
}

func TestSubscribers_SlowClientDropped(t *testing.T) {
	f := newFixture(t, nil)

	slow := make(chan Event, 1)
	f.area.Inbox() <- Subscribe{ClientID: "slow", Outbox: slow}
	f.area.Inbox() <- Join{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)

	view, err := f.area.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, view.NumSubscribers)

	<-slow
	_, ok := <-slow
	assert.False(t, ok, "slow outbox should be closed")
}

func TestUnsubscribe_ClosesOutbox(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Unsubscribe{ClientID: "c1"}
	select {
	case _, ok := <-f.out:
		assert.False(t, ok)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("outbox not closed")
	}
}

func TestShutdown_StopsTimers(t *testing.T) {
	f := newFixture(t, nil)

	f.area.Inbox() <- Join{PlayerID: "p1"}
	_ = recvSnapshot(t, f.out)
	require.True(t, f.enqueue(t, t1.URL).Queued)
	_ = recvSnapshot(t, f.out)

	f.area.Inbox() <- Shutdown{}
	select {
	case <-f.area.Done():
	case <-time.After(time.Second):
		t.Fatal("area did not shut down")
	}

	f.clock.Add(time.Hour)
	recvNoEvent(t, f.out, 100*time.Millisecond)

	_, err := f.area.View(context.Background())
	assert.ErrorIs(t, err, ErrAreaClosed)
}

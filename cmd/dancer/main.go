package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/client"
	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/grader"
	"github.com/DoyleJ11/dance-area-backend/internal/logging"
	"github.com/DoyleJ11/dance-area-backend/internal/mirror"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Server base URL")
	areaID    = flag.String("area", "dance-floor", "Area to join")
	playerID  = flag.String("player", "", "Player id (random if empty)")
	accuracy  = flag.Float64("accuracy", 0.8, "Chance of pressing the right key")
	enqueue   = flag.String("enqueue", "", "Comma separated track URLs to queue after joining")
	logLevel  = flag.String("log", "info", "Log level")
)

func main() {
	flag.Parse()
	if *playerID == "" {
		*playerID = "bot-" + uuid.NewString()[:8]
	}

	log, err := logging.New(*logLevel, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error("dancer stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.Logger) error {
	clk := clock.New()
	m := mirror.New(*areaID, mirror.WithClock(clk))

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, *serverURL, *areaID, *playerID,
		client.WithMirror(m), client.WithLogger(log))
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	g := grader.New(m, *playerID, c, clk, dance.DefaultLayout, grader.WithLogger(log))
	g.OnMove(func(mv dance.MoveResult) {
		log.Info("move", zap.Int("index", mv.Index), zap.String("key", string(mv.KeyPressed)), zap.Bool("success", mv.Success))
	})
	m.Points().Subscribe(func(p map[string]int) {
		log.Info("points", zap.Int("mine", p[*playerID]), zap.Int("occupants", len(p)))
	})
	m.CurrentTrack().Subscribe(func(t *dance.TrackInfo) {
		if t == nil {
			log.Info("queue empty")
			return
		}
		log.Info("now playing", zap.String("title", t.Title), zap.String("artist", t.Artist))
	})

	b := &bot{
		mirror:   m,
		grader:   g,
		clock:    clk,
		layout:   dance.DefaultLayout,
		accuracy: *accuracy,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      log,
	}
	// Watch before joining so the round started by our own join is seen.
	rounds, stopWatch := watchRounds(m)
	defer stopWatch()

	if err := c.Join(ctx); err != nil {
		return err
	}
	go enqueueAll(ctx, c, log)

	for {
		select {
		case <-ctx.Done():
			b.cancel()
			leaveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return c.Leave(leaveCtx)
		case err := <-runErr:
			b.cancel()
			return err
		case <-rounds:
			b.play(m.RoundID().Get())
		}
	}
}

func enqueueAll(ctx context.Context, c *client.Client, log *zap.Logger) {
	for _, u := range strings.Split(*enqueue, ",") {
		if u = strings.TrimSpace(u); u == "" {
			continue
		}
		out, err := c.Enqueue(ctx, u)
		if err != nil {
			log.Warn("enqueue", zap.String("url", u), zap.Error(err))
			return
		}
		log.Info("enqueue", zap.String("url", u), zap.Bool("queued", out.Queued), zap.String("reason", out.Reason))
	}
}

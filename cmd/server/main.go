package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/dance-area-backend/internal/area"
	"github.com/DoyleJ11/dance-area-backend/internal/config"
	"github.com/DoyleJ11/dance-area-backend/internal/httpapi"
	"github.com/DoyleJ11/dance-area-backend/internal/hub"
	"github.com/DoyleJ11/dance-area-backend/internal/logging"
	"github.com/DoyleJ11/dance-area-backend/internal/metadata"
	"github.com/DoyleJ11/dance-area-backend/internal/metrics"
	"github.com/DoyleJ11/dance-area-backend/internal/storage"
	"github.com/DoyleJ11/dance-area-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	metrics.Register(prometheus.DefaultRegisterer)

	var store metadata.Store
	if cfg.Database.Driver != "" {
		s, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN, log)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	provider, err := metadata.NewCachedProvider(newProvider(cfg, log), cfg.Metadata.CacheSize, store, log)
	if err != nil {
		return err
	}

	areaCfg := area.Config{
		RoundDuration:        cfg.RoundDuration(),
		KeysPerRound:         cfg.Game.KeysPerRound,
		PointsPerMove:        cfg.Game.PointsPerMove,
		DefaultTrackDuration: cfg.DefaultTrackDuration(),
		TrackSpacing:         cfg.TrackSpacing(),
		FetchTimeout:         cfg.MetadataTimeout(),
	}
	areas := make([]*area.Area, 0, len(cfg.Areas))
	for _, ac := range cfg.Areas {
		a, err := area.New(ctx, ac.ID,
			area.Bounds{X: ac.X, Y: ac.Y, Width: ac.Width, Height: ac.Height},
			provider, areaCfg, area.WithLogger(log))
		if err != nil {
			return err
		}
		areas = append(areas, a)
	}
	h, err := hub.NewHub(ctx, areas)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.SetupRoutes(h, prometheus.DefaultGatherer, ws.Options{
			WriteTimeout:   cfg.WriteTimeout(),
			PingInterval:   cfg.PingInterval(),
			EnqueueTimeout: 2 * cfg.MetadataTimeout(),
			OriginPatterns: cfg.Server.OriginPatterns,
			Logger:         log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Int("areas", len(areas)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := multierr.Append(srv.Shutdown(shutdownCtx), h.Shutdown(shutdownCtx))
		log.Info("shut down")
		return err
	})
	return g.Wait()
}

// newProvider routes Spotify and Apple Music links to their providers. Any
// other host goes to the configured default.
func newProvider(cfg *config.Config, log *zap.Logger) metadata.Provider {
	spotify := metadata.NewSpotifyProvider(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret,
		metadata.WithSpotifyLogger(log))
	itunes := metadata.NewITunesProvider(cfg.Metadata.ITunesLookupURL, log)

	var fallback metadata.Provider
	switch cfg.Metadata.Provider {
	case "static":
		fallback = metadata.Passthrough{}
	case "itunes":
		fallback = itunes
	default:
		fallback = spotify
	}

	r := metadata.NewRouter(fallback)
	r.Handle("spotify.com", spotify)
	r.Handle("apple.com", itunes)
	return r
}

package area

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
	"github.com/DoyleJ11/dance-area-backend/internal/metrics"
)

// startFetch resolves the track off the loop goroutine. The result comes
// back through the inbox as trackFetched.
func (a *Area) startFetch(msg Enqueue) {
	epoch := a.epoch
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, a.cfg.FetchTimeout)
		defer cancel()

		start := time.Now()
		info, err := a.provider.Fetch(ctx, msg.URL)
		metrics.MetadataLatency.Observe(time.Since(start).Seconds())
		if err == nil && info.URL == "" {
			info.URL = msg.URL
		}
		a.post(trackFetched{epoch: epoch, url: msg.URL, info: info, err: err, reply: msg.Reply})
	}()
}

// trackResolved appends a resolved track and starts playback if idle.
// It reports whether the snapshot changed.
func (a *Area) trackResolved(msg trackFetched) bool {
	reply := func(r EnqueueResult) {
		if msg.reply == nil {
			return
		}
		select {
		case msg.reply <- r:
		default:
			a.log.Warn("enqueue reply dropped, channel full", zap.String("url", msg.url))
		}
	}

	if msg.err != nil {
		metrics.TracksRejected.WithLabelValues(a.ID()).Inc()
		a.log.Info("track rejected", zap.String("url", msg.url), zap.Error(msg.err))
		reply(EnqueueResult{Err: msg.err})
		return false
	}
	if msg.epoch != a.epoch {
		a.log.Debug("discarding track resolved before area reset", zap.String("url", msg.url))
		reply(EnqueueResult{Track: msg.info, Err: ErrAreaReset})
		return false
	}

	a.state.MusicQueue = append(a.state.MusicQueue, msg.info)
	metrics.TracksQueued.WithLabelValues(a.ID()).Inc()
	a.log.Info("track queued",
		zap.String("url", msg.info.URL),
		zap.String("title", msg.info.Title),
		zap.Int("queue", len(a.state.MusicQueue)))

	if !a.playing {
		a.advance()
	}
	reply(EnqueueResult{Track: msg.info, Queued: true})
	return true
}

// advance schedules the removal of the head track, or marks the queue idle
// when it is empty. Only advance arms the track timer, so at most one
// playback loop exists per area.
func (a *Area) advance() {
	head, ok := a.state.CurrentTrack()
	if !ok {
		a.playing = false
		a.track.stop()
		return
	}
	a.playing = true
	a.track.arm(a.clock, a.trackTime(head), func(gen uint64) {
		a.post(trackTimerFired{gen: gen})
	})
}

// trackTime pads every track, known duration or not, with the spacing gap.
func (a *Area) trackTime(t dance.TrackInfo) time.Duration {
	d := time.Duration(t.Duration) * time.Millisecond
	if d <= 0 {
		d = a.cfg.DefaultTrackDuration
	}
	return d + a.cfg.TrackSpacing
}

func (a *Area) trackFinished(gen uint64) {
	if !a.track.take(gen) {
		a.log.Debug("dropping stale track timer")
		return
	}
	if len(a.state.MusicQueue) > 0 {
		finished := a.state.MusicQueue[0]
		a.state.MusicQueue = slices.Delete(slices.Clone(a.state.MusicQueue), 0, 1)
		metrics.TracksFinished.WithLabelValues(a.ID()).Inc()
		a.log.Debug("track finished", zap.String("url", finished.URL))
		a.advance()
		a.broadcastState()
		return
	}
	a.advance()
}

func (a *Area) stopMusic() {
	a.track.stop()
	a.playing = false
	a.state.MusicQueue = []dance.TrackInfo{}
}

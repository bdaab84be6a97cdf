package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoundsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dance_rounds_started_total", Help: "Rounds generated"},
		[]string{"area"},
	)
	TracksQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dance_tracks_queued_total", Help: "Tracks accepted into a music queue"},
		[]string{"area"},
	)
	TracksRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dance_tracks_rejected_total", Help: "Enqueue requests whose metadata lookup failed"},
		[]string{"area"},
	)
	TracksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dance_tracks_finished_total", Help: "Tracks removed from the head of the queue after playing"},
		[]string{"area"},
	)
	MovesScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dance_moves_total", Help: "Dance moves received from clients"},
		[]string{"area", "result"},
	)
	Occupants = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "dance_area_occupants", Help: "Players currently inside an area"},
		[]string{"area"},
	)
	Subscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "dance_area_subscribers", Help: "Connections receiving area snapshots"},
		[]string{"area"},
	)
	MetadataLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dance_metadata_fetch_seconds",
			Help:    "Track metadata lookup time",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

var once sync.Once

// Register adds every collector to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(
			RoundsStarted,
			TracksQueued,
			TracksRejected,
			TracksFinished,
			MovesScored,
			Occupants,
			Subscribers,
			MetadataLatency,
		)
	})
}

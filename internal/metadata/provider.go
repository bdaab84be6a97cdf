package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
)

var (
	ErrInvalidTrack   = errors.New("invalid track")
	ErrUnsupportedURL = errors.New("unsupported track url")
	ErrNotConfigured  = errors.New("metadata provider not configured")
)

// Provider resolves a track URL to its metadata. Any error means the track
// must not be queued.
type Provider interface {
	Fetch(ctx context.Context, url string) (dance.TrackInfo, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, url string) (dance.TrackInfo, error)

func (f ProviderFunc) Fetch(ctx context.Context, url string) (dance.TrackInfo, error) {
	return f(ctx, url)
}

// StaticProvider serves a fixed catalogue. Unknown URLs are invalid.
type StaticProvider struct {
	Tracks map[string]dance.TrackInfo
}

func NewStaticProvider(tracks ...dance.TrackInfo) *StaticProvider {
	p := &StaticProvider{Tracks: make(map[string]dance.TrackInfo, len(tracks))}
	for _, t := range tracks {
		p.Tracks[t.URL] = t
	}
	return p
}

func (p *StaticProvider) Fetch(_ context.Context, url string) (dance.TrackInfo, error) {
	t, ok := p.Tracks[url]
	if !ok {
		return dance.TrackInfo{}, fmt.Errorf("%w: %s", ErrInvalidTrack, url)
	}
	return t, nil
}

// Router dispatches to a provider by URL host, so a Spotify link and an
// Apple Music link can both be queued in the same area.
type Router struct {
	routes   map[string]Provider
	fallback Provider
}

func NewRouter(fallback Provider) *Router {
	return &Router{routes: map[string]Provider{}, fallback: fallback}
}

// Handle registers p for every URL whose host ends with suffix.
func (r *Router) Handle(suffix string, p Provider) {
	r.routes[suffix] = p
}

func (r *Router) Fetch(ctx context.Context, raw string) (dance.TrackInfo, error) {
	host, err := hostOf(raw)
	if err != nil {
		return dance.TrackInfo{}, err
	}
	for suffix, p := range r.routes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return p.Fetch(ctx, raw)
		}
	}
	if r.fallback == nil {
		return dance.TrackInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedURL, raw)
	}
	return r.fallback.Fetch(ctx, raw)
}

// Passthrough accepts any absolute URL and returns it with no metadata, so
// the track plays for the default duration. Used when no real provider is
// configured.
type Passthrough struct{}

func (Passthrough) Fetch(_ context.Context, raw string) (dance.TrackInfo, error) {
	if _, err := hostOf(raw); err != nil {
		return dance.TrackInfo{}, err
	}
	title, _ := lastSegment(raw)
	return dance.TrackInfo{URL: raw, Title: title}, nil
}

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
)

const (
	spotifyAPIBase  = "https://api.spotify.com/v1"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// SpotifyProvider looks tracks up through the Spotify Web API using the
// client-credentials flow.
type SpotifyProvider struct {
	clientID     string
	clientSecret string
	apiBase      string
	tokenURL     string
	httpClient   *http.Client
	log          *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

type SpotifyOption func(*SpotifyProvider)

// WithSpotifyEndpoints points the provider at a different API and token
// endpoint (used against httptest servers).
func WithSpotifyEndpoints(apiBase, tokenURL string) SpotifyOption {
	return func(p *SpotifyProvider) {
		p.apiBase = strings.TrimRight(apiBase, "/")
		p.tokenURL = tokenURL
	}
}

func WithSpotifyHTTPClient(c *http.Client) SpotifyOption {
	return func(p *SpotifyProvider) { p.httpClient = c }
}

func WithSpotifyLogger(l *zap.Logger) SpotifyOption {
	return func(p *SpotifyProvider) { p.log = l }
}

func NewSpotifyProvider(clientID, clientSecret string, opts ...SpotifyOption) *SpotifyProvider {
	p := &SpotifyProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiBase:      spotifyAPIBase,
		tokenURL:     spotifyTokenURL,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		log:          zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SpotifyProvider) Fetch(ctx context.Context, raw string) (dance.TrackInfo, error) {
	id, err := spotifyTrackID(raw)
	if err != nil {
		return dance.TrackInfo{}, err
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return dance.TrackInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"/tracks/"+url.PathEscape(id), nil)
	if err != nil {
		return dance.TrackInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return dance.TrackInfo{}, fmt.Errorf("spotify track request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token revoked early; the next call fetches a fresh one.
		p.mu.Lock()
		p.token = ""
		p.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		p.log.Debug("spotify track lookup failed", zap.String("id", id), zap.Int("status", resp.StatusCode))
		return dance.TrackInfo{}, fmt.Errorf("%w: spotify status %d", ErrInvalidTrack, resp.StatusCode)
	}

	var body struct {
		Name       string `json:"name"`
		DurationMS int64  `json:"duration_ms"`
		Album      struct {
			Name string `json:"name"`
		} `json:"album"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return dance.TrackInfo{}, fmt.Errorf("spotify decode: %w", err)
	}

	artists := make([]string, 0, len(body.Artists))
	for _, a := range body.Artists {
		artists = append(artists, a.Name)
	}
	return dance.TrackInfo{
		URL:      raw,
		Title:    body.Name,
		Artist:   strings.Join(artists, ", "),
		Album:    body.Album.Name,
		Duration: body.DurationMS,
	}, nil
}

func (p *SpotifyProvider) accessToken(ctx context.Context) (string, error) {
	if p.clientID == "" || p.clientSecret == "" {
		return "", ErrNotConfigured
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Before(p.expires) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("spotify token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify token status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"` // seconds
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("spotify token decode: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("spotify token: empty access token")
	}

	p.token = tok.AccessToken
	// Refresh 30s before the server-side expiry.
	p.expires = p.now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)
	p.log.Debug("spotify token refreshed", zap.Time("expires", p.expires))
	return p.token, nil
}

// spotifyTrackID accepts open.spotify.com/track/<id> links and
// spotify:track:<id> URIs.
func spotifyTrackID(raw string) (string, error) {
	if rest, ok := strings.CutPrefix(raw, "spotify:track:"); ok && rest != "" {
		return rest, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "track" && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return lastSegment(raw)
}

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
)

const itunesLookupURL = "https://itunes.apple.com/lookup"

// ITunesProvider resolves Apple Music / iTunes links via the public lookup
// API. No credentials are needed.
type ITunesProvider struct {
	lookupURL  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewITunesProvider(lookupURL string, log *zap.Logger) *ITunesProvider {
	if lookupURL == "" {
		lookupURL = itunesLookupURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ITunesProvider{
		lookupURL:  lookupURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

func (p *ITunesProvider) Fetch(ctx context.Context, raw string) (dance.TrackInfo, error) {
	id, err := itunesTrackID(raw)
	if err != nil {
		return dance.TrackInfo{}, err
	}

	u, err := url.Parse(p.lookupURL)
	if err != nil {
		return dance.TrackInfo{}, err
	}
	q := u.Query()
	q.Set("id", id)
	q.Set("entity", "song")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return dance.TrackInfo{}, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return dance.TrackInfo{}, fmt.Errorf("itunes lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dance.TrackInfo{}, fmt.Errorf("%w: itunes status %d", ErrInvalidTrack, resp.StatusCode)
	}

	var result struct {
		ResultCount int `json:"resultCount"`
		Results     []struct {
			WrapperType     string `json:"wrapperType"`
			Kind            string `json:"kind"`
			ArtistName      string `json:"artistName"`
			TrackName       string `json:"trackName"`
			CollectionName  string `json:"collectionName"`
			TrackTimeMillis int64  `json:"trackTimeMillis"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return dance.TrackInfo{}, fmt.Errorf("itunes decode: %w", err)
	}

	for _, item := range result.Results {
		if item.WrapperType != "" && item.WrapperType != "track" {
			continue
		}
		return dance.TrackInfo{
			URL:      raw,
			Title:    item.TrackName,
			Artist:   item.ArtistName,
			Album:    item.CollectionName,
			Duration: item.TrackTimeMillis,
		}, nil
	}

	p.log.Debug("itunes lookup returned no track", zap.String("id", id))
	return dance.TrackInfo{}, fmt.Errorf("%w: no results for %s", ErrInvalidTrack, id)
}

// itunesTrackID prefers the ?i= song parameter used by album links, then a
// numeric last path segment ("id123" or "123").
func itunesTrackID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	if i := u.Query().Get("i"); i != "" {
		return i, nil
	}
	seg, err := lastSegment(raw)
	if err != nil {
		return "", err
	}
	seg = strings.TrimPrefix(seg, "id")
	if _, err := strconv.ParseUint(seg, 10, 64); err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	return seg, nil
}
